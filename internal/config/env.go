package config

import (
	"os"
	"strconv"
	"strings"
)

// Get returns the first non-empty environment variable from the provided keys.
func Get(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// GetInt is Get parsed as an int; unparsable or missing values yield def.
func GetInt(def int, keys ...string) int {
	raw := Get(keys...)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// GetFloat is Get parsed as a float64; unparsable or missing values yield def.
func GetFloat(def float64, keys ...string) float64 {
	raw := Get(keys...)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}
