package config

import (
	"fmt"
	"runtime"
)

const (
	DefaultThreshold = 0.5
	DefaultMinLength = 75
	DefaultWorkers   = 4
	DefaultLogLevel  = "info"
	DefaultModel     = "gpt-4o-mini"
)

// Settings are the tunables shared by the commands. Flags override them.
type Settings struct {
	Threshold float64
	Model     string
	MinLength int
	Workers   int
	LogLevel  string
}

// LoadSettings builds Settings from the environment, falling back to defaults.
func LoadSettings() (Settings, error) {
	s := Settings{
		Threshold: GetFloat(DefaultThreshold, "SECURECODE_THRESHOLD", "securecode_threshold"),
		Model:     Get("SECURECODE_MODEL", "securecode_model", "OPENAI_MODEL", "openai_model"),
		MinLength: GetInt(DefaultMinLength, "SECURECODE_MIN_LENGTH", "securecode_min_length"),
		Workers:   GetInt(DefaultWorkers, "SECURECODE_WORKERS", "securecode_workers"),
		LogLevel:  Get("SECURECODE_LOG_LEVEL", "securecode_log_level", "LOG_LEVEL"),
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.Workers <= 0 {
		s.Workers = runtime.NumCPU()
	}
	return s, s.Validate()
}

// Validate reports settings that no command can run with.
func (s Settings) Validate() error {
	if s.Threshold < 0 || s.Threshold >= 1 {
		return fmt.Errorf("threshold must be in [0, 1), got %v", s.Threshold)
	}
	if s.MinLength < 0 {
		return fmt.Errorf("min length must not be negative, got %d", s.MinLength)
	}
	return nil
}
