package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// StateDirName is the per-user directory holding config.json and index state.
const StateDirName = ".securecode"

// LoadFromUserConfig copies the key/value pairs of ~/.securecode/config.json
// into the process environment.
func LoadFromUserConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		// Best-effort: if we can't resolve home, just skip file loading.
		return nil
	}
	return LoadFromFile(filepath.Join(home, StateDirName, "config.json"))
}

// LoadFromFile is LoadFromUserConfig for an explicit path. A missing file is
// not an error.
func LoadFromFile(configPath string) error {
	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var cfg map[string]string
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return err
	}

	for key, value := range cfg {
		if value == "" {
			continue
		}
		// Values from the config file take precedence over existing env vars.
		_ = os.Setenv(key, value)
	}

	return nil
}

// LoadDotEnv loads a .env file from the working directory without overriding
// variables that are already set.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}
