package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Setenv("SECURECODE_TEST_A", "")
	t.Setenv("SECURECODE_TEST_B", "  second  ")

	assert.Equal(t, "second", Get("", "SECURECODE_TEST_A", "SECURECODE_TEST_B"))
	assert.Equal(t, "", Get("SECURECODE_TEST_UNSET"))
}

func TestGetNumbers(t *testing.T) {
	t.Setenv("SECURECODE_TEST_INT", "12")
	t.Setenv("SECURECODE_TEST_BAD", "twelve")
	t.Setenv("SECURECODE_TEST_FLOAT", "0.75")

	assert.Equal(t, 12, GetInt(3, "SECURECODE_TEST_INT"))
	assert.Equal(t, 3, GetInt(3, "SECURECODE_TEST_BAD"))
	assert.Equal(t, 3, GetInt(3, "SECURECODE_TEST_UNSET"))
	assert.InDelta(t, 0.75, GetFloat(0.5, "SECURECODE_TEST_FLOAT"), 1e-9)
	assert.InDelta(t, 0.5, GetFloat(0.5, "SECURECODE_TEST_BAD"), 1e-9)
}

func TestLoadSettingsDefaults(t *testing.T) {
	for _, key := range []string{
		"SECURECODE_THRESHOLD", "securecode_threshold",
		"SECURECODE_MODEL", "securecode_model", "OPENAI_MODEL", "openai_model",
		"SECURECODE_MIN_LENGTH", "securecode_min_length",
		"SECURECODE_WORKERS", "securecode_workers",
		"SECURECODE_LOG_LEVEL", "securecode_log_level", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, Settings{
		Threshold: DefaultThreshold,
		Model:     DefaultModel,
		MinLength: DefaultMinLength,
		Workers:   DefaultWorkers,
		LogLevel:  DefaultLogLevel,
	}, s)
}

func TestLoadSettingsRejectsThreshold(t *testing.T) {
	t.Setenv("SECURECODE_THRESHOLD", "1.5")
	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("SECURECODE_TEST_FILE_KEY", "old")
	t.Setenv("SECURECODE_TEST_FILE_EMPTY", "kept")

	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"SECURECODE_TEST_FILE_KEY": "new", "SECURECODE_TEST_FILE_EMPTY": ""}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	require.NoError(t, LoadFromFile(path))
	assert.Equal(t, "new", os.Getenv("SECURECODE_TEST_FILE_KEY"))
	assert.Equal(t, "kept", os.Getenv("SECURECODE_TEST_FILE_EMPTY"))

	assert.NoError(t, LoadFromFile(filepath.Join(t.TempDir(), "missing.json")))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	assert.Error(t, LoadFromFile(bad))
}

func TestLoadFromUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("SECURECODE_TEST_USER_KEY", "")

	dir := filepath.Join(home, StateDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"SECURECODE_TEST_USER_KEY":"v"}`), 0o644))

	require.NoError(t, LoadFromUserConfig())
	assert.Equal(t, "v", os.Getenv("SECURECODE_TEST_USER_KEY"))
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("SECURECODE_TEST_DOTENV_SET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("SECURECODE_TEST_DOTENV") })

	path := filepath.Join(t.TempDir(), ".env")
	content := "SECURECODE_TEST_DOTENV=from-file\nSECURECODE_TEST_DOTENV_SET=ignored\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("SECURECODE_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("SECURECODE_TEST_DOTENV_SET"))
}
