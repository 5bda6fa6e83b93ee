package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Storage: StorageConfig{
			DataPath:     "/some/path",
			MediaPath:    "/some/path/media",
			MediaBackend: BackendLocal,
		},
		Naming:  NamingConfig{Extension: ".jpg", MaxRetries: 10},
		Capture: CaptureConfig{RateLimit: 5, Burst: 10},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Storage(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.DataPath = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data path cannot be empty")

	cfg = validConfig()
	cfg.Storage.MediaBackend = "s3"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.MediaBackend = BackendMemory
	cfg.Storage.MediaPath = ""
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.MediaPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_Naming(t *testing.T) {
	tests := []struct {
		name      string
		extension string
		retries   int
		valid     bool
	}{
		{name: "jpg", extension: ".jpg", retries: 10, valid: true},
		{name: "png", extension: ".png", retries: 1, valid: true},
		{name: "missing dot", extension: "jpg", retries: 10, valid: false},
		{name: "dot only", extension: ".", retries: 10, valid: false},
		{name: "no retries", extension: ".jpg", retries: 0, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Naming.Extension = tt.extension
			cfg.Naming.MaxRetries = tt.retries

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestExpandStoragePaths_Defaults(t *testing.T) {
	cfg := &Config{}

	require.NoError(t, cfg.expandStoragePaths())

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	expected := filepath.Join(homeDir, "ScanShelf", "data")
	assert.Equal(t, expected, cfg.Storage.DataPath)
	assert.Equal(t, filepath.Join(expected, "media"), cfg.Storage.MediaPath)
}

func TestExpandStoragePaths_TildeAndRelative(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{DataPath: "~/scans", MediaPath: "relative/media"}}

	require.NoError(t, cfg.expandStoragePaths())

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "scans"), cfg.Storage.DataPath)
	assert.True(t, filepath.IsAbs(cfg.Storage.MediaPath))
	assert.Contains(t, cfg.Storage.MediaPath, "relative/media")
}

func TestGetConfigValue_Precedence(t *testing.T) {
	assert.Equal(t, "flag-value", getConfigValue("flag-value", "TEST_ENV_KEY", "default-value"))

	t.Setenv("TEST_ENV_KEY", "env-value")
	assert.Equal(t, "env-value", getConfigValue("", "TEST_ENV_KEY", "default-value"))

	assert.Equal(t, "default-value", getConfigValue("", "NONEXISTENT_KEY", "default-value"))
}

func TestGetIntConfigValue_InvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_KEY", "ten")
	assert.Equal(t, 10, getIntConfigValue("", "TEST_INT_KEY", 10))
	assert.Equal(t, 3, getIntConfigValue("3", "TEST_INT_KEY", 10))
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_PATH", filepath.Join(dir, "from-env"))
	t.Setenv("ALLOC_MAX_RETRIES", "4")
	t.Setenv("ALLOC_RETRY_BACKOFF", "20ms")
	t.Setenv("NAMING_EXTENSION", ".png")

	cfg, err := LoadConfig([]string{
		"-env-file", filepath.Join(dir, "missing.env"),
		"-data-path", filepath.Join(dir, "from-flag"),
		"-media-backend", "memory",
		"-port", "9090",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "from-flag"), cfg.Storage.DataPath)
	assert.Equal(t, BackendMemory, cfg.Storage.MediaBackend)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, ".png", cfg.Naming.Extension)
	assert.Equal(t, 4, cfg.Naming.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.Naming.RetryBackoff)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadConfigArgs_ReturnsPositionalArgs(t *testing.T) {
	dir := t.TempDir()

	cfg, rest, err := LoadConfigArgs([]string{
		"-env-file", filepath.Join(dir, "missing.env"),
		"-data-path", dir,
		"renumber", "-bucket", "primary", "ABC",
	})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Storage.DataPath)
	assert.Equal(t, []string{"renumber", "-bucket", "primary", "ABC"}, rest)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SERVER_IDLE_TIMEOUT", "forever")

	_, err := LoadConfig([]string{"-env-file", filepath.Join(dir, "missing.env"), "-data-path", dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle timeout")
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
SCANSHELF_TEST_ENV=staging
SCANSHELF_TEST_LEVEL=debug
# Comment line
SCANSHELF_TEST_QUOTED="some value"
SCANSHELF_TEST_SINGLE='another value'
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	for _, key := range []string{"SCANSHELF_TEST_ENV", "SCANSHELF_TEST_LEVEL", "SCANSHELF_TEST_QUOTED", "SCANSHELF_TEST_SINGLE"} {
		t.Setenv(key, "")
	}

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "staging", os.Getenv("SCANSHELF_TEST_ENV"))
	assert.Equal(t, "debug", os.Getenv("SCANSHELF_TEST_LEVEL"))
	assert.Equal(t, "some value", os.Getenv("SCANSHELF_TEST_QUOTED"))
	assert.Equal(t, "another value", os.Getenv("SCANSHELF_TEST_SINGLE"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	err := loadEnvFile(envFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	assert.Error(t, loadEnvFile("/nonexistent/file/.env"))
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	t.Setenv("SCANSHELF_TEST_VAR", "original-value")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`SCANSHELF_TEST_VAR=new-value`), 0o644))

	require.NoError(t, loadEnvFile(envFile))

	assert.Equal(t, "original-value", os.Getenv("SCANSHELF_TEST_VAR"))
}
