// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Media backends.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Naming  NamingConfig
	Capture CaptureConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds where settings, the scan log and captured media live.
type StorageConfig struct {
	// DataPath holds the settings database and scan log.
	DataPath string
	// MediaPath is the root of the local object store (default: {data}/media).
	MediaPath string
	// MediaBackend selects the object store: "local" or "memory".
	MediaBackend string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 30s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// NamingConfig holds defaults for the media naming engine.
type NamingConfig struct {
	// Extension applied to new captures when the stored policy has none (default: .jpg)
	Extension string
	// MaxRetries is the number of collision retries before the timestamp fallback (default: 10)
	MaxRetries int
	// RetryBackoff is the linear backoff step between collision retries (default: 5ms)
	RetryBackoff time.Duration
}

// CaptureConfig holds limits for media uploads.
type CaptureConfig struct {
	// RateLimit is captures per second per client (default: 5)
	RateLimit float64
	// Burst is the capture burst size per client (default: 10)
	Burst int
	// MaxBytes caps a single capture body (default: 32 MiB)
	MaxBytes int64
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	cfg, _, err := LoadConfigArgs(args)
	return cfg, err
}

// LoadConfigArgs is LoadConfig for commands that take positional arguments after
// the flags. It returns the arguments left after flag parsing.
func LoadConfigArgs(args []string) (*Config, []string, error) {
	fs := flag.NewFlagSet("scanshelf", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for settings and scan log")
	mediaPath := fs.String("media-path", "", "Root directory for captured media")
	mediaBackend := fs.String("media-backend", "", "Object store backend (local, memory)")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Naming flags
	extension := fs.String("extension", "", "Default media extension (default: .jpg)")
	maxRetries := fs.String("alloc-max-retries", "", "Collision retries before timestamp fallback (default: 10)")
	retryBackoff := fs.String("alloc-retry-backoff", "", "Backoff step between collision retries (default: 5ms)")

	captureRate := fs.String("capture-rate-limit", "", "Captures per second per client (default: 5)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath:     getConfigValue(*dataPath, "DATA_PATH", ""),
			MediaPath:    getConfigValue(*mediaPath, "MEDIA_PATH", ""),
			MediaBackend: getConfigValue(*mediaBackend, "MEDIA_BACKEND", BackendLocal),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Naming: NamingConfig{
			Extension:  getConfigValue(*extension, "NAMING_EXTENSION", ".jpg"),
			MaxRetries: getIntConfigValue(*maxRetries, "ALLOC_MAX_RETRIES", 10),
		},
		Capture: CaptureConfig{
			RateLimit: getFloatConfigValue(*captureRate, "CAPTURE_RATE_LIMIT", 5),
			Burst:     getIntConfigValue("", "CAPTURE_BURST", 10),
			MaxBytes:  int64(getIntConfigValue("", "CAPTURE_MAX_BYTES", 32<<20)),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "30s"); err != nil {
		return nil, nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, nil, fmt.Errorf("invalid idle timeout: %w", err)
	}
	if cfg.Naming.RetryBackoff, err = getDurationConfigValue(*retryBackoff, "ALLOC_RETRY_BACKOFF", "5ms"); err != nil {
		return nil, nil, fmt.Errorf("invalid allocation backoff: %w", err)
	}

	if err := cfg.expandStoragePaths(); err != nil {
		return nil, nil, fmt.Errorf("invalid storage path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, fs.Args(), nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.Storage.MediaBackend {
	case BackendLocal:
		if c.Storage.MediaPath == "" {
			return errors.New("media path is required for the local backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid media backend: %s (must be local or memory)", c.Storage.MediaBackend)
	}

	if !strings.HasPrefix(c.Naming.Extension, ".") || len(c.Naming.Extension) < 2 {
		return fmt.Errorf("invalid naming extension: %q (must start with a dot)", c.Naming.Extension)
	}

	if c.Naming.MaxRetries < 1 {
		return fmt.Errorf("allocation retries must be at least 1, got %d", c.Naming.MaxRetries)
	}

	if c.Capture.RateLimit <= 0 || c.Capture.Burst < 1 {
		return errors.New("capture rate limit and burst must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStoragePaths resolves the data path (default ~/ScanShelf/data) and the
// media path (default {data}/media).
func (c *Config) expandStoragePaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	dataPath, err := expandPath(c.Storage.DataPath, filepath.Join(homeDir, "ScanShelf", "data"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = dataPath

	mediaPath, err := expandPath(c.Storage.MediaPath, filepath.Join(dataPath, "media"))
	if err != nil {
		return err
	}
	c.Storage.MediaPath = mediaPath
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", envKey, strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
