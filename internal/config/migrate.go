// Package config provides configuration management for the adintel migration tooling.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingDatabaseURL is returned when no connection string is configured.
var ErrMissingDatabaseURL = errors.New("database URL required: use --db flag or set DATABASE_URL")

// DefaultLockID is the advisory lock key held while the page migration runs.
const DefaultLockID int64 = 4417302906

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // trace, debug, info, warn, error
	Format string `yaml:"format,omitempty"` // console or json
}

// S3Config describes an optional S3-compatible bucket that receives a copy of
// every backup snapshot.
type S3Config struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	UseSSL          bool   `yaml:"use_ssl,omitempty"`
}

// Enabled reports whether off-site snapshot copies are configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// MigrateConfig holds the configuration of adintel-migrate.
type MigrateConfig struct {
	DatabaseURL string        `yaml:"database_url,omitempty"`
	SchemaFile  string        `yaml:"schema_file,omitempty"` // empty uses the embedded script
	BackupDir   string        `yaml:"backup_dir,omitempty"`
	SkipCleanup bool          `yaml:"skip_cleanup,omitempty"`
	LockID      int64         `yaml:"lock_id,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MetricsFile string        `yaml:"metrics_file,omitempty"`
	Log         LogConfig     `yaml:"log,omitempty"`
	BackupS3    S3Config      `yaml:"backup_s3,omitempty"`
}

// Default returns a MigrateConfig with sensible defaults.
func Default() MigrateConfig {
	return MigrateConfig{
		BackupDir: ".",
		LockID:    DefaultLockID,
		Timeout:   30 * time.Minute,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and environment variables, in increasing order of precedence.
func Load(path string) (MigrateConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *MigrateConfig) applyEnv() {
	c.DatabaseURL = getEnvString("DATABASE_URL", c.DatabaseURL)
	c.SchemaFile = getEnvString("ADINTEL_SCHEMA_FILE", c.SchemaFile)
	c.BackupDir = getEnvString("ADINTEL_BACKUP_DIR", c.BackupDir)
	c.SkipCleanup = getEnvBool("ADINTEL_SKIP_CLEANUP", c.SkipCleanup)
	c.LockID = getEnvInt64("ADINTEL_LOCK_ID", c.LockID)
	if secs := getEnvInt("ADINTEL_TIMEOUT_SECONDS", -1); secs >= 0 {
		c.Timeout = time.Duration(secs) * time.Second
	}
	c.MetricsFile = getEnvString("ADINTEL_METRICS_FILE", c.MetricsFile)
	c.Log.Level = getEnvString("ADINTEL_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvString("ADINTEL_LOG_FORMAT", c.Log.Format)

	c.BackupS3.Bucket = getEnvString("ADINTEL_BACKUP_S3_BUCKET", c.BackupS3.Bucket)
	c.BackupS3.Prefix = getEnvString("ADINTEL_BACKUP_S3_PREFIX", c.BackupS3.Prefix)
	c.BackupS3.Region = getEnvString("ADINTEL_BACKUP_S3_REGION", c.BackupS3.Region)
	c.BackupS3.Endpoint = getEnvString("ADINTEL_BACKUP_S3_ENDPOINT", c.BackupS3.Endpoint)
	c.BackupS3.AccessKeyID = getEnvString("ADINTEL_BACKUP_S3_ACCESS_KEY_ID", c.BackupS3.AccessKeyID)
	c.BackupS3.SecretAccessKey = getEnvString("ADINTEL_BACKUP_S3_SECRET_ACCESS_KEY", c.BackupS3.SecretAccessKey)
	c.BackupS3.UseSSL = getEnvBool("ADINTEL_BACKUP_S3_USE_SSL", c.BackupS3.UseSSL)
}

// Validate checks that the configuration has the fields required to run.
func (c *MigrateConfig) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.BackupDir == "" {
		return errors.New("backup_dir is required")
	}
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format must be 'console' or 'json', got %q", c.Log.Format)
	}
	if c.SchemaFile != "" {
		if _, err := os.Stat(c.SchemaFile); err != nil {
			return fmt.Errorf("schema file: %w", err)
		}
	}
	if c.BackupS3.Enabled() {
		if c.BackupS3.AccessKeyID == "" || c.BackupS3.SecretAccessKey == "" {
			return errors.New("backup_s3 requires access_key_id and secret_access_key")
		}
	}
	return nil
}

// getEnvString reads a string from an environment variable, returning the default if unset.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}
