package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/agentboard/pkg/models"
)

// Config holds the settings read from a .boardconfig file. Every field
// has a default so a bare data directory works without any config file.
type Config struct {
	// DataDir is where the board artifacts and lock sentinels live,
	// relative to the base path unless absolute.
	DataDir string

	// DefaultPriority is applied to new tasks that do not specify one.
	DefaultPriority models.Priority

	// LockTTL is the age past which a lock sentinel is considered
	// abandoned and may be broken.
	LockTTL time.Duration

	// LockTimeout bounds how long a mutation waits for board locks.
	LockTimeout time.Duration

	// LockRetryDelay is the initial pause between acquisition attempts.
	LockRetryDelay time.Duration

	// EventLogPath is the transition event log file, relative to the
	// data directory unless absolute. Empty disables event logging.
	EventLogPath string
}

// ConfigurationManager loads and validates .boardconfig files.
type ConfigurationManager interface {
	LoadConfig() (*Config, error)
	ValidateConfig(cfg *Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .boardconfig resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultConfig returns a Config populated with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		DataDir:         "boards",
		DefaultPriority: models.PriorityNormal,
		LockTTL:         5 * time.Minute,
		LockTimeout:     10 * time.Second,
		LockRetryDelay:  25 * time.Millisecond,
		EventLogPath:    "events.jsonl",
	}
}

// LoadConfig reads the .boardconfig file from the base path using Viper.
// If the file does not exist, sensible defaults are returned.
func (cm *viperConfigManager) LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	v := viper.New()
	v.SetConfigName(".boardconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("defaults.priority", string(cfg.DefaultPriority))
	v.SetDefault("lock.ttl", cfg.LockTTL.String())
	v.SetDefault("lock.timeout", cfg.LockTimeout.String())
	v.SetDefault("lock.retry_delay", cfg.LockRetryDelay.String())
	v.SetDefault("events.log_path", cfg.EventLogPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file found, return defaults.
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .boardconfig: %w", err)
	}

	cfg.DataDir = v.GetString("data_dir")
	cfg.DefaultPriority = models.Priority(v.GetString("defaults.priority"))
	cfg.LockTTL = v.GetDuration("lock.ttl")
	cfg.LockTimeout = v.GetDuration("lock.timeout")
	cfg.LockRetryDelay = v.GetDuration("lock.retry_delay")
	cfg.EventLogPath = v.GetString("events.log_path")

	return cfg, nil
}

// validConfigPriorities is the set of allowed default priority values.
var validConfigPriorities = map[models.Priority]bool{
	models.PriorityCritical: true,
	models.PriorityHigh:     true,
	models.PriorityNormal:   true,
	models.PriorityLow:      true,
}

// ValidateConfig checks the provided configuration for invalid values
// and returns a clear error message identifying the problem.
func (cm *viperConfigManager) ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.DataDir == "" {
		errs = append(errs, "data_dir must not be empty")
	}

	if !validConfigPriorities[cfg.DefaultPriority] {
		errs = append(errs, fmt.Sprintf(
			"defaults.priority %q is invalid, must be one of: critical, high, normal, low",
			cfg.DefaultPriority,
		))
	}

	if cfg.LockTTL <= 0 {
		errs = append(errs, fmt.Sprintf("lock.ttl must be positive, got %s", cfg.LockTTL))
	}

	if cfg.LockTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("lock.timeout must be positive, got %s", cfg.LockTimeout))
	}

	if cfg.LockRetryDelay <= 0 {
		errs = append(errs, fmt.Sprintf("lock.retry_delay must be positive, got %s", cfg.LockRetryDelay))
	}

	if cfg.LockRetryDelay > cfg.LockTimeout && cfg.LockTimeout > 0 {
		errs = append(errs, fmt.Sprintf(
			"lock.retry_delay %s exceeds lock.timeout %s",
			cfg.LockRetryDelay, cfg.LockTimeout,
		))
	}

	if len(errs) > 0 {
		return fmt.Errorf("board config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
