package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"ifsync/internal/domain/constants"
	"ifsync/internal/domain/errors"
)

// Config holds the application configuration
type Config struct {
	Engine   EngineConfig
	Database DatabaseConfig
	Agent    AgentConfig
	Health   HealthConfig
}

// EngineConfig configures the lifecycle manager
type EngineConfig struct {
	// Root is the filesystem root the native configuration files live under
	Root    string `validate:"required"`
	Backend string `validate:"oneof=auto initscripts netplan"`
	Debug   bool
	// Watch marks the store stale when configuration directories change
	Watch    bool
	StateDir string `validate:"required"`
	// CommandTimeout bounds external commands; 0 means no deadline
	CommandTimeout time.Duration `validate:"min=0"`
	// HostNamespace runs commands in the namespaces of PID 1
	HostNamespace bool
}

// DatabaseConfig configures the desired-interface repository
type DatabaseConfig struct {
	Driver       string `validate:"oneof=mysql sqlite"`
	Host         string `validate:"required_if=Driver mysql"`
	Port         string `validate:"required_if=Driver mysql"`
	User         string `validate:"required_if=Driver mysql"`
	Password     string
	Database     string `validate:"required_if=Driver mysql"`
	Path         string `validate:"required_if=Driver sqlite"`
	MaxOpenConns int    `validate:"min=0"`
	MaxIdleConns int    `validate:"min=0"`
	MaxLifetime  time.Duration
}

// AgentConfig configures the polling agent
type AgentConfig struct {
	NodeName     string        `validate:"required"`
	PollInterval time.Duration `validate:"gt=0"`
	MaxRetries   int           `validate:"min=0"`
	RetryDelay   time.Duration `validate:"min=0"`
	Backoff      BackoffConfig
}

// BackoffConfig enables exponential backoff after failed polling cycles
type BackoffConfig struct {
	Enabled     bool
	MaxInterval time.Duration
	Multiplier  float64
}

// HealthConfig configures the health and metrics endpoint
type HealthConfig struct {
	Port string `validate:"required,numeric"`
}

// ConfigLoader loads configuration
type ConfigLoader interface {
	Load() (*Config, error)
}

// EnvironmentConfigLoader loads configuration from environment variables
type EnvironmentConfigLoader struct {
	validate *validator.Validate
}

func NewEnvironmentConfigLoader() *EnvironmentConfigLoader {
	return &EnvironmentConfigLoader{validate: validator.New()}
}

// Load reads the environment, applies defaults and validates the result
func (l *EnvironmentConfigLoader) Load() (*Config, error) {
	pollInterval, _ := time.ParseDuration(constants.DefaultPollInterval)

	config := &Config{
		Engine: EngineConfig{
			Root:           getEnvOrDefault("IFSYNC_ROOT", "/"),
			Backend:        getEnvOrDefault("IFSYNC_BACKEND", "auto"),
			Debug:          getEnvBoolOrDefault("IFSYNC_DEBUG", false),
			Watch:          getEnvBoolOrDefault("IFSYNC_WATCH", false),
			StateDir:       getEnvOrDefault("IFSYNC_STATE_DIR", constants.DefaultStateDir),
			CommandTimeout: getEnvDurationOrDefault("COMMAND_TIMEOUT", constants.DefaultCommandTimeout*time.Second),
			HostNamespace:  getEnvBoolOrDefault("HOST_NAMESPACE", false),
		},
		Database: DatabaseConfig{
			Driver:       getEnvOrDefault("DB_DRIVER", constants.DefaultDBDriver),
			Host:         getEnvOrDefault("DB_HOST", constants.DefaultDBHost),
			Port:         getEnvOrDefault("DB_PORT", constants.DefaultDBPort),
			User:         getEnvOrDefault("DB_USER", "root"),
			Password:     getEnvOrDefault("DB_PASSWORD", ""),
			Database:     getEnvOrDefault("DB_NAME", constants.DefaultDBName),
			Path:         getEnvOrDefault("DB_PATH", constants.DefaultDBPath),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDurationOrDefault("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Agent: AgentConfig{
			NodeName:     getEnvOrDefault("NODE_NAME", hostname()),
			PollInterval: getEnvDurationOrDefault("POLL_INTERVAL", pollInterval),
			MaxRetries:   getEnvIntOrDefault("MAX_RETRIES", 3),
			RetryDelay:   getEnvDurationOrDefault("RETRY_DELAY", 2*time.Second),
			Backoff: BackoffConfig{
				Enabled:     getEnvBoolOrDefault("BACKOFF_ENABLED", false),
				MaxInterval: getEnvDurationOrDefault("BACKOFF_MAX_INTERVAL", 5*time.Minute),
				Multiplier:  getEnvFloatOrDefault("BACKOFF_MULTIPLIER", 2.0),
			},
		},
		Health: HealthConfig{
			Port: getEnvOrDefault("HEALTH_PORT", constants.DefaultHealthPort),
		},
	}

	if err := l.Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks a configuration, including one changed after Load
func (l *EnvironmentConfigLoader) Validate(config *Config) error {
	if err := l.validate.Struct(config); err != nil {
		return errors.NewOtherError("invalid configuration", err)
	}
	if config.Agent.Backoff.Enabled && config.Agent.Backoff.MaxInterval < config.Agent.PollInterval {
		return errors.NewOtherError("backoff max interval is shorter than the polling interval", nil)
	}
	return nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// Environment variable helpers

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
