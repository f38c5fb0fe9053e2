package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
	Platform PlatformConfig `mapstructure:"platform"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type DatabaseConfig struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	Database              string        `mapstructure:"database"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SecurityConfig carries the two process-wide secrets: the vault key for
// credentials at rest and the shared secret gating the trigger endpoints.
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
	CronSecret    string `mapstructure:"cron_secret"`
}

type ExecutorConfig struct {
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	RefreshBuffer time.Duration `mapstructure:"refresh_buffer"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
}

// TriggerConfig optionally runs the batch from an in-process cron instead of
// an external timer hitting the HTTP endpoint.
type TriggerConfig struct {
	InternalCron bool   `mapstructure:"internal_cron"`
	CronSpec     string `mapstructure:"cron_spec"`
}

type PlatformConfig struct {
	APIBaseURL        string        `mapstructure:"api_base_url"`
	OAuthTokenURL     string        `mapstructure:"oauth_token_url"`
	OAuthClientID     string        `mapstructure:"oauth_client_id"`
	OAuthClientSecret string        `mapstructure:"oauth_client_secret"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

const (
	encryptionKeyBytes  = 32
	minCronSecretLength = 16
)

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.max_header_bytes", 1048576)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.max_connections", 20)
	viper.SetDefault("database.max_idle_connections", 10)
	viper.SetDefault("database.connection_max_lifetime", "1h")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")

	viper.SetDefault("executor.grace_period", "10m")
	viper.SetDefault("executor.refresh_buffer", "5m")
	viper.SetDefault("executor.max_attempts", 3)
	viper.SetDefault("executor.backoff_base", "2s")

	viper.SetDefault("trigger.internal_cron", false)
	viper.SetDefault("trigger.cron_spec", "* * * * *")

	viper.SetDefault("platform.request_timeout", "30s")

	// secrets may come from the environment instead of the file
	viper.SetEnvPrefix("SCHEDULER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the process must not start with. A wrong
// vault key or a guessable cron secret is a deployment error, not something
// to limp along with at runtime.
func (c *Config) Validate() error {
	if len(c.Security.EncryptionKey) != encryptionKeyBytes {
		return fmt.Errorf("security.encryption_key must be exactly %d bytes, got %d",
			encryptionKeyBytes, len(c.Security.EncryptionKey))
	}
	if len(c.Security.CronSecret) < minCronSecretLength {
		return fmt.Errorf("security.cron_secret must be at least %d characters", minCronSecretLength)
	}
	if c.Executor.MaxAttempts < 1 {
		return fmt.Errorf("executor.max_attempts must be at least 1")
	}
	if c.Executor.GracePeriod <= 0 {
		return fmt.Errorf("executor.grace_period must be positive")
	}
	return nil
}
