package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Keycloak   KeycloakConfig
	Redis      RedisConfig
	Importer   ImporterConfig
	Monitoring MonitoringConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	AppDB PostgresConfig `mapstructure:"postgres_app"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ImporterConfig configures the periodic bulk import from the external
// sensor network.
type ImporterConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	FeedURL      string        `mapstructure:"feed_url"`
	APIKey       string        `mapstructure:"api_key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	ImportUser   string        `mapstructure:"import_user"`
}

type MonitoringConfig struct {
	LogLevel           string `mapstructure:"log_level"`
	PrometheusEndpoint string `mapstructure:"prometheus_endpoint"`
	LokiEndpoint       string `mapstructure:"loki_endpoint"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("AIRCAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.postgres_app.sslmode", "disable")

	// Redis defaults
	viper.SetDefault("redis.db", 0)

	// Importer defaults
	viper.SetDefault("importer.enabled", false)
	viper.SetDefault("importer.poll_interval", "10m")
	viper.SetDefault("importer.fetch_timeout", "30s")
	viper.SetDefault("importer.import_user", "PurpleAir")

	// Monitoring defaults
	viper.SetDefault("monitoring.log_level", "info")
	viper.SetDefault("monitoring.prometheus_endpoint", "http://localhost:9090")
	viper.SetDefault("monitoring.loki_endpoint", "http://localhost:3100")
}

func validateConfig(config *Config) error {
	if config.Database.AppDB.Host == "" {
		return fmt.Errorf("postgres app host is required")
	}
	if config.Keycloak.URL == "" {
		return fmt.Errorf("keycloak URL is required")
	}
	if config.Importer.Enabled && config.Importer.FeedURL == "" {
		return fmt.Errorf("importer feed URL is required when importer is enabled")
	}
	return nil
}
