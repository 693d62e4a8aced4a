package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Seeder    SeederConfig    `mapstructure:"seeder"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CatalogConfig holds Open Food Facts API configuration
type CatalogConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Type     string         `mapstructure:"type"` // "memory", "dynamodb" or "sqlite"
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// DynamoDBConfig holds DynamoDB table configuration
type DynamoDBConfig struct {
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // local DynamoDB, optional
}

// SQLiteConfig holds the SQLite database location
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds product cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// SeederConfig holds catalog seeder configuration
type SeederConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PageSize     int           `mapstructure:"page_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	UseLock      bool          `mapstructure:"use_lock"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

// DashboardConfig holds aggregation thresholds
type DashboardConfig struct {
	SugarLimitGrams float64 `mapstructure:"sugar_limit_grams"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/moodbite/")

	// Environment variable settings: server.port -> MOODBITE_SERVER_PORT
	v.SetEnvPrefix("MOODBITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a .env file from the working directory if present.
// Variables already set in the environment are not overridden.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Catalog defaults
	v.SetDefault("catalog.base_url", "https://world.openfoodfacts.org")
	v.SetDefault("catalog.user_agent", "MoodBite/1.0")
	v.SetDefault("catalog.timeout", "30s")
	v.SetDefault("catalog.requests_per_second", 100.0/60.0) // OFF allows 100 product reads per minute
	v.SetDefault("catalog.burst", 10)

	// Store defaults
	v.SetDefault("store.type", StoreMemory)
	v.SetDefault("store.dynamodb.table", "moodbite")
	v.SetDefault("store.dynamodb.region", "us-east-1")
	v.SetDefault("store.dynamodb.endpoint", "")
	v.SetDefault("store.sqlite.path", "moodbite.db")

	// Cache defaults
	v.SetDefault("cache.ttl", "24h")

	// Seeder defaults
	v.SetDefault("seeder.enabled", true)
	v.SetDefault("seeder.page_size", 100)
	v.SetDefault("seeder.max_attempts", 3)
	v.SetDefault("seeder.retry_delay", "3s")
	v.SetDefault("seeder.fetch_timeout", "60s")
	v.SetDefault("seeder.use_lock", false)
	v.SetDefault("seeder.lock_ttl", "5m")

	// Dashboard defaults
	v.SetDefault("dashboard.sugar_limit_grams", 50.0)

	// Log defaults
	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Store.Type {
	case StoreMemory:
	case StoreDynamoDB:
		if config.Store.DynamoDB.Table == "" {
			return fmt.Errorf("DynamoDB table is required when store type is 'dynamodb'")
		}
	case StoreSQLite:
		if config.Store.SQLite.Path == "" {
			return fmt.Errorf("SQLite path is required when store type is 'sqlite'")
		}
	default:
		return fmt.Errorf("store type must be 'memory', 'dynamodb' or 'sqlite', got: %s", config.Store.Type)
	}

	if config.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog base URL is required (set MOODBITE_CATALOG_BASE_URL)")
	}

	if config.Seeder.PageSize < 1 || config.Seeder.PageSize > 100 {
		return fmt.Errorf("seeder page size must be between 1 and 100, got: %d", config.Seeder.PageSize)
	}

	if config.Seeder.MaxAttempts < 1 {
		return fmt.Errorf("seeder max attempts must be positive, got: %d", config.Seeder.MaxAttempts)
	}

	if config.Dashboard.SugarLimitGrams <= 0 {
		return fmt.Errorf("dashboard sugar limit must be positive, got: %v", config.Dashboard.SugarLimitGrams)
	}

	return nil
}
