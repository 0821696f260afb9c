package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Menu     MenuConfig     `mapstructure:"menu"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Search   SearchConfig   `mapstructure:"search"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	Host           string `mapstructure:"host"`
	RequestTimeout int    `mapstructure:"request_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig holds commerce backend API configuration
type BackendConfig struct {
	Endpoints              []string `mapstructure:"endpoints"`
	HealthPath             string   `mapstructure:"health_path"`
	SubcategoriesPath      string   `mapstructure:"subcategories_path"`
	SuggestPath            string   `mapstructure:"suggest_path"`
	Timeout                int      `mapstructure:"timeout"`
	MaxRetries             int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond   int      `mapstructure:"max_requests_per_second"`
	CircuitBreakerCooldown int      `mapstructure:"circuit_breaker_cooldown"`
}

// MenuConfig holds the mega-menu column layout
type MenuConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
	MaxCols   int `mapstructure:"max_cols"`
	Workers   int `mapstructure:"workers"`
}

// CacheConfig holds the shared resource cache settings
type CacheConfig struct {
	TTL      int  `mapstructure:"ttl"`
	Size     int  `mapstructure:"size"`
	UseRedis bool `mapstructure:"use_redis"`
}

// SearchConfig holds search suggestion settings
type SearchConfig struct {
	DebounceMillis int `mapstructure:"debounce_ms"`
	MinQueryLength int `mapstructure:"min_query_length"`
	MaxSessions    int `mapstructure:"max_sessions"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMillis) * time.Millisecond
}

// Load loads configuration from an optional YAML file with environment variable overrides
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if len(config.Backend.Endpoints) == 0 {
		return nil, fmt.Errorf("backend.endpoints must list at least one base URL")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.request_timeout", 30)

	v.SetDefault("backend.endpoints", []string{"http://localhost:5000"})
	v.SetDefault("backend.health_path", "/api/health")
	v.SetDefault("backend.subcategories_path", "/api/subcategories")
	v.SetDefault("backend.suggest_path", "/api/products/search/suggestions")
	v.SetDefault("backend.timeout", 10)
	v.SetDefault("backend.max_retries", 2)
	v.SetDefault("backend.max_requests_per_second", 20)
	v.SetDefault("backend.circuit_breaker_cooldown", 60)

	v.SetDefault("menu.chunk_size", 4)
	v.SetDefault("menu.max_cols", 3)
	v.SetDefault("menu.workers", 2)

	v.SetDefault("cache.ttl", 300)
	v.SetDefault("cache.size", 128)
	v.SetDefault("cache.use_redis", true)

	v.SetDefault("search.debounce_ms", 250)
	v.SetDefault("search.min_query_length", 2)
	v.SetDefault("search.max_sessions", 4096)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "storefront")
	v.SetDefault("database.user", "storefront_user")
	v.SetDefault("database.password", "storefront_pass")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "menu_refreshers")
	v.SetDefault("redis.min_idle_time", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
