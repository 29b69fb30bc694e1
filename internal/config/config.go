package config

import (
	"fmt"
	"strings"

	"tmplhub/internal/domain/org"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Hierarchy HierarchyConfig `mapstructure:"hierarchy"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	IdleTTLSec        int     `mapstructure:"idle_ttl_sec"`
}

// RedisConfig holds Redis connection settings shared by the queue and the
// legacy registry.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL         string `mapstructure:"url"`
	ServiceKey  string `mapstructure:"service_key"`
	CacheTTLSec int    `mapstructure:"cache_ttl_sec"`
}

// QueueConfig holds async queue settings.
type QueueConfig struct {
	Concurrency   int `mapstructure:"concurrency"`
	MaxRetry      int `mapstructure:"max_retry"`
	RetryDelaySec int `mapstructure:"retry_delay_sec"`
}

// StoreConfig selects the template backend.
type StoreConfig struct {
	// Backend is one of database, registry or hybrid.
	Backend       string `mapstructure:"backend"`
	CacheTTLSec   int    `mapstructure:"cache_ttl_sec"`
	CacheCapacity uint64 `mapstructure:"cache_capacity"`
	// Parallelism bounds concurrent organization reads of list operations.
	Parallelism int `mapstructure:"parallelism"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	Migrate      bool   `mapstructure:"migrate"`
}

// RegistryConfig holds legacy tree store settings.
type RegistryConfig struct {
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DefaultsConfig holds system default template settings.
type DefaultsConfig struct {
	// Path overrides the embedded defaults file when set.
	Path        string `mapstructure:"path"`
	EmailLocale string `mapstructure:"email_locale"`
	SMSLocale   string `mapstructure:"sms_locale"`
}

// HierarchyConfig selects the organization hierarchy source.
type HierarchyConfig struct {
	// Source is static or supabase.
	Source        string             `mapstructure:"source"`
	Organizations []org.Organization `mapstructure:"organizations"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the TMPLHUB_ prefix and underscore separators.
// Example: TMPLHUB_DATABASE_DSN overrides database.dsn in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Environment variable settings
	v.SetEnvPrefix("TMPLHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional, env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Handle comma-separated API keys from env var
	if apiKeysStr := v.GetString("auth.api_keys"); apiKeysStr != "" && len(cfg.Auth.APIKeys) == 0 {
		keys := strings.Split(apiKeysStr, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Auth.APIKeys = keys
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "POST", "PUT", "DELETE"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.idle_ttl_sec", 600)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("supabase.cache_ttl_sec", 300)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.max_retry", 5)
	v.SetDefault("queue.retry_delay_sec", 30)
	v.SetDefault("store.backend", "database")
	v.SetDefault("store.cache_ttl_sec", 30)
	v.SetDefault("store.cache_capacity", 10000)
	v.SetDefault("store.parallelism", 4)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "tmplhub.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.migrate", true)
	v.SetDefault("registry.key_prefix", "tmplhub:registry")
	v.SetDefault("defaults.email_locale", "en_US")
	v.SetDefault("defaults.sms_locale", "en_US")
	v.SetDefault("hierarchy.source", "static")
}
