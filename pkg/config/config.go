package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	DataAPI DataAPIConfig `mapstructure:"data_api"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Pricing PricingConfig `mapstructure:"pricing"`
	Booking BookingConfig `mapstructure:"booking"`
	OTel    OTelConfig    `mapstructure:"otel"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DataAPIConfig holds connection settings for the upstream data API
type DataAPIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// PricingConfig holds the venue rate table. Amounts are in the venue's
// local currency; the tax rate is a fraction (0.18 = 18% GST).
type PricingConfig struct {
	KidRate              float64 `mapstructure:"kid_rate"`
	AdultRate            float64 `mapstructure:"adult_rate"`
	SpectatorRate        float64 `mapstructure:"spectator_rate"`
	ExtendedSurcharge    float64 `mapstructure:"extended_surcharge"`
	ExtendedDurationMin  int     `mapstructure:"extended_duration_min"`
	PartyParticipantRate float64 `mapstructure:"party_participant_rate"`
	PartyExtraSpectator  float64 `mapstructure:"party_extra_spectator"`
	PartyFreeSpectators  int     `mapstructure:"party_free_spectators"`
	TaxRate              float64 `mapstructure:"tax_rate"`
}

// BookingConfig holds booking flow settings
type BookingConfig struct {
	NumberPrefix   string        `mapstructure:"number_prefix"`
	DedupeWindow   time.Duration `mapstructure:"dedupe_window"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	CollectorAddr string  `mapstructure:"collector_addr"`
	SampleRatio   float64 `mapstructure:"sample_ratio"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine (env vars may carry everything); a
	// malformed one must fail loudly
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithPath loads configuration from a specific path
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "venue-booking")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	// Data API defaults
	v.SetDefault("DATA_API_BASE_URL", "http://localhost:8000/api/v1")
	v.SetDefault("DATA_API_TIMEOUT", "30s")
	v.SetDefault("DATA_API_MAX_RETRIES", 2)

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 100)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")

	// Kafka defaults
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "booking-events")
	v.SetDefault("KAFKA_CLIENT_ID", "venue-booking")

	// Pricing defaults (session rates, party package, 18% GST)
	v.SetDefault("PRICING_KID_RATE", 500.0)
	v.SetDefault("PRICING_ADULT_RATE", 899.0)
	v.SetDefault("PRICING_SPECTATOR_RATE", 150.0)
	v.SetDefault("PRICING_EXTENDED_SURCHARGE", 500.0)
	v.SetDefault("PRICING_EXTENDED_DURATION_MIN", 120)
	v.SetDefault("PRICING_PARTY_PARTICIPANT_RATE", 1500.0)
	v.SetDefault("PRICING_PARTY_EXTRA_SPECTATOR", 100.0)
	v.SetDefault("PRICING_PARTY_FREE_SPECTATORS", 10)
	v.SetDefault("PRICING_TAX_RATE", 0.18)

	// Booking defaults
	v.SetDefault("BOOKING_NUMBER_PREFIX", "NIP")
	v.SetDefault("BOOKING_DEDUPE_WINDOW", "5m")
	v.SetDefault("BOOKING_IDEMPOTENCY_TTL", "24h")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", true)
	v.SetDefault("OTEL_SERVICE_NAME", "venue-booking")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	// Data API
	cfg.DataAPI.BaseURL = v.GetString("DATA_API_BASE_URL")
	cfg.DataAPI.Timeout = v.GetDuration("DATA_API_TIMEOUT")
	cfg.DataAPI.MaxRetries = v.GetInt("DATA_API_MAX_RETRIES")

	// Redis
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")

	// Kafka
	brokersStr := v.GetString("KAFKA_BROKERS")
	cfg.Kafka.Brokers = strings.Split(brokersStr, ",")
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")

	// Pricing
	cfg.Pricing.KidRate = v.GetFloat64("PRICING_KID_RATE")
	cfg.Pricing.AdultRate = v.GetFloat64("PRICING_ADULT_RATE")
	cfg.Pricing.SpectatorRate = v.GetFloat64("PRICING_SPECTATOR_RATE")
	cfg.Pricing.ExtendedSurcharge = v.GetFloat64("PRICING_EXTENDED_SURCHARGE")
	cfg.Pricing.ExtendedDurationMin = v.GetInt("PRICING_EXTENDED_DURATION_MIN")
	cfg.Pricing.PartyParticipantRate = v.GetFloat64("PRICING_PARTY_PARTICIPANT_RATE")
	cfg.Pricing.PartyExtraSpectator = v.GetFloat64("PRICING_PARTY_EXTRA_SPECTATOR")
	cfg.Pricing.PartyFreeSpectators = v.GetInt("PRICING_PARTY_FREE_SPECTATORS")
	cfg.Pricing.TaxRate = v.GetFloat64("PRICING_TAX_RATE")

	// Booking
	cfg.Booking.NumberPrefix = v.GetString("BOOKING_NUMBER_PREFIX")
	cfg.Booking.DedupeWindow = v.GetDuration("BOOKING_DEDUPE_WINDOW")
	cfg.Booking.IdempotencyTTL = v.GetDuration("BOOKING_IDEMPOTENCY_TTL")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")
	cfg.OTel.SampleRatio = v.GetFloat64("OTEL_SAMPLE_RATIO")

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.DataAPI.BaseURL == "" {
		return fmt.Errorf("data API base URL is required")
	}

	if c.DataAPI.Timeout <= 0 {
		return fmt.Errorf("data API timeout must be positive")
	}

	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		return fmt.Errorf("tax rate must be in [0, 1): %f", c.Pricing.TaxRate)
	}

	if c.Booking.DedupeWindow <= 0 {
		return fmt.Errorf("dedupe window must be positive")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
