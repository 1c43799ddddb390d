package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	InstanceID    string   `mapstructure:"instance_id"`
	Topics        struct {
		SnapshotRefresh    string `mapstructure:"snapshot_refresh"`
		SnapshotRefreshDLQ string `mapstructure:"snapshot_refresh_dlq"`
	} `mapstructure:"topics"`
	MaxRetries int `mapstructure:"max_retries"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RecommendationConfig struct {
	SimilarItems SimilarItemsConfig `mapstructure:"similar_items"`
	Expansion    ExpansionConfig    `mapstructure:"expansion"`
	Interactions InteractionsConfig `mapstructure:"interactions"`
	Build        BuildConfig        `mapstructure:"build"`
	Caching      CachingConfig      `mapstructure:"caching"`
}

type SimilarItemsConfig struct {
	DefaultK int `mapstructure:"default_k"`
	MaxK     int `mapstructure:"max_k"`
}

type ExpansionConfig struct {
	DefaultN         int           `mapstructure:"default_n"`
	MaxN             int           `mapstructure:"max_n"`
	InitialNeighbors int           `mapstructure:"initial_neighbors"`
	NeighborStep     int           `mapstructure:"neighbor_step"`
	MaxRounds        int           `mapstructure:"max_rounds"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type InteractionsConfig struct {
	Scoring             string  `mapstructure:"scoring"` // hours_threshold, plain_average
	HoursThreshold      float64 `mapstructure:"hours_threshold"`
	ThresholdMultiplier float64 `mapstructure:"threshold_multiplier"`
	HoursDivisor        float64 `mapstructure:"hours_divisor"`
}

type BuildConfig struct {
	Workers   int           `mapstructure:"workers"`
	OnStartup bool          `mapstructure:"on_startup"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type CachingConfig struct {
	SimilarItemsTTL    time.Duration `mapstructure:"similar_items_ttl"`
	RecommendationsTTL time.Duration `mapstructure:"recommendations_ttl"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Requests      int           `mapstructure:"requests"`
	AdminRequests int           `mapstructure:"admin_requests"`
	Window        time.Duration `mapstructure:"window"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "development")

	// Database defaults
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_time", "15m")
	v.SetDefault("database.max_lifetime", "1h")
	v.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.url", "localhost:6379")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.timeout", "2s")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "gamerec-model-builders")
	// Empty means the hostname; each instance gets its own consumer group.
	v.SetDefault("kafka.instance_id", "")
	v.SetDefault("kafka.topics.snapshot_refresh", "snapshot-refresh")
	v.SetDefault("kafka.topics.snapshot_refresh_dlq", "snapshot-refresh-dlq")
	v.SetDefault("kafka.max_retries", 3)

	// Auth defaults
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("auth.issuer", "github.com/temcen/gamerec")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Recommendation defaults
	v.SetDefault("recommendation.similar_items.default_k", 5)
	v.SetDefault("recommendation.similar_items.max_k", 100)
	v.SetDefault("recommendation.expansion.default_n", 5)
	v.SetDefault("recommendation.expansion.max_n", 100)
	v.SetDefault("recommendation.expansion.initial_neighbors", 5)
	v.SetDefault("recommendation.expansion.neighbor_step", 5)
	v.SetDefault("recommendation.expansion.max_rounds", 10)
	v.SetDefault("recommendation.expansion.timeout", "2s")
	v.SetDefault("recommendation.interactions.scoring", "hours_threshold")
	v.SetDefault("recommendation.interactions.hours_threshold", 350.0)
	v.SetDefault("recommendation.interactions.threshold_multiplier", 10.0)
	v.SetDefault("recommendation.interactions.hours_divisor", 35.0)
	v.SetDefault("recommendation.build.workers", 0)
	v.SetDefault("recommendation.build.on_startup", true)
	v.SetDefault("recommendation.build.timeout", "30m")
	v.SetDefault("recommendation.caching.similar_items_ttl", "1h")
	v.SetDefault("recommendation.caching.recommendations_ttl", "15m")

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"*"})
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests", 600)
	v.SetDefault("security.rate_limit.admin_requests", 30)
	v.SetDefault("security.rate_limit.window", "1m")
}
