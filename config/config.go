package config

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	"github.com/spf13/viper"
)

// ConfigPathEnv overrides the config file location
const ConfigPathEnv = "OPTIONS_CONFIG_PATH"

// Config for the whole application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	API        APIConfig        `mapstructure:"api"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Risk       RiskConfig       `mapstructure:"risk"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// General application configuration
type AppConfig struct {
	Name        string    `mapstructure:"name"`
	Environment string    `mapstructure:"environment"`
	LogLevel    string    `mapstructure:"log_level"`
	LogFile     LogConfig `mapstructure:"log_file"`
}

// Rotated log file settings, an empty path logs to stdout
type LogConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Logger converts the app settings into logger options
func (a AppConfig) Logger() logger.Config {
	return logger.Config{
		Level:       a.LogLevel,
		Environment: a.Environment,
		File:        a.LogFile.Path,
		MaxSizeMB:   a.LogFile.MaxSizeMB,
		MaxBackups:  a.LogFile.MaxBackups,
		MaxAgeDays:  a.LogFile.MaxAgeDays,
		Compress:    a.LogFile.Compress,
	}
}

// Configuration for the API server
type APIConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Pricing engine defaults
type PricingConfig struct {
	TreeSteps     int    `mapstructure:"tree_steps"`
	Simulations   int    `mapstructure:"simulations"`
	Seed          uint64 `mapstructure:"seed"`
	MaxConcurrent int64  `mapstructure:"max_concurrent"`
	Overload      string `mapstructure:"overload"` // block or reject
}

// Configuration for risk calculations
type RiskConfig struct {
	VaRConfidenceLevel float64 `mapstructure:"var_confidence_level"`
	VaRMethod          string  `mapstructure:"var_method"`
	SimulationRuns     int     `mapstructure:"simulation_runs"`
	HistoricalDays     int     `mapstructure:"historical_days"`
}

// Market data source configuration
type MarketDataConfig struct {
	Source    string        `mapstructure:"source"` // yahoo or csv
	CSVPath   string        `mapstructure:"csv_path"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"` // 0 disables the cache
	CacheSize int           `mapstructure:"cache_size"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

// Circuit breaker settings for the market data provider
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

// Configuration for Kafka
type KafkaConfig struct {
	Brokers           []string          `mapstructure:"brokers"`
	GroupID           string            `mapstructure:"group_id"`
	WriteTimeout      time.Duration     `mapstructure:"write_timeout"`
	ReadTimeout       time.Duration     `mapstructure:"read_timeout"`
	MaxAttempts       int               `mapstructure:"max_attempts"`
	Partitions        int               `mapstructure:"partitions"`
	ReplicationFactor int               `mapstructure:"replication_factor"`
	Topics            KafkaTopicsConfig `mapstructure:"topics"`
}

// Kafka topics configuration
type KafkaTopicsConfig struct {
	PricingRequests string `mapstructure:"pricing_requests"`
	PricingResults  string `mapstructure:"pricing_results"`
}

// Configuration for metrics
type MetricsConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// Configuration for Prometheus metrics
type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads the configuration file, if any, and applies environment overrides
// with the OPTIONS_ prefix. A missing file leaves the defaults in place.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(ConfigPathEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("OPTIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the services cannot start with
func (c *Config) Validate() error {
	switch {
	case c.API.Port <= 0 || c.API.Port > 65535:
		return errors.InvalidArgument(fmt.Sprintf("api.port %d out of range", c.API.Port))
	case c.Risk.VaRConfidenceLevel <= 0 || c.Risk.VaRConfidenceLevel >= 1:
		return errors.InvalidArgument(fmt.Sprintf("risk.var_confidence_level must be in (0, 1), got %v", c.Risk.VaRConfidenceLevel))
	case c.Pricing.TreeSteps < 0 || c.Pricing.Simulations < 0:
		return errors.InvalidArgument("pricing.tree_steps and pricing.simulations must not be negative")
	case c.MarketData.Source != "yahoo" && c.MarketData.Source != "csv":
		return errors.InvalidArgument(fmt.Sprintf("market_data.source must be yahoo or csv, got %q", c.MarketData.Source))
	case c.Pricing.Overload != "block" && c.Pricing.Overload != "reject":
		return errors.InvalidArgument(fmt.Sprintf("pricing.overload must be block or reject, got %q", c.Pricing.Overload))
	case c.MarketData.Source == "csv" && c.MarketData.CSVPath == "":
		return errors.InvalidArgument("market_data.csv_path is required for the csv source")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "options-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file.path", "")
	v.SetDefault("app.log_file.max_size_mb", 100)
	v.SetDefault("app.log_file.max_backups", 5)
	v.SetDefault("app.log_file.max_age_days", 14)
	v.SetDefault("app.log_file.compress", true)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.shutdown_timeout", "15s")
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.rate_burst", 200)
	v.SetDefault("api.cors.allowed_origins", []string{"*"})

	// Pricing defaults
	v.SetDefault("pricing.tree_steps", 100)
	v.SetDefault("pricing.simulations", 10000)
	v.SetDefault("pricing.seed", 0)
	v.SetDefault("pricing.max_concurrent", 0)
	v.SetDefault("pricing.overload", "block")

	// Risk defaults
	v.SetDefault("risk.var_confidence_level", 0.95)
	v.SetDefault("risk.var_method", "historical")
	v.SetDefault("risk.simulation_runs", 10000)
	v.SetDefault("risk.historical_days", 252)

	// Market data defaults
	v.SetDefault("market_data.source", "yahoo")
	v.SetDefault("market_data.csv_path", "")
	v.SetDefault("market_data.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market_data.timeout", "10s")
	v.SetDefault("market_data.rate_limit", 2)
	v.SetDefault("market_data.rate_burst", 1)
	v.SetDefault("market_data.cache_ttl", "5m")
	v.SetDefault("market_data.cache_size", 256)
	v.SetDefault("market_data.breaker.max_requests", 1)
	v.SetDefault("market_data.breaker.interval", "60s")
	v.SetDefault("market_data.breaker.timeout", "30s")
	v.SetDefault("market_data.breaker.failure_ratio", 0.5)
	v.SetDefault("market_data.breaker.min_requests", 5)

	// Kafka defaults
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "options-pricer")
	v.SetDefault("kafka.write_timeout", "10s")
	v.SetDefault("kafka.read_timeout", "10s")
	v.SetDefault("kafka.max_attempts", 5)
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication_factor", 1)
	v.SetDefault("kafka.topics.pricing_requests", "options.pricing.requests")
	v.SetDefault("kafka.topics.pricing_results", "options.pricing.results")

	// Metrics defaults
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.port", 9090)
}
