package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/buildquote/leadmatch/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend shared by the professional
// registry and the lead store.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" mapstructure:"driver"`
	// DatabaseURL is a pgx connection string for postgres or a file path
	// for sqlite.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MatchingConfig configures the matching pipeline.
type MatchingConfig struct {
	SearchRadiusMiles float64 `yaml:"search_radius_miles" mapstructure:"search_radius_miles"`
	PerRoleCap        int     `yaml:"per_role_cap" mapstructure:"per_role_cap"`
	DistanceWeight    float64 `yaml:"distance_weight" mapstructure:"distance_weight"`
	RatingWeight      float64 `yaml:"rating_weight" mapstructure:"rating_weight"`
	QueryTimeoutSecs  int     `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	QueryConcurrency  int     `yaml:"query_concurrency" mapstructure:"query_concurrency"`

	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig configures store-write retries.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the backend circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Resilience maps the retry knobs onto resilience.RetryConfig, falling back
// to package defaults for unset values.
func (r RetryConfig) Resilience() resilience.RetryConfig {
	out := resilience.DefaultRetryConfig()
	if r.MaxAttempts > 0 {
		out.MaxAttempts = r.MaxAttempts
	}
	if r.InitialBackoffMs > 0 {
		out.InitialBackoff = time.Duration(r.InitialBackoffMs) * time.Millisecond
	}
	if r.MaxBackoffMs > 0 {
		out.MaxBackoff = time.Duration(r.MaxBackoffMs) * time.Millisecond
	}
	if r.Multiplier > 0 {
		out.Multiplier = r.Multiplier
	}
	if r.JitterFraction >= 0 {
		out.JitterFraction = r.JitterFraction
	}
	return out
}

// Resilience maps the circuit knobs onto resilience.CircuitBreakerConfig.
func (c CircuitConfig) Resilience() resilience.CircuitBreakerConfig {
	out := resilience.DefaultCircuitBreakerConfig()
	if c.FailureThreshold > 0 {
		out.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		out.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	return out
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// RateLimitPerSecond throttles lead submissions; zero disables it.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" mapstructure:"rate_limit_per_second"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadmatch.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_per_second", 10)
	v.SetDefault("matching.search_radius_miles", 100)
	v.SetDefault("matching.per_role_cap", 10)
	v.SetDefault("matching.distance_weight", 0.7)
	v.SetDefault("matching.rating_weight", 0.3)
	v.SetDefault("matching.query_timeout_secs", 5)
	v.SetDefault("matching.query_concurrency", 4)
	v.SetDefault("matching.retry.max_attempts", 3)
	v.SetDefault("matching.retry.initial_backoff_ms", 250)
	v.SetDefault("matching.retry.max_backoff_ms", 5000)
	v.SetDefault("matching.retry.multiplier", 2.0)
	v.SetDefault("matching.retry.jitter_fraction", 0.25)
	v.SetDefault("matching.circuit.failure_threshold", 5)
	v.SetDefault("matching.circuit.reset_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode. Modes share
// the matching checks; "serve" additionally requires a usable port.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "match", "migrate", "seed":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Matching.SearchRadiusMiles <= 0 {
		problems = append(problems, "matching.search_radius_miles must be > 0")
	}
	if c.Matching.PerRoleCap < 1 || c.Matching.PerRoleCap > 100 {
		problems = append(problems, "matching.per_role_cap must be between 1 and 100")
	}
	if c.Matching.DistanceWeight < 0 || c.Matching.RatingWeight < 0 {
		problems = append(problems, "matching weights must be >= 0")
	}
	if c.Matching.QueryConcurrency < 1 || c.Matching.QueryConcurrency > 50 {
		problems = append(problems, "matching.query_concurrency must be between 1 and 50")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
