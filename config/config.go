package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Upbit    UpbitConfig    `mapstructure:"upbit"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Symbols  SymbolsConfig  `mapstructure:"symbols"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Console  ConsoleConfig  `mapstructure:"console"`
}

type UpbitConfig struct {
	REST           RESTConfig `mapstructure:"rest"`
	QuoteCurrency  string     `mapstructure:"quote_currency"`   // base fiat, e.g. "KRW"
	EnvFile        string     `mapstructure:"env_file"`         // .env holding UPBIT_ACCESS_KEY / UPBIT_SECRET_KEY
	AccessKeyParam string     `mapstructure:"access_key_param"` // SSM parameter name used in prod
	SecretKeyParam string     `mapstructure:"secret_key_param"` // SSM parameter name used in prod
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PollerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
	ErrorBuffer  int           `mapstructure:"error_buffer"`
}

// SymbolsConfig selects the markets to track. An empty Watch list tracks every market of the quote currency.
type SymbolsConfig struct {
	Watch        []string `mapstructure:"watch"`
	DailyRefresh bool     `mapstructure:"daily_refresh"` // reload the market list every UTC midnight
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"` // expiry of the latest-price keys
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type FeedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"` // e.g. ":8090"
	Path    string `mapstructure:"path"` // e.g. "/ws"
	Buffer  int    `mapstructure:"buffer"`
}

type ConsoleConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Limit   int  `mapstructure:"limit"` // max market rows printed per cycle, 0 = all
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upbit.rest.base_url", "https://api.upbit.com")
	v.SetDefault("upbit.rest.timeout", 5*time.Second)
	v.SetDefault("upbit.quote_currency", "KRW")
	v.SetDefault("upbit.env_file", "configs/.env")
	v.SetDefault("upbit.access_key_param", "UPBIT_ACCESS_KEY")
	v.SetDefault("upbit.secret_key_param", "UPBIT_SECRET_KEY")

	v.SetDefault("poller.interval", time.Second)
	v.SetDefault("poller.fetch_timeout", 5*time.Second)
	v.SetDefault("poller.max_backoff", 30*time.Second)
	v.SetDefault("poller.error_buffer", 16)

	v.SetDefault("symbols.daily_refresh", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.dbname", "upbitwatch")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "upbit_price_deltas")

	v.SetDefault("feed.addr", ":8090")
	v.SetDefault("feed.path", "/ws")
	v.SetDefault("feed.buffer", 16)

	v.SetDefault("console.enabled", true)
	v.SetDefault("console.limit", 0)
}

// bindEnv makes keys without a meaningful default overridable from the environment,
// e.g. POSTGRES_PASSWORD or REDIS_ENABLED.
func bindEnv(v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load loads application configuration using Viper.
// It reads config.yaml from dir (or the default locations when dir is empty),
// applies defaults and overrides with environment variables (e.g. POLLER_INTERVAL).
// A missing config.yaml is not an error; defaults and environment apply.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
		if ex, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., POLLER_INTERVAL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v,
		"symbols.watch",
		"log.output_file",
		"postgres.enabled", "postgres.user", "postgres.password", "postgres.timezone",
		"redis.enabled", "redis.password", "redis.db",
		"kafka.enabled",
		"feed.enabled",
	); err != nil {
		return nil, &ConfigError{Field: "env", Err: err}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &ConfigError{Field: "config.yaml", Err: fmt.Errorf("read config: %w", err)}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "config.yaml", Err: fmt.Errorf("unmarshal config: %w", err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the poller cannot run with.
func (c *Config) Validate() error {
	if c.Poller.Interval <= 0 {
		return &ConfigError{Field: "poller.interval", Err: fmt.Errorf("must be positive, got %s", c.Poller.Interval)}
	}
	if c.Poller.FetchTimeout <= 0 {
		return &ConfigError{Field: "poller.fetch_timeout", Err: fmt.Errorf("must be positive, got %s", c.Poller.FetchTimeout)}
	}
	if c.Upbit.QuoteCurrency == "" {
		return &ConfigError{Field: "upbit.quote_currency", Err: fmt.Errorf("must not be empty")}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return &ConfigError{Field: "kafka.brokers", Err: fmt.Errorf("kafka enabled without brokers")}
	}
	return nil
}
