package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORS            bool          `yaml:"cors" default:"true"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host        string        `yaml:"host" validate:"required"`
		Port        int           `yaml:"port" default:"9000"`
		Database    string        `yaml:"database" default:"fingan"`
		User        string        `yaml:"user" default:"default"`
		Password    string        `yaml:"password"`
		UseHTTP     bool          `yaml:"use_http"`
		DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout time.Duration `yaml:"read_timeout" default:"30s"`
		InitSchema  bool          `yaml:"init_schema"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers" validate:"required_if=Enabled true"`
		ReportsTopic string        `yaml:"reports_topic" default:"fingan.training.epochs"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		BatchSize    int           `yaml:"batch_size" default:"1" validate:"gte=1"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576" validate:"gte=1"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Name         string        `yaml:"name" default:"fingan:training"`
		Workers      int           `yaml:"workers" default:"1" validate:"gte=1"`
		PollInterval time.Duration `yaml:"poll_interval" default:"1s"`
		MaxRetries   int           `yaml:"max_retries" default:"0" validate:"gte=0"`
	} `yaml:"queue"`
	Storage struct {
		Path        string `yaml:"path" default:"fingan.db" validate:"required"`
		RetainBlobs int    `yaml:"retain_blobs" default:"3" validate:"gte=0"`
	} `yaml:"storage"`
	Features FeaturesConfig `yaml:"features"`
	Training TrainingConfig `yaml:"training"`
	Model    ModelConfig    `yaml:"model"`
	Serving  ServingConfig  `yaml:"serving"`
}

// FeaturesConfig controls feature frame construction.
type FeaturesConfig struct {
	YearPeriod       int     `yaml:"year_period" default:"10" validate:"gte=1"`
	Intraday         bool    `yaml:"intraday"`
	OneHot           bool    `yaml:"one_hot" default:"true"`
	VolatilityWindow int     `yaml:"volatility_window" default:"0" validate:"gte=0"`
	SplitFraction    float64 `yaml:"split_fraction" default:"0.8" validate:"gt=0,lte=1"`
}

// TrainingConfig controls the adversarial training loop.
type TrainingConfig struct {
	Symbols          []string      `yaml:"symbols" validate:"required,min=1,dive,required"`
	Timeframe        string        `yaml:"timeframe" default:"1d" validate:"oneof=1s 1m 5m 1d"`
	Lookback         int           `yaml:"lookback" default:"10" validate:"gte=1"`
	History          time.Duration `yaml:"history" default:"8760h" validate:"gt=0"`
	Epochs           int           `yaml:"epochs" default:"100" validate:"gte=1"`
	BatchSize        int           `yaml:"batch_size" default:"64" validate:"gte=1"`
	CriticIterations int           `yaml:"critic_iterations" default:"5" validate:"gte=1"`
	Lambda           float64       `yaml:"lambda" default:"10" validate:"gte=0"`
	GeneratorLR      float64       `yaml:"generator_lr" default:"0.0001" validate:"gt=0"`
	CriticLR         float64       `yaml:"critic_lr" default:"0.0001" validate:"gt=0"`
	Beta1            float64       `yaml:"beta1" default:"0.5" validate:"gte=0,lt=1"`
	Beta2            float64       `yaml:"beta2" default:"0.9" validate:"gte=0,lt=1"`
	Shuffle          string        `yaml:"shuffle" default:"shuffle" validate:"oneof=shuffle sequential"`
	Seed             int64         `yaml:"seed" default:"42"`
	AbortOnNonFinite bool          `yaml:"abort_on_non_finite" default:"true"`
}

// ModelConfig sizes the networks.
type ModelConfig struct {
	GeneratorHidden int `yaml:"generator_hidden" default:"64" validate:"gte=1"`
	CriticHidden    int `yaml:"critic_hidden" default:"64" validate:"gte=1"`
	Outputs         int `yaml:"outputs" default:"1" validate:"eq=1"`
}

// ServingConfig controls the forecast endpoints.
type ServingConfig struct {
	RunID      string        `yaml:"run_id"`
	CacheTTL   time.Duration `yaml:"cache_ttl" default:"30s"`
	RedisCache bool          `yaml:"redis_cache"`
	RateLimit  float64       `yaml:"rate_limit" default:"20" validate:"gt=0"`
	RateBurst  int           `yaml:"rate_burst" default:"40" validate:"gte=1"`
	MaxBars    int           `yaml:"max_bars" default:"5000" validate:"gte=1"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file, applying defaults first.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes into a validated Config.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML config, then
// applies environment overrides and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FINGAN_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("FINGAN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FINGAN_SYMBOLS"); v != "" {
		c.Training.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("FINGAN_EPOCHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Training.Epochs = n
		}
	}
	if v := os.Getenv("FINGAN_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}
