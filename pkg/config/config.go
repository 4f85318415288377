package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Scenarios struct {
		// Source is "file" or "http".
		Source  string        `yaml:"source" default:"file" validate:"oneof=file http"`
		Path    string        `yaml:"path" default:"config/scenarios.yaml"`
		URL     string        `yaml:"url" validate:"omitempty,url"`
		Timeout time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"scenarios"`
	Cache struct {
		// Type is "none", "memory", "redis" or "layered".
		Type     string        `yaml:"type" default:"memory" validate:"oneof=none memory redis layered"`
		TTL      time.Duration `yaml:"ttl" default:"5m"`
		MaxSize  int           `yaml:"max_size" default:"128"`
		Addr     string        `yaml:"addr" default:"localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"forecastdrill"`
	} `yaml:"cache"`
	Attempts struct {
		TTL             time.Duration `yaml:"ttl" default:"30m"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
		StartLevel      int           `yaml:"start_level" default:"1" validate:"gte=1,lte=5"`
	} `yaml:"attempts"`
	RateLimit struct {
		Enabled bool    `yaml:"enabled" default:"true"`
		RPS     float64 `yaml:"rps" default:"10" validate:"gt=0"`
		Burst   int     `yaml:"burst" default:"20" validate:"gte=1"`
	} `yaml:"ratelimit"`
	Results struct {
		BufferSize   int           `yaml:"buffer_size" default:"1024" validate:"gte=1"`
		RetryMin     time.Duration `yaml:"retry_min" default:"200ms"`
		RetryMax     time.Duration `yaml:"retry_max" default:"10s"`
		FlushTimeout time.Duration `yaml:"flush_timeout" default:"5s"`
	} `yaml:"results"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
		Topic        string   `yaml:"topic" default:"forecastdrill.results"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			// Enabled feeds the progress tracker from the results topic
			// instead of in-process delivery.
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"forecastdrill-progress"`
			Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"forecastdrill.results.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
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

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FORECASTDRILL_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("FORECASTDRILL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv("FORECASTDRILL_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("SCENARIOS_PATH"); v != "" {
		c.Scenarios.Source = "file"
		c.Scenarios.Path = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Addr = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Scenarios.Source == "http" && c.Scenarios.URL == "" {
		return fmt.Errorf("scenarios.url is required for the http source")
	}
	if c.Results.RetryMin > c.Results.RetryMax {
		return fmt.Errorf("results.retry_min must not exceed results.retry_max")
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer.enabled requires kafka.enabled")
	}
	return nil
}
