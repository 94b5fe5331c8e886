package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ScannerConfig declares one catalog entry: which scanner to run, how
// much its vote counts, and the parameter overrides handed to its
// factory.
type ScannerConfig struct {
	ID      string                 `yaml:"id"`
	Weight  float64                `yaml:"weight"`
	Enabled bool                   `yaml:"enabled"`
	Params  map[string]interface{} `yaml:"params"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Execution struct {
		Symbols     []string      `yaml:"symbols"`
		Method      string        `yaml:"method"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxWorkers  int           `yaml:"max_workers"`
		Parallel    bool          `yaml:"parallel"`
		MinScanners int           `yaml:"min_scanners"`
		Lookback    time.Duration `yaml:"lookback"`
	} `yaml:"execution"`
	Scanners []ScannerConfig `yaml:"scanners"`
	Redis    struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Queue    struct {
			Workers      int           `yaml:"workers"`
			PollInterval time.Duration `yaml:"poll_interval"`
			MaxRetries   int           `yaml:"max_retries"`
			JobTTL       time.Duration `yaml:"job_ttl"`
		} `yaml:"queue"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			RequestsTopic string        `yaml:"requests_topic"`
			GroupID       string        `yaml:"group_id"`
			Workers       int           `yaml:"workers"`
			BufferSize    int           `yaml:"buffer_size"`
			RetryMax      int           `yaml:"retry_max"`
			BackoffMin    time.Duration `yaml:"backoff_min"`
			BackoffMax    time.Duration `yaml:"backoff_max"`
			DLQTopic      string        `yaml:"dlq_topic"`
			MinBytes      int           `yaml:"min_bytes"`
			MaxBytes      int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	MarketData struct {
		BaseURL        string        `yaml:"base_url"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Timeout        time.Duration `yaml:"timeout"`
		RatePerSecond  float64       `yaml:"rate_per_second"`
		RateBurst      int           `yaml:"rate_burst"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		CacheTTL       struct {
			Candles time.Duration `yaml:"candles"`
			Grouped time.Duration `yaml:"grouped"`
		} `yaml:"cache_ttl"`
	} `yaml:"marketdata"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
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

	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Execution.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Scanners) == 0 {
		return fmt.Errorf("scanners cannot be empty")
	}
	seen := make(map[string]bool, len(c.Scanners))
	for _, s := range c.Scanners {
		if s.ID == "" {
			return fmt.Errorf("scanner id is required")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate scanner id '%s'", s.ID)
		}
		seen[s.ID] = true
		if s.Weight < 0 {
			return fmt.Errorf("scanner '%s': weight cannot be negative", s.ID)
		}
	}
	switch c.Execution.Method {
	case "", "union", "intersection", "weighted", "custom":
	default:
		return fmt.Errorf("execution.method must be union, intersection, weighted or custom, got '%s'", c.Execution.Method)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
