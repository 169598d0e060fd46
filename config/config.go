package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Storage struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"storage"`

	SQLite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`

	ClickHouse struct {
		Addr        string `mapstructure:"addr"`
		Database    string `mapstructure:"database"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		TLS         bool   `mapstructure:"tls"`
		MaxPoolSize int    `mapstructure:"max_pool_size"`
	} `mapstructure:"clickhouse"`

	Feed struct {
		Transport string `mapstructure:"transport"`
	} `mapstructure:"feed"`

	NATS struct {
		URL           string        `mapstructure:"url"`
		Subject       string        `mapstructure:"subject"`
		QueueGroup    string        `mapstructure:"queue_group"`
		Name          string        `mapstructure:"name"`
		ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	} `mapstructure:"nats"`

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
		GroupID string   `mapstructure:"group_id"`
	} `mapstructure:"kafka"`

	Rules struct {
		Path         string        `mapstructure:"path"`
		RegexTimeout time.Duration `mapstructure:"regex_timeout"`
	} `mapstructure:"rules"`

	Correlation struct {
		Enabled  bool          `mapstructure:"enabled"`
		Period   time.Duration `mapstructure:"period"`
		Lookback time.Duration `mapstructure:"lookback"`
	} `mapstructure:"correlation"`

	Notifications struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		MinSeverity string        `mapstructure:"min_severity"`
		RateLimit   float64       `mapstructure:"rate_limit"`

		CircuitBreaker struct {
			MaxFailures uint32        `mapstructure:"max_failures"`
			Timeout     time.Duration `mapstructure:"timeout"`
		} `mapstructure:"circuit_breaker"`

		Email struct {
			Enabled  bool     `mapstructure:"enabled"`
			SMTPHost string   `mapstructure:"smtp_host"`
			SMTPPort int      `mapstructure:"smtp_port"`
			Username string   `mapstructure:"username"`
			Password string   `mapstructure:"password"`
			From     string   `mapstructure:"from"`
			To       []string `mapstructure:"to"`
		} `mapstructure:"email"`

		Slack struct {
			Enabled    bool   `mapstructure:"enabled"`
			WebhookURL string `mapstructure:"webhook_url"`
		} `mapstructure:"slack"`

		Webhook struct {
			Enabled bool              `mapstructure:"enabled"`
			URL     string            `mapstructure:"url"`
			Headers map[string]string `mapstructure:"headers"`
		} `mapstructure:"webhook"`

		Redis struct {
			Enabled  bool   `mapstructure:"enabled"`
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
			Channel  string `mapstructure:"channel"`
		} `mapstructure:"redis"`
	} `mapstructure:"notifications"`

	Collector struct {
		UDPAddr       string  `mapstructure:"udp_addr"`
		TCPAddr       string  `mapstructure:"tcp_addr"`
		RateLimit     float64 `mapstructure:"rate_limit"`
		Burst         int     `mapstructure:"burst"`
		MaxSources    int     `mapstructure:"max_sources"`
		MaxLineLength int     `mapstructure:"max_line_length"`
	} `mapstructure:"collector"`

	API struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"api"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// Storage drivers
const (
	DriverSQLite     = "sqlite"
	DriverClickHouse = "clickhouse"
)

// Feed transports
const (
	TransportNATS  = "nats"
	TransportKafka = "kafka"
)

func setDefaults() {
	viper.SetDefault("storage.driver", DriverSQLite)
	viper.SetDefault("sqlite.path", "data/argus.db")

	viper.SetDefault("clickhouse.addr", "localhost:9000")
	viper.SetDefault("clickhouse.database", "argus")
	viper.SetDefault("clickhouse.username", "default")
	viper.SetDefault("clickhouse.password", "")
	viper.SetDefault("clickhouse.tls", false)
	viper.SetDefault("clickhouse.max_pool_size", 10)

	viper.SetDefault("feed.transport", TransportNATS)
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subject", "syslog.raw")
	viper.SetDefault("nats.queue_group", "")
	viper.SetDefault("nats.name", "argus")
	viper.SetDefault("nats.reconnect_wait", 2*time.Second)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "syslog.raw")
	viper.SetDefault("kafka.group_id", "argus")

	viper.SetDefault("rules.path", "config/rules.yaml")
	viper.SetDefault("rules.regex_timeout", 500*time.Millisecond)

	viper.SetDefault("correlation.enabled", true)
	viper.SetDefault("correlation.period", 60*time.Second)
	viper.SetDefault("correlation.lookback", 5*time.Minute)

	viper.SetDefault("notifications.timeout", 10*time.Second)
	viper.SetDefault("notifications.min_severity", "low")
	viper.SetDefault("notifications.rate_limit", 10.0)
	viper.SetDefault("notifications.circuit_breaker.max_failures", 5)
	viper.SetDefault("notifications.circuit_breaker.timeout", 60*time.Second)
	viper.SetDefault("notifications.email.smtp_port", 587)
	viper.SetDefault("notifications.redis.addr", "localhost:6379")
	viper.SetDefault("notifications.redis.channel", "argus.alerts")

	viper.SetDefault("collector.udp_addr", ":514")
	viper.SetDefault("collector.tcp_addr", ":514")
	viper.SetDefault("collector.rate_limit", 1000.0)
	viper.SetDefault("collector.burst", 2000)
	viper.SetDefault("collector.max_sources", 10000)
	viper.SetDefault("collector.max_line_length", 65536)

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

func loadFromEnv() {
	viper.SetEnvPrefix("ARGUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("sqlite.path", "ARGUS_SQLITE_PATH")
	_ = viper.BindEnv("rules.path", "ARGUS_RULES_PATH")
	_ = viper.BindEnv("nats.url", "ARGUS_NATS_URL", "NATS_URL")
}

// LoadConfig loads configuration from file (if present), environment and defaults.
// An empty path searches for config.yaml in . and ./config.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func validateConfig(config *Config) error {
	switch config.Storage.Driver {
	case DriverSQLite:
		if config.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required when storage.driver is %s", DriverSQLite)
		}
	case DriverClickHouse:
		if config.ClickHouse.Addr == "" {
			return fmt.Errorf("clickhouse.addr is required when storage.driver is %s", DriverClickHouse)
		}
		if config.ClickHouse.MaxPoolSize < 1 {
			return fmt.Errorf("invalid clickhouse.max_pool_size: %d (must be >= 1)", config.ClickHouse.MaxPoolSize)
		}
	default:
		return fmt.Errorf("invalid storage.driver %q (must be %s or %s)", config.Storage.Driver, DriverSQLite, DriverClickHouse)
	}

	switch config.Feed.Transport {
	case TransportNATS:
		if config.NATS.URL == "" || config.NATS.Subject == "" {
			return fmt.Errorf("nats.url and nats.subject are required when feed.transport is %s", TransportNATS)
		}
	case TransportKafka:
		if len(config.Kafka.Brokers) == 0 || config.Kafka.Topic == "" || config.Kafka.GroupID == "" {
			return fmt.Errorf("kafka.brokers, kafka.topic and kafka.group_id are required when feed.transport is %s", TransportKafka)
		}
	default:
		return fmt.Errorf("invalid feed.transport %q (must be %s or %s)", config.Feed.Transport, TransportNATS, TransportKafka)
	}

	if config.Rules.Path == "" {
		return fmt.Errorf("rules.path is required")
	}
	if config.Rules.RegexTimeout <= 0 {
		return fmt.Errorf("invalid rules.regex_timeout: %s (must be > 0)", config.Rules.RegexTimeout)
	}

	if config.Correlation.Period <= 0 {
		return fmt.Errorf("invalid correlation.period: %s (must be > 0)", config.Correlation.Period)
	}
	if config.Correlation.Lookback <= 0 {
		return fmt.Errorf("invalid correlation.lookback: %s (must be > 0)", config.Correlation.Lookback)
	}

	switch config.Notifications.MinSeverity {
	case "low", "medium", "high", "critical":
	default:
		return fmt.Errorf("invalid notifications.min_severity %q", config.Notifications.MinSeverity)
	}
	if config.Notifications.Email.Enabled {
		if config.Notifications.Email.SMTPHost == "" || len(config.Notifications.Email.To) == 0 {
			return fmt.Errorf("notifications.email requires smtp_host and at least one recipient")
		}
		if config.Notifications.Email.SMTPPort < 1 || config.Notifications.Email.SMTPPort > 65535 {
			return fmt.Errorf("invalid SMTP port: %d (must be 1-65535)", config.Notifications.Email.SMTPPort)
		}
	}
	if config.Notifications.Slack.Enabled && config.Notifications.Slack.WebhookURL == "" {
		return fmt.Errorf("notifications.slack.webhook_url is required when slack is enabled")
	}
	if config.Notifications.Webhook.Enabled && config.Notifications.Webhook.URL == "" {
		return fmt.Errorf("notifications.webhook.url is required when webhook is enabled")
	}
	if config.Notifications.Redis.Enabled && config.Notifications.Redis.Channel == "" {
		return fmt.Errorf("notifications.redis.channel is required when redis is enabled")
	}

	if config.API.Enabled && (config.API.Port < 1 || config.API.Port > 65535) {
		return fmt.Errorf("invalid API port: %d (must be 1-65535)", config.API.Port)
	}

	if config.Collector.RateLimit <= 0 || config.Collector.Burst < 1 {
		return fmt.Errorf("collector.rate_limit and collector.burst must be positive")
	}
	if config.Collector.MaxSources < 1 {
		return fmt.Errorf("invalid collector.max_sources: %d (must be >= 1)", config.Collector.MaxSources)
	}

	return nil
}
