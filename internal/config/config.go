package config

import (
	"errors"
	"fmt"
	"os"

	"sparkleclean/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Notify     NotifyConfig     `yaml:"notify"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
	Services   []models.Service `yaml:"services"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// StoreConfig selects the booking record store backend. Exactly one of the
// three backends is active; failover optionally layers the sqlite store under
// a remote backend.
type StoreConfig struct {
	Backend  string       `yaml:"backend"` // sqlite, blob, rest
	Failover bool         `yaml:"failover"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
	Blob     BlobConfig   `yaml:"blob"`
	REST     RESTConfig   `yaml:"rest"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type BlobConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RESTConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SessionConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type NotifyConfig struct {
	Enabled        bool           `yaml:"enabled"`
	Endpoint       string         `yaml:"endpoint"`
	APIKey         string         `yaml:"api_key"`
	Model          string         `yaml:"model"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	Telegram       TelegramConfig `yaml:"telegram"`
	Retry          RetryConfig    `yaml:"retry"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	OwnerChatID int64  `yaml:"owner_chat_id"`
}

type RetryConfig struct {
	MaxRetries          int     `yaml:"max_retries"`
	InitialDelaySeconds int     `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int     `yaml:"max_delay_seconds"`
	BackoffFactor       float64 `yaml:"backoff_factor"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables referenced in the YAML must be
	// set one way or another before expansion.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return errors.New("store.sqlite.path is required for the sqlite backend")
		}
	case "blob":
		if c.Store.Blob.URL == "" {
			return errors.New("store.blob.url is required for the blob backend")
		}
	case "rest":
		if c.Store.REST.BaseURL == "" {
			return errors.New("store.rest.base_url is required for the rest backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.Failover && c.Store.Backend != "sqlite" && c.Store.SQLite.Path == "" {
		return errors.New("store.failover requires store.sqlite.path for the fallback")
	}

	if c.Notify.Enabled && c.Notify.Endpoint == "" {
		return errors.New("notify.endpoint is required when notifications are enabled")
	}

	return ValidateServices(c.Services)
}

// ValidateServices rejects catalogs with missing or duplicate identifiers.
func ValidateServices(services []models.Service) error {
	seen := make(map[string]bool)
	for _, svc := range services {
		if svc.ID == "" {
			return fmt.Errorf("service %q has an empty id", svc.Title)
		}
		if seen[svc.ID] {
			return fmt.Errorf("duplicate service id found: %s", svc.ID)
		}
		seen[svc.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit.RPS == 0 {
		c.Server.RateLimit.RPS = float64(models.RateLimitRequests) / float64(models.RateLimitWindow)
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 5
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Session.TTLSeconds == 0 {
		c.Session.TTLSeconds = models.DefaultSessionTTL
	}
	if c.Store.Blob.TimeoutSeconds == 0 {
		c.Store.Blob.TimeoutSeconds = 15
	}
	if c.Store.REST.TimeoutSeconds == 0 {
		c.Store.REST.TimeoutSeconds = 15
	}
	if c.Notify.TimeoutSeconds == 0 {
		c.Notify.TimeoutSeconds = models.NotifyTimeoutSeconds
	}
	if c.Notify.Model == "" {
		c.Notify.Model = "gemini-2.5-flash"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
