package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-etl/internal/logger"
)

// SourceConfig describes the forecast endpoint.
type SourceConfig struct {
	URL         string        `yaml:"url" validate:"required,url"`
	APIKey      string        `yaml:"api_key" validate:"required"`
	City        string        `yaml:"city"`
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`
}

// StoreConfig describes the staging collection. Either URI or the
// username/password/cluster triple must be set.
type StoreConfig struct {
	URI        string        `yaml:"uri"`
	Username   string        `yaml:"username" validate:"required_without=URI"`
	Password   string        `yaml:"password" validate:"required_without=URI"`
	Cluster    string        `yaml:"cluster" validate:"required_without=URI"`
	Database   string        `yaml:"database" validate:"required"`
	Collection string        `yaml:"collection" validate:"required"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`

	// MaxConsecutiveFailures opens the write breaker; 0 disables it.
	MaxConsecutiveFailures uint32 `yaml:"max_consecutive_failures"`
}

// LockConfig enables the Redis run lock when Addr is set.
type LockConfig struct {
	Addr     string        `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	Password string        `yaml:"redis_password"`
	Key      string        `yaml:"key" validate:"required"`
	TTL      time.Duration `yaml:"ttl" validate:"gt=0"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
}

// WarehouseConfig points at the replicated analytical table.
type WarehouseConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=sqlite postgres mysql"`
	DSN    string `yaml:"dsn" validate:"required"`
	Table  string `yaml:"table" validate:"required"`
}

type ServerConfig struct {
	Port string `yaml:"port" validate:"required,numeric"`
}

// AppConfig is loaded once per process and passed down explicitly.
type AppConfig struct {
	Source    SourceConfig    `yaml:"source"`
	Store     StoreConfig     `yaml:"store"`
	Lock      LockConfig      `yaml:"lock"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Server    ServerConfig    `yaml:"server"`

	LogLevel string `yaml:"log_level"`
}

var validate = validator.New()

// Defaults returns the configuration used before any file or environment is applied.
func Defaults() *AppConfig {
	return &AppConfig{
		Source: SourceConfig{HTTPTimeout: 20 * time.Second},
		Store:  StoreConfig{Timeout: 10 * time.Second},
		Lock: LockConfig{
			Key: "weather-etl:ingest",
			TTL: 10 * time.Minute,
		},
		Warehouse: WarehouseConfig{Table: "weather"},
		Server:    ServerConfig{Port: "8080"},
		LogLevel:  "INFO",
	}
}

// Load reads configuration: defaults, then the optional YAML file at path
// (with ${VAR} expansion), then environment variables. Sections are not
// validated here; each command validates the ones it needs.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	var err error

	cfg.Source.URL = getenvDefault("WEATHER_API_URL", cfg.Source.URL)
	cfg.Source.APIKey = getenvDefault("WEATHER_API_KEY", cfg.Source.APIKey)
	cfg.Source.City = getenvDefault("WEATHER_CITY", cfg.Source.City)
	if cfg.Source.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", cfg.Source.HTTPTimeout); err != nil {
		return err
	}

	cfg.Store.URI = getenvDefault("MONGO_URI", cfg.Store.URI)
	cfg.Store.Username = getenvDefault("MONGO_USERNAME", cfg.Store.Username)
	cfg.Store.Password = getenvDefault("MONGO_PASSWORD", cfg.Store.Password)
	cfg.Store.Cluster = getenvDefault("MONGO_CLUSTER", cfg.Store.Cluster)
	cfg.Store.Database = getenvDefault("MONGO_DATABASE", cfg.Store.Database)
	cfg.Store.Collection = getenvDefault("MONGO_COLLECTION", cfg.Store.Collection)
	if cfg.Store.Timeout, err = getenvDuration("MONGO_TIMEOUT", cfg.Store.Timeout); err != nil {
		return err
	}
	n, err := getenvInt("STORE_MAX_CONSECUTIVE_FAILURES", int(cfg.Store.MaxConsecutiveFailures))
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("invalid STORE_MAX_CONSECUTIVE_FAILURES: %d is negative", n)
	}
	cfg.Store.MaxConsecutiveFailures = uint32(n)

	cfg.Lock.Addr = getenvDefault("LOCK_REDIS_ADDR", cfg.Lock.Addr)
	cfg.Lock.Password = getenvDefault("LOCK_REDIS_PASSWORD", cfg.Lock.Password)
	cfg.Lock.Key = getenvDefault("LOCK_KEY", cfg.Lock.Key)
	if cfg.Lock.TTL, err = getenvDuration("LOCK_TTL", cfg.Lock.TTL); err != nil {
		return err
	}

	cfg.Metrics.PushgatewayURL = getenvDefault("PUSHGATEWAY_URL", cfg.Metrics.PushgatewayURL)

	cfg.Warehouse.Driver = getenvDefault("WAREHOUSE_DRIVER", cfg.Warehouse.Driver)
	cfg.Warehouse.DSN = getenvDefault("WAREHOUSE_DSN", cfg.Warehouse.DSN)
	cfg.Warehouse.Table = getenvDefault("WAREHOUSE_TABLE", cfg.Warehouse.Table)

	cfg.Server.Port = getenvDefault("PORT", cfg.Server.Port)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	return nil
}

// ValidateIngest checks the sections an ingestion run reads.
func (c *AppConfig) ValidateIngest() error {
	return validateSections(map[string]any{
		"source":  c.Source,
		"store":   c.Store,
		"lock":    c.Lock,
		"metrics": c.Metrics,
	})
}

// ValidateDryRun is ValidateIngest without the staging store.
func (c *AppConfig) ValidateDryRun() error {
	return validateSections(map[string]any{
		"source": c.Source,
	})
}

// ValidateWarehouse checks the sections the report and serve commands read.
func (c *AppConfig) ValidateWarehouse() error {
	return validateSections(map[string]any{
		"warehouse": c.Warehouse,
	})
}

func (c *AppConfig) ValidateServer() error {
	return validateSections(map[string]any{
		"warehouse": c.Warehouse,
		"server":    c.Server,
	})
}

func validateSections(sections map[string]any) error {
	var errs []error
	for name, section := range sections {
		if err := validate.Struct(section); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s config: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// MongoURI returns Store.URI when set, otherwise an Atlas mongodb+srv URI
// assembled from the username, password and cluster host.
func (c StoreConfig) MongoURI() string {
	if c.URI != "" {
		return c.URI
	}
	return fmt.Sprintf("mongodb+srv://%s:%s@%s/?authSource=admin&retryWrites=true&w=majority",
		url.QueryEscape(c.Username), url.QueryEscape(c.Password), c.Cluster)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
