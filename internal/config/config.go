package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	ProductDB ProductDBConfig
	Queue     QueueConfig
	Sync      SyncConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"storesync-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKey      string `envconfig:"API_KEY" default:""` // inbound API key for the sync endpoints
}

// CacheConfig holds cache settings for the sync result store and token cache.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// SyncResultTTL bounds how long a sync id stays pollable.
	SyncResultTTL time.Duration `envconfig:"SYNC_RESULT_TTL" default:"24h"`
}

// DatabaseConfig holds MySQL connection settings (licenses and failed_jobs).
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"storesync"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// ProductDBConfig holds the products table database settings.
type ProductDBConfig struct {
	Type string `envconfig:"PRODUCT_DB_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path string `envconfig:"PRODUCT_DB_PATH" default:"./data/products.db"`
	// PostgreSQL settings
	Host     string `envconfig:"PRODUCT_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"PRODUCT_DB_PORT" default:"5432"`
	Name     string `envconfig:"PRODUCT_DB_NAME" default:"storesync"`
	User     string `envconfig:"PRODUCT_DB_USER" default:"postgres"`
	Password string `envconfig:"PRODUCT_DB_PASS" default:""`
	SSLMode  string `envconfig:"PRODUCT_DB_SSLMODE" default:"disable"`
}

// QueueConfig holds job queue settings.
type QueueConfig struct {
	Type string `envconfig:"QUEUE_TYPE" default:"memory"` // memory or redis

	// WorkersPerQueue is how many concurrent workers consume each named queue.
	WorkersPerQueue int `envconfig:"QUEUE_WORKERS" default:"2"`

	// PollInterval is how often a worker checks for due jobs.
	PollInterval time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"500ms"`

	// RetryInterval is how often dead-lettered jobs are requeued.
	RetryInterval time.Duration `envconfig:"QUEUE_RETRY_INTERVAL" default:"10m"`

	// MaxRequeues caps how many times a dead-lettered job is given back to
	// the queue before it is abandoned.
	MaxRequeues int `envconfig:"QUEUE_MAX_REQUEUES" default:"3"`
}

// SyncConfig holds tunables for the batch-update pipeline.
type SyncConfig struct {
	ChunkSize        int           `envconfig:"SYNC_CHUNK_SIZE" default:"50"`
	ChunkBaseDelay   time.Duration `envconfig:"SYNC_CHUNK_BASE_DELAY" default:"5s"`
	PerChunkDelay    time.Duration `envconfig:"SYNC_PER_CHUNK_DELAY" default:"10s"`
	PageSize         int           `envconfig:"SYNC_PAGE_SIZE" default:"100"`
	PagePause        time.Duration `envconfig:"SYNC_PAGE_PAUSE" default:"1s"`
	ItemPause        time.Duration `envconfig:"SYNC_ITEM_PAUSE" default:"500ms"`
	FetchBudget      time.Duration `envconfig:"SYNC_FETCH_BUDGET" default:"4m"`
	WarehouseTimeout time.Duration `envconfig:"SYNC_WAREHOUSE_TIMEOUT" default:"30s"`
	StoreTimeout     time.Duration `envconfig:"SYNC_STORE_TIMEOUT" default:"60s"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (p *ProductDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
