// Package config loads the server and importer settings from environment
// variables, applying tag defaults and validating the result once at startup.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Store backends accepted by IMPORT_STORE.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the full runtime configuration. Every field is read from the
// environment variable named in its env tag.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	// WriteTimeout defaults to none because an upload response is written
	// only after the whole run finishes.
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to every route except the upload itself.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies are comma-separated CIDRs or IPs allowed to set
	// X-Real-IP and X-Forwarded-For.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// RateLimit is requests per RateWindow per client IP. Zero disables it.
	RateLimit  int           `env:"SERVER_RATE_LIMIT" default:"100"`
	RateWindow time.Duration `env:"SERVER_RATE_WINDOW" default:"1m"`
}

type DatabaseConfig struct {
	// URL is required with the postgres store. DB_URL is accepted as an alias.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

type ImportConfig struct {
	// Store is StorePostgres or StoreMemory.
	Store string `env:"IMPORT_STORE" default:"postgres"`

	MaxFileSize   int64         `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`
	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" default:"1"`
	MaxWaitTime   time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`
	Timeout       time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// DefaultTaxRate applies to sales rows with an empty TaxRate cell.
	DefaultTaxRate decimal.Decimal `env:"IMPORT_DEFAULT_TAX_RATE" default:"0.19"`

	AutoMigrate bool `env:"IMPORT_AUTO_MIGRATE" default:"true"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
