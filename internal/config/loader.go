package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// parser converts a raw environment value into a value assignable to a field.
type parser func(raw string) (any, error)

// scalarParsers covers field types whose Kind alone is ambiguous.
var scalarParsers = map[reflect.Type]parser{
	reflect.TypeOf(time.Duration(0)): func(raw string) (any, error) {
		return time.ParseDuration(raw)
	},
	reflect.TypeOf(decimal.Decimal{}): func(raw string) (any, error) {
		return decimal.NewFromString(raw)
	},
}

// Load builds a Config from the process environment, filling unset
// variables from the default struct tags, and validates it.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if err := populate(reflect.ValueOf(cfg).Elem(), getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// binding is the environment lookup described by one field's tags.
type binding struct {
	names    []string
	fallback string
	required bool
}

func bindingFor(f reflect.StructField) (binding, bool) {
	primary := f.Tag.Get("env")
	if primary == "" {
		return binding{}, false
	}
	b := binding{
		names:    []string{primary},
		fallback: f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}
	if alt := f.Tag.Get("envAlt"); alt != "" {
		b.names = append(b.names, alt)
	}
	return b, true
}

// resolve returns the first non-empty variable, or the default.
func (b binding) resolve(getenv func(string) string) (string, error) {
	for _, name := range b.names {
		if v := getenv(name); v != "" {
			return v, nil
		}
	}
	if b.required {
		return "", fmt.Errorf("required environment variable %s is not set", b.names[0])
	}
	return b.fallback, nil
}

// populate walks the config sections and assigns every tagged field.
func populate(v reflect.Value, getenv func(string) string) error {
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if _, scalar := scalarParsers[sf.Type]; sf.Type.Kind() == reflect.Struct && !scalar {
			if err := populate(fv, getenv); err != nil {
				return err
			}
			continue
		}

		b, ok := bindingFor(sf)
		if !ok {
			continue
		}
		raw, err := b.resolve(getenv)
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}
		if err := assign(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", b.names[0], raw, err)
		}
	}
	return nil
}

func assign(fv reflect.Value, raw string) error {
	if p, ok := scalarParsers[fv.Type()]; ok {
		parsed, err := p(raw)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(parsed))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return fmt.Errorf("not an integer: %w", err)
		}
		fv.SetInt(n)
	case reflect.Bool:
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("not a boolean: %w", err)
		}
		fv.SetBool(on)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("cannot load []%s", fv.Type().Elem().Kind())
		}
		fv.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("cannot load %s", fv.Kind())
	}
	return nil
}

// splitList splits a comma-separated list, dropping blank entries.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// problems collects validation failures so all of them are reported at once.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
}

func oneOf(value string, allowed ...string) bool {
	value = strings.ToLower(value)
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate reports every invalid setting in a single error.
func (c *Config) Validate() error {
	var p problems

	db, srv, imp, lg := c.Database, c.Server, c.Import, c.Logging

	p.check(oneOf(imp.Store, StorePostgres, StoreMemory),
		"IMPORT_STORE (%q) must be one of: postgres, memory", imp.Store)
	p.check(!strings.EqualFold(imp.Store, StorePostgres) || db.URL != "",
		"DATABASE_URL is required when IMPORT_STORE is postgres")

	p.check(db.MaxConns >= db.MinConns,
		"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
	p.check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(db.MinConns >= 0, "DB_MIN_CONNS must be non-negative")

	p.check(srv.Port > 0 && srv.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", srv.Port)
	p.check(srv.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(srv.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	p.check(srv.RateLimit >= 0, "SERVER_RATE_LIMIT must be non-negative")
	p.check(srv.RateLimit == 0 || srv.RateWindow > 0,
		"SERVER_RATE_WINDOW must be positive when rate limiting is enabled")

	p.check(imp.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")
	p.check(imp.MaxConcurrent > 0, "IMPORT_MAX_CONCURRENT must be positive")
	p.check(imp.MaxWaitTime > 0, "IMPORT_MAX_WAIT_TIME must be positive")
	p.check(imp.Timeout > 0, "IMPORT_TIMEOUT must be positive")
	p.check(!imp.DefaultTaxRate.IsNegative() && imp.DefaultTaxRate.LessThanOrEqual(decimal.NewFromInt(1)),
		"IMPORT_DEFAULT_TAX_RATE (%s) must be between 0 and 1", imp.DefaultTaxRate)

	p.check(oneOf(lg.Level, "debug", "info", "warn", "error"),
		"LOG_LEVEL (%q) must be one of: debug, info, warn, error", lg.Level)
	p.check(oneOf(lg.Format, "text", "json"),
		"LOG_FORMAT (%q) must be one of: text, json", lg.Format)

	return p.err()
}

// String renders the config for startup logs with the database URL masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: {Host: %q, Port: %d}, Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, "+
			"Import: {Store: %q, MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s, DefaultTaxRate: %s}, "+
			"Logging: {Level: %q, Format: %q}}",
		c.Server.Host, c.Server.Port,
		c.Database.MaxConns, c.Database.MinConns,
		c.Import.Store, c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.Timeout, c.Import.DefaultTaxRate,
		c.Logging.Level, c.Logging.Format,
	)
}
