// Package config loads the server configuration from a YAML file with
// environment overrides for the secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all crmsms configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Gate        GateConfig        `yaml:"gate"`
	Warehouse   WarehouseConfig   `yaml:"warehouse"`
	Schema      SchemaConfig      `yaml:"schema"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Pricing     PricingConfig     `yaml:"pricing"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// GateConfig holds the shared-secret password gate.
type GateConfig struct {
	Password string `yaml:"password"`
}

// WarehouseConfig configures the relational query service connection.
type WarehouseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	QueryCacheTTL   string `yaml:"query_cache_ttl"`
}

// SchemaConfig names the warehouse objects the queries run against. The
// contact-identifier column differs between deployments and is configurable.
type SchemaConfig struct {
	AccountTable string `yaml:"account_table"`
	ShopTable    string `yaml:"shop_table"`
	SalesTable   string `yaml:"sales_table"`
	CIDColumn    string `yaml:"cid_column"`
}

// EligibilityConfig expresses the per-deployment account status rule on top
// of the base predicate (not dormant, opted into messaging).
type EligibilityConfig struct {
	ExcludeStatuses []string `yaml:"exclude_statuses"`
	RequireStatus   string   `yaml:"require_status"`
}

// PricingConfig holds the fixed per-message unit cost used for campaign
// spend estimates.
type PricingConfig struct {
	UnitCost float64 `yaml:"unit_cost"`
}

// Identifiers interpolated into SQL text are restricted to this shape.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// Default returns the configuration used when the file omits a field.
func Default() Config {
	return Config{
		Server: ServerConfig{Listen: ":8080"},
		Warehouse: WarehouseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: "30m",
			QueryCacheTTL:   "300s",
		},
		Schema: SchemaConfig{
			AccountTable: "account",
			ShopTable:    "db_shop",
			SalesTable:   "sales_order",
			CIDColumn:    "cid",
		},
		Pricing: PricingConfig{UnitCost: 23.5},
	}
}

// LoadDefault behaves like Load but tolerates a missing file at the given
// path, so the server can run on defaults plus environment variables alone.
// Used for the flag's default path; an explicitly passed path goes through
// Load and still fails loudly when absent.
func LoadDefault(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	return Load(path)
}

// Load reads the YAML file at path (skipped when empty), applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CRMSMS_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("CRMSMS_GATE_PASSWORD"); v != "" {
		c.Gate.Password = v
	}
	if v := os.Getenv("CRMSMS_WAREHOUSE_DSN"); v != "" {
		c.Warehouse.DSN = v
	}
}

// Validate checks required fields and identifier shapes.
func (c *Config) Validate() error {
	if c.Gate.Password == "" {
		return fmt.Errorf("gate.password is required (or CRMSMS_GATE_PASSWORD)")
	}
	if c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required (or CRMSMS_WAREHOUSE_DSN)")
	}
	if c.Pricing.UnitCost <= 0 {
		return fmt.Errorf("pricing.unit_cost must be positive")
	}
	for name, id := range map[string]string{
		"schema.account_table": c.Schema.AccountTable,
		"schema.shop_table":    c.Schema.ShopTable,
		"schema.sales_table":   c.Schema.SalesTable,
		"schema.cid_column":    c.Schema.CIDColumn,
	} {
		if !identPattern.MatchString(id) {
			return fmt.Errorf("%s: invalid identifier %q", name, id)
		}
	}
	if _, err := time.ParseDuration(c.Warehouse.QueryCacheTTL); err != nil {
		return fmt.Errorf("warehouse.query_cache_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Warehouse.ConnMaxLifetime); err != nil {
		return fmt.Errorf("warehouse.conn_max_lifetime: %w", err)
	}
	return nil
}

// CacheTTL returns the parsed query cache window. Validate has already
// checked the string.
func (c WarehouseConfig) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.QueryCacheTTL)
	return d
}

// MaxLifetime returns the parsed connection lifetime.
func (c WarehouseConfig) MaxLifetime() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}
