// Package config loads the server configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/knjiznica/internal/model"
)

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	Circulation CirculationConfig `yaml:"circulation"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	AdminUser string `yaml:"admin_user"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Path string `yaml:"path"`
}

// CirculationConfig holds the lending policy.
type CirculationConfig struct {
	LoanDays      int    `yaml:"loan_days"`
	FinePerDay    string `yaml:"fine_per_day"`
	Currency      string `yaml:"currency"`
	SweepInterval string `yaml:"sweep_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080", AdminUser: "Admin"},
		Database: DatabaseConfig{Path: "knjiznica.sqlite3"},
		Circulation: CirculationConfig{
			LoanDays:      14,
			FinePerDay:    "0.50",
			Currency:      "EUR",
			SweepInterval: "1h",
		},
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every value that is parsed later.
func (c *Config) Validate() error {
	if c.Circulation.LoanDays <= 0 {
		return fmt.Errorf("circulation.loan_days must be positive, got %d", c.Circulation.LoanDays)
	}
	if _, err := c.FineRate(); err != nil {
		return err
	}
	if _, err := currency.ParseISO(c.Circulation.Currency); err != nil {
		return fmt.Errorf("circulation.currency: %w", err)
	}
	if _, err := c.SweepInterval(); err != nil {
		return err
	}
	return nil
}

// LoanPeriod is the default time between issue and due date.
func (c *Config) LoanPeriod() time.Duration {
	return time.Duration(c.Circulation.LoanDays) * 24 * time.Hour
}

// FineRate is the per-day fine in minor units.
func (c *Config) FineRate() (model.Money, error) {
	rate, err := model.ParseMoney(c.Circulation.FinePerDay)
	if err != nil {
		return 0, fmt.Errorf("circulation.fine_per_day: %w", err)
	}
	return rate, nil
}

// SweepInterval is how often the overdue sweep runs. Zero disables it.
func (c *Config) SweepInterval() (time.Duration, error) {
	if c.Circulation.SweepInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Circulation.SweepInterval)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("circulation.sweep_interval: invalid duration %q", c.Circulation.SweepInterval)
	}
	return d, nil
}
