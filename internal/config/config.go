// Package config loads pocketbank.yaml layered with POCKETBANK_* environment
// variables and an optional .env file next to it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/pocketbank/internal/money"
)

// FileName is the name of the config file inside the data directory.
const FileName = "pocketbank.yaml"

// EnvPrefix prefixes environment overrides, e.g. POCKETBANK_LOG_LEVEL.
const EnvPrefix = "POCKETBANK"

// Config represents the top-level pocketbank.yaml configuration.
type Config struct {
	// Database is the ledger file. A relative path is resolved against the
	// directory of the config file.
	Database string    `mapstructure:"database" yaml:"database"`
	AutoSave bool      `mapstructure:"auto_save" yaml:"auto_save"`
	Currency string    `mapstructure:"currency" yaml:"currency"`
	Log      LogConfig `mapstructure:"log" yaml:"log"`
	CSV      CSVConfig `mapstructure:"csv" yaml:"csv"`

	// LastAccount is the account selected when the program last exited.
	LastAccount string `mapstructure:"last_account" yaml:"last_account,omitempty"`
	// IntegrationEnabled is handed to the ledger for collaborators that
	// reconcile across accounts.
	IntegrationEnabled bool `mapstructure:"integration_enabled" yaml:"integration_enabled"`
	// PerformRecurring materializes due recurring transactions on open.
	PerformRecurring bool `mapstructure:"perform_recurring" yaml:"perform_recurring"`

	// file is where the config was loaded from, empty for Default.
	file string
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// CSVConfig controls import and export.
type CSVConfig struct {
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
}

// Default returns a Config with sensible defaults for a new ledger.
func Default() *Config {
	return &Config{
		Database:         "ledger.db",
		AutoSave:         true,
		Currency:         money.DefaultCurrency.Code(),
		Log:              LogConfig{Level: "info", Format: "text"},
		CSV:              CSVConfig{Delimiter: ","},
		PerformRecurring: true,
	}
}

// DefaultDir is the data directory used when no config path is given.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pocketbank"
	}
	return filepath.Join(home, ".pocketbank")
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string { return filepath.Join(DefaultDir(), FileName) }

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("database", d.Database)
	v.SetDefault("auto_save", d.AutoSave)
	v.SetDefault("currency", d.Currency)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("csv.delimiter", d.CSV.Delimiter)
	v.SetDefault("last_account", "")
	v.SetDefault("integration_enabled", d.IntegrationEnabled)
	v.SetDefault("perform_recurring", d.PerformRecurring)
}

// Load reads the config at path. A missing file yields the defaults, still
// subject to environment overrides.
func Load(path string) (*Config, error) {
	dir := filepath.Dir(path)
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.file = path
	return &cfg, nil
}

// File returns the path the config was loaded from.
func (c *Config) File() string { return c.file }

// DatabasePath resolves Database against the directory of the config file.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database) || c.file == "" {
		return c.Database
	}
	return filepath.Join(filepath.Dir(c.file), c.Database)
}

// Validate checks the values Load cannot check by type alone.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("database path is empty")
	}
	if _, err := money.Lookup(c.Currency); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.Log.Format)
	}
	if utf8.RuneCountInString(c.CSV.Delimiter) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %q", c.CSV.Delimiter)
	}
	return nil
}

// CurrencyValue returns the configured currency as a table entry.
func (c *Config) CurrencyValue() money.Currency {
	cur, err := money.Lookup(c.Currency)
	if err != nil {
		return money.DefaultCurrency
	}
	return cur
}

// Delimiter returns the CSV delimiter as a rune.
func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.CSV.Delimiter)
	return r
}

// Save writes a Config to a YAML file, creating its directory.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveLastAccount sets last_account in the file at path and leaves every
// other key as written there. An empty name removes the key. Environment and
// flag overrides are not persisted. Nothing is written when the file is
// missing.
func SaveLastAccount(path, name string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: %s is not a mapping", path)
	}
	setKey(root, "last_account", name)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// setKey sets key to a string value in a mapping node, removing the pair
// when value is empty.
func setKey(m *yaml.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}
		if value == "" {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return
		}
		m.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
		return
	}
	if value == "" {
		return
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}
