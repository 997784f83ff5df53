package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketbank/internal/money"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Currency = "EUR"
	cfg.AutoSave = false
	cfg.LastAccount = "Checking"
	cfg.Log.Format = "json"

	path := filepath.Join(t.TempDir(), "nested", FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EUR", got.Currency)
	assert.False(t, got.AutoSave)
	assert.Equal(t, "Checking", got.LastAccount)
	assert.Equal(t, "json", got.Log.Format)
	assert.Equal(t, "info", got.Log.Level)
	assert.False(t, got.IntegrationEnabled)
	assert.True(t, got.PerformRecurring)
	assert.Equal(t, path, got.File())
	assert.Equal(t, filepath.Join(filepath.Dir(path), "ledger.db"), got.DatabasePath())

	eur, err := money.Lookup("EUR")
	require.NoError(t, err)
	assert.Equal(t, eur, got.CurrencyValue())
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ledger.db", cfg.Database)
	assert.True(t, cfg.AutoSave)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ',', cfg.Delimiter())
	assert.Empty(t, cfg.LastAccount)
	assert.Empty(t, cfg.File())
	assert.Equal(t, "ledger.db", cfg.DatabasePath())
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Currency, cfg.Currency)
	assert.NoFileExists(t, path)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	t.Setenv("POCKETBANK_AUTO_SAVE", "false")
	t.Setenv("POCKETBANK_LOG_LEVEL", "debug")
	t.Setenv("POCKETBANK_DATABASE", "/srv/books.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.AutoSave)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/srv/books.db", cfg.DatabasePath())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("POCKETBANK_CSV_DELIMITER=;\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("POCKETBANK_CSV_DELIMITER") })

	cfg, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, ';', cfg.Delimiter())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"empty database", func(c *Config) { c.Database = " " }, "database path"},
		{"unknown currency", func(c *Config) { c.Currency = "XXX" }, "unknown currency"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"long delimiter", func(c *Config) { c.CSV.Delimiter = ";;" }, "delimiter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "database: ledger.db")
	assert.Contains(t, contents, "auto_save: true")
	assert.Contains(t, contents, "currency: USD")
	assert.NotContains(t, contents, "last_account")
}

func TestSaveLastAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := Default()
	cfg.Currency = "CHF"
	require.NoError(t, Save(path, cfg))

	t.Setenv("POCKETBANK_DATABASE", "/elsewhere.db")
	require.NoError(t, SaveLastAccount(path, "Cash"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "last_account: Cash")
	assert.Contains(t, string(data), "currency: CHF")
	assert.Contains(t, string(data), "database: ledger.db")

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	require.NoError(t, SaveLastAccount(missing, "x"))
	assert.NoFileExists(t, missing)
}

func TestSaveLastAccount_TouchesOnlyThatKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("# my ledger\ncurrency: EUR\n"), 0o644))

	require.NoError(t, SaveLastAccount(path, "Giro"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)
	assert.Contains(t, contents, "# my ledger")
	assert.Contains(t, contents, "currency: EUR")
	assert.Contains(t, contents, "last_account: Giro")
	assert.NotContains(t, contents, "database")
	assert.NotContains(t, contents, "auto_save")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Giro", cfg.LastAccount)

	require.NoError(t, SaveLastAccount(path, ""))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "last_account")
	assert.Contains(t, string(data), "currency: EUR")
}
