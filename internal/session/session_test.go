package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketbank/internal/config"
	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/logging"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/recurrence"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, config.Save(path, config.Default()))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestOpen_NewLedger(t *testing.T) {
	cfg := loadConfig(t)
	s, err := Open(cfg, nil, date.New(2024, time.May, 1))
	require.NoError(t, err)
	assert.Empty(t, s.Ledger.Accounts())
	assert.FileExists(t, cfg.DatabasePath())
	require.NoError(t, s.Close())
}

func TestClose_RemembersLastAccount(t *testing.T) {
	cfg := loadConfig(t)
	today := date.New(2024, time.May, 1)

	s, err := Open(cfg, nil, today)
	require.NoError(t, err)
	_, err = s.Ledger.CreateAccount("Checking")
	require.NoError(t, err)
	_, err = s.Account("Checking")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reloaded, err := config.Load(cfg.File())
	require.NoError(t, err)
	assert.Equal(t, "Checking", reloaded.LastAccount)

	s, err = Open(reloaded, nil, today)
	require.NoError(t, err)
	defer s.Close()
	a, err := s.Account("")
	require.NoError(t, err)
	assert.Equal(t, "Checking", a.Name())
}

func TestAccount_Errors(t *testing.T) {
	cfg := loadConfig(t)
	s, err := Open(cfg, nil, date.New(2024, time.May, 1))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Account("")
	assert.Error(t, err)

	_, err = s.Account("Nope")
	var invalid *model.InvalidAccountError
	assert.ErrorAs(t, err, &invalid)
}

func TestOpen_MissingLastAccountWarns(t *testing.T) {
	cfg := loadConfig(t)
	cfg.LastAccount = "Gone"
	log := logging.NewMockLogger()

	s, err := Open(cfg, log, date.New(2024, time.May, 1))
	require.NoError(t, err)
	assert.Nil(t, s.Ledger.LastAccount())
	assert.Len(t, log.EntriesByLevel("WARN"), 1)

	require.NoError(t, s.Close())
	reloaded, err := config.Load(cfg.File())
	require.NoError(t, err)
	assert.Empty(t, reloaded.LastAccount)
}

func TestOpen_PerformsRecurring(t *testing.T) {
	cfg := loadConfig(t)
	s, err := Open(cfg, nil, date.New(2024, time.January, 1))
	require.NoError(t, err)
	a, err := s.Ledger.CreateAccount("Rent")
	require.NoError(t, err)
	_, err = a.AddRecurringTransaction(model.RecurringParams{
		Amount:      decimal.NewFromInt(-900),
		Description: "rent",
		Start:       date.New(2024, time.January, 1),
		Rule:        recurrence.MonthlyEvery(1),
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	log := logging.NewMockLogger()
	s, err = Open(cfg, log, date.New(2024, time.March, 15))
	require.NoError(t, err)
	assert.Len(t, s.Performed, 3)
	assert.True(t, log.HasMessage("performed recurring transactions"))
	assert.True(t, s.Ledger.Account("Rent").Balance().Equal(decimal.NewFromInt(-2700)))

	cfg.PerformRecurring = false
	require.NoError(t, s.Close())
	s, err = Open(cfg, nil, date.New(2024, time.June, 15))
	require.NoError(t, err)
	assert.Empty(t, s.Performed)
	assert.True(t, s.Ledger.Account("Rent").Balance().Equal(decimal.NewFromInt(-2700)))
	require.NoError(t, s.Close())
}

func TestManualSave(t *testing.T) {
	cfg := loadConfig(t)
	cfg.AutoSave = false
	today := date.New(2024, time.May, 1)

	s, err := Open(cfg, nil, today)
	require.NoError(t, err)
	_, err = s.Ledger.CreateAccount("Kept")
	require.NoError(t, err)
	require.NoError(t, s.Save())
	_, err = s.Ledger.CreateAccount("Dropped")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(cfg, nil, today)
	require.NoError(t, err)
	defer s.Close()
	assert.NotNil(t, s.Ledger.Account("Kept"))
	assert.Nil(t, s.Ledger.Account("Dropped"))
}
