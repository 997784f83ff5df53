// Package session ties one process's config, logger, store and ledger
// together.
package session

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/pocketbank/internal/config"
	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/logging"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/store"
)

// Session is an open ledger.
type Session struct {
	Config *config.Config
	Log    logging.Logger
	Store  *store.Store
	Ledger *model.Ledger

	// Performed holds the recurring transactions materialized by Open.
	Performed []*model.Transaction
}

// NewLogger builds the logger described by cfg.
func NewLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
}

// Open opens the database named by cfg and loads its ledger. When
// cfg.PerformRecurring is set, recurring transactions due by today are
// performed before Open returns.
func Open(cfg *config.Config, log logging.Logger, today date.Date) (*Session, error) {
	if log == nil {
		log = logging.Nop()
	}
	path := cfg.DatabasePath()
	st, err := store.Open(path, store.Options{AutoSave: cfg.AutoSave, Logger: log})
	if err != nil {
		return nil, err
	}
	l, err := st.Load(cfg.CurrencyValue())
	if err != nil {
		st.Close()
		return nil, err
	}
	l.SetIntegrationEnabled(cfg.IntegrationEnabled)
	if cfg.LastAccount != "" {
		if a := l.Account(cfg.LastAccount); a != nil {
			l.SetLastAccount(a)
		} else {
			log.Warn("last account no longer exists", logging.F(logging.FieldAccount, cfg.LastAccount))
		}
	}

	s := &Session{Config: cfg, Log: log, Store: st, Ledger: l}
	if cfg.PerformRecurring {
		if s.Performed, err = l.PerformRecurring(today); err != nil {
			st.Close()
			return nil, fmt.Errorf("performing recurring transactions: %w", err)
		}
		if len(s.Performed) > 0 {
			log.Info("performed recurring transactions", logging.F(logging.FieldCount, len(s.Performed)))
		}
	}
	log.Debug("session opened", logging.F(logging.FieldPath, path), logging.F(logging.FieldVersion, st.Version()))
	return s, nil
}

// Account returns the named account, or the last used one when name is
// empty. The chosen account becomes the last used.
func (s *Session) Account(name string) (*model.Account, error) {
	if name == "" {
		if a := s.Ledger.LastAccount(); a != nil {
			return a, nil
		}
		return nil, errors.New("no account given and no account in use")
	}
	a, err := s.Ledger.MustAccount(name)
	if err != nil {
		return nil, err
	}
	s.Ledger.SetLastAccount(a)
	return a, nil
}

// Save commits pending changes.
func (s *Session) Save() error { return s.Store.Save() }

// Close announces exit, remembers the last used account in the config file
// and closes the store. Unsaved changes are discarded.
func (s *Session) Close() error {
	var errs []error
	errs = append(errs, s.Ledger.Exiting())

	last := ""
	if a := s.Ledger.LastAccount(); a != nil && a.Ledger() != nil {
		last = a.Name()
	}
	if last != s.Config.LastAccount {
		s.Config.LastAccount = last
		if s.Config.File() != "" {
			errs = append(errs, config.SaveLastAccount(s.Config.File(), last))
		}
	}

	errs = append(errs, s.Store.Close())
	s.Log.Debug("session closed")
	return errors.Join(errs...)
}
