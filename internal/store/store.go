// Package store persists a ledger in a single SQLite file. It subscribes to
// the ledger's change notifications and writes each change through one open
// SQL transaction, committed immediately in auto-save mode or on Save.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/cleared-dev/pocketbank/internal/logging"
	"github.com/cleared-dev/pocketbank/internal/model"
)

// State is the lifecycle stage of a Store.
type State int

const (
	Uninitialized State = iota
	Initializing
	Loading
	MigratingSchema
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Loading:
		return "loading"
	case MigratingSchema:
		return "migrating"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures Open.
type Options struct {
	// AutoSave commits every change as it happens. When false changes
	// accumulate until Save.
	AutoSave bool
	Logger   logging.Logger
}

// Store owns the database file of one ledger.
type Store struct {
	path    string
	db      *sql.DB
	tx      *sql.Tx
	log     logging.Logger
	state   State
	version int

	autoSave bool
	dirty    bool
	depth    int

	ledger      *model.Ledger
	unsubscribe func()
	byID        map[int64]*model.Transaction
	pending     map[int64][]*model.Transaction
}

// Open opens the database at path, creating it when missing, and migrates
// it to CurrentVersion. A failed migration is returned as *MigrationError.
func Open(path string, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	s := &Store{
		path:     path,
		log:      log.WithField(logging.FieldPath, path),
		state:    Uninitialized,
		autoSave: opts.AutoSave,
		byID:     map[int64]*model.Transaction{},
		pending:  map[int64][]*model.Transaction{},
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("checking database: %w", statErr)
	}
	if exists {
		s.state = Loading
	} else {
		s.state = Initializing
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection: the open unit of work must see every read
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if !exists {
		if _, err := db.Exec(schemaV1); err != nil {
			s.abort()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
		s.log.Info("created database")
	}
	if err := s.migrate(exists); err != nil {
		s.abort()
		return nil, err
	}
	s.state = Ready
	s.log.Debug("database ready", logging.F(logging.FieldVersion, s.version))
	return s, nil
}

func (s *Store) abort() {
	s.db.Close()
	s.state = Closed
}

func (s *Store) State() State   { return s.state }
func (s *Store) Path() string   { return s.path }
func (s *Store) Version() int   { return s.version }
func (s *Store) Dirty() bool    { return s.dirty }
func (s *Store) AutoSave() bool { return s.autoSave }

// SetAutoSave switches the save discipline. Turning auto-save on flushes
// pending changes.
func (s *Store) SetAutoSave(on bool) error {
	s.autoSave = on
	if on {
		return s.Save()
	}
	return nil
}

// Save commits every pending change.
func (s *Store) Save() error {
	if s.tx == nil {
		s.dirty = false
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("committing changes: %w", err)
	}
	s.dirty = false
	s.log.Debug("committed changes")
	return nil
}

// Close stops listening to the ledger, discards uncommitted changes and
// closes the database.
func (s *Store) Close() error {
	if s.state == Closed {
		return nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	var errs []error
	if s.tx != nil {
		s.log.Warn("discarding unsaved changes")
		errs = append(errs, s.tx.Rollback())
		s.tx = nil
		s.dirty = false
	}
	errs = append(errs, s.db.Close())
	s.state = Closed
	return errors.Join(errs...)
}

// unit returns the open unit of work, beginning one when needed.
func (s *Store) unit() (*sql.Tx, error) {
	if s.state == Closed {
		return nil, errors.New("store is closed")
	}
	if s.tx == nil {
		tx, err := s.db.Begin()
		if err != nil {
			return nil, fmt.Errorf("beginning transaction: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

func (s *Store) exec(query string, args ...any) (sql.Result, error) {
	tx, err := s.unit()
	if err != nil {
		return nil, err
	}
	res, err := tx.Exec(query, args...)
	if err != nil {
		return nil, err
	}
	s.dirty = true
	return res, nil
}

func (s *Store) insert(query string, args ...any) (int64, error) {
	res, err := s.exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// query reads through the open unit of work when there is one, so reads
// see pending writes.
func (s *Store) query(query string, args ...any) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.Query(query, args...)
	}
	return s.db.Query(query, args...)
}

func (s *Store) queryRow(query string, args ...any) *sql.Row {
	if s.tx != nil {
		return s.tx.QueryRow(query, args...)
	}
	return s.db.QueryRow(query, args...)
}

// changed commits when auto-saving outside a batch.
func (s *Store) changed() error {
	if s.autoSave && s.depth == 0 {
		return s.Save()
	}
	return nil
}
