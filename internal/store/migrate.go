package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/logging"
)

// MigrationError reports a failed schema upgrade. The database is left at
// From; Backup names the copy taken before the step, empty for new files.
type MigrationError struct {
	From   int
	To     int
	Backup string
	Err    error
}

func (e *MigrationError) Error() string {
	msg := fmt.Sprintf("migrating schema from v%d to v%d: %v", e.From, e.To, e.Err)
	if e.Backup != "" {
		msg += " (backup at " + e.Backup + ")"
	}
	return msg
}

func (e *MigrationError) Unwrap() error { return e.Err }

// BackupPath is where the file is copied before upgrading from version.
func BackupPath(path string, version int) string {
	return fmt.Sprintf("%s.v%d.bak", path, version)
}

// migrate upgrades the schema one version at a time. Existing files are
// backed up before every step.
func (s *Store) migrate(backup bool) error {
	version, err := readVersion(s.db)
	if err != nil {
		return err
	}
	if version > CurrentVersion {
		return fmt.Errorf("schema v%d is newer than supported v%d", version, CurrentVersion)
	}

	for _, m := range migrations {
		if m.to <= version {
			continue
		}
		s.state = MigratingSchema
		log := s.log.WithFields(
			logging.F(logging.FieldFromVersion, version),
			logging.F(logging.FieldToVersion, m.to),
		)

		var backupPath string
		if backup {
			backupPath = BackupPath(s.path, version)
			if err := copyFile(s.path, backupPath); err != nil {
				return &MigrationError{From: version, To: m.to, Err: fmt.Errorf("backing up: %w", err)}
			}
			log.Info("backed up database", logging.F(logging.FieldBackup, backupPath))
		}

		if err := s.step(m); err != nil {
			log.WithError(err).Error("schema migration failed")
			return &MigrationError{From: version, To: m.to, Backup: backupPath, Err: err}
		}
		log.Info("migrated schema")
		version = m.to
	}
	s.version = version
	return nil
}

func (s *Store) step(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := m.apply(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := writeVersion(tx, m.to); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// resync recomputes every account balance from its transactions.
func resync(tx *sql.Tx) error {
	sums, err := transactionSums(tx)
	if err != nil {
		return err
	}

	rows, err := tx.Query(`SELECT id FROM accounts`)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		balance, ok := sums[id]
		if !ok {
			balance = decimal.Zero
		}
		if _, err := tx.Exec(`UPDATE accounts SET balance = ? WHERE id = ?`, balance.String(), id); err != nil {
			return err
		}
	}
	return nil
}

func transactionSums(tx *sql.Tx) (map[int64]decimal.Decimal, error) {
	rows, err := tx.Query(`SELECT accountId, amount FROM transactions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := map[int64]decimal.Decimal{}
	for rows.Next() {
		var (
			accountID int64
			raw       string
		)
		if err := rows.Scan(&accountID, &raw); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("account %d: amount %q: %w", accountID, raw, err)
		}
		sums[accountID] = sums[accountID].Add(amount)
	}
	return sums, rows.Err()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
