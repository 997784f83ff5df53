package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// CurrentVersion is the schema version Open migrates every file to.
const CurrentVersion = 8

const versionKey = "VERSION"

// schemaV1 is the oldest layout. New files start here and run the same
// migration path as old files.
const schemaV1 = `
CREATE TABLE accounts (
	id INTEGER PRIMARY KEY,
	name VARCHAR(255)
);

CREATE TABLE transactions (
	id INTEGER PRIMARY KEY,
	accountId INTEGER,
	amount TEXT,
	description VARCHAR(255),
	date CHAR(10)
);

CREATE TABLE meta (
	id INTEGER PRIMARY KEY,
	name VARCHAR(255),
	value VARCHAR(255)
);

INSERT INTO meta (name, value) VALUES ('VERSION', '1');
`

type migration struct {
	to    int
	apply func(tx *sql.Tx) error
}

// migrations[i] upgrades version i+1 to i+2.
var migrations = []migration{
	{to: 2, apply: execAll(
		`ALTER TABLE accounts ADD currency INTEGER NOT NULL DEFAULT 0`,
	)},
	{to: 3, apply: then(execAll(
		`ALTER TABLE accounts ADD balance TEXT NOT NULL DEFAULT '0'`,
	), resync)},
	{to: 4, apply: execAll(
		`ALTER TABLE transactions ADD linkId INTEGER`,
	)},
	{to: 5, apply: execAll(
		`CREATE TABLE recurring_transactions (
			id INTEGER PRIMARY KEY,
			accountId INTEGER,
			amount TEXT,
			description VARCHAR(255),
			date CHAR(10),
			repeatType INTEGER,
			repeatEvery INTEGER,
			repeatsOn VARCHAR(255),
			endDate CHAR(10)
		)`,
	)},
	{to: 6, apply: execAll(
		`ALTER TABLE recurring_transactions ADD sourceId INTEGER`,
		`ALTER TABLE recurring_transactions ADD lastTransacted CHAR(10)`,
	)},
	{to: 7, apply: execAll(
		`ALTER TABLE transactions ADD recurringParent INTEGER`,
	)},
	{to: 8, apply: resync},
}

func execAll(stmts ...string) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

func then(fns ...func(tx *sql.Tx) error) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, fn := range fns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	}
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func readVersion(q queryer) (int, error) {
	var raw string
	err := q.QueryRow(`SELECT value FROM meta WHERE name = ?`, versionKey).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("reading schema version %q: %w", raw, err)
	}
	return v, nil
}

func writeVersion(tx *sql.Tx, v int) error {
	_, err := tx.Exec(`UPDATE meta SET value = ? WHERE name = ?`, strconv.Itoa(v), versionKey)
	return err
}
