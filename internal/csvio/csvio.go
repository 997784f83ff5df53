// Package csvio exports ledger transactions to CSV and imports them back.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/logging"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/money"
)

// Row is one CSV record. Transfer names the counterpart account of a
// linked transfer and is empty for plain transactions.
type Row struct {
	Date        string `csv:"date"`
	Account     string `csv:"account"`
	Amount      string `csv:"amount"`
	Description string `csv:"description"`
	Transfer    string `csv:"transfer"`
}

// Options configures Export and Import.
type Options struct {
	// Delimiter defaults to ','.
	Delimiter rune
	Logger    logging.Logger

	// Format is the layout read by Import. Defaults to Native.
	Format Format

	// Account receives rows whose account column is empty (import only).
	Account *model.Account
	// CreateAccounts adds accounts named in the file that do not exist yet
	// instead of failing (import only).
	CreateAccounts bool
	// Today anchors two-digit years (import only). Defaults to date.Today().
	Today date.Date
}

func (o Options) logger() logging.Logger {
	if o.Logger == nil {
		return logging.Nop()
	}
	return o.Logger
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// Export writes the transactions of account, or of every account when
// account is nil, ordered by date. A transfer is written once, from the
// leg met first.
func Export(w io.Writer, l *model.Ledger, account *model.Account, opts Options) (int, error) {
	var (
		ts  []*model.Transaction
		err error
	)
	if account != nil {
		ts, err = account.Transactions()
	} else {
		ts, err = l.Transactions()
	}
	if err != nil {
		return 0, err
	}
	model.SortByDate(ts)

	places := int32(l.Currency().Fraction())
	written := map[*model.Transaction]bool{}
	rows := make([]*Row, 0, len(ts))
	for _, t := range ts {
		if link := t.Link(); link != nil && written[link] {
			continue
		}
		written[t] = true
		r := &Row{
			Date:        t.Date().String(),
			Account:     t.Parent().Name(),
			Amount:      t.Amount().StringFixed(places),
			Description: t.Description(),
		}
		if link := t.Link(); link != nil {
			r.Transfer = link.Parent().Name()
		}
		rows = append(rows, r)
	}

	cw := csv.NewWriter(w)
	cw.Comma = opts.delimiter()
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return 0, fmt.Errorf("writing CSV: %w", err)
	}
	opts.logger().Info("exported transactions", logging.F(logging.FieldCount, len(rows)))
	return len(rows), nil
}

// entry is a validated row ready to be applied.
type entry struct {
	account     string
	transfer    string
	amount      decimal.Decimal
	description string
	on          date.Date
}

// Result summarizes an Import.
type Result struct {
	Imported int
	Created  []string
}

// Import reads rows from r and adds them to l in one batch. Every row is
// parsed and every account resolved before the ledger is touched, so a bad
// row leaves the ledger unchanged.
func Import(r io.Reader, l *model.Ledger, opts Options) (Result, error) {
	var res Result
	log := opts.logger()
	today := opts.Today
	if today.IsZero() {
		today = date.Today()
	}

	format := opts.Format
	if format == nil {
		format = Native{}
	}
	rows, err := format.Parse(r, opts.delimiter())
	if err != nil {
		return res, err
	}

	entries := make([]entry, 0, len(rows))
	missing := map[string]bool{}
	var create []string
	for i, row := range rows {
		e, err := parseRow(row, opts.Account, today)
		if err != nil {
			// header is line 1
			return res, fmt.Errorf("row %d: %w", i+2, err)
		}
		for _, name := range []string{e.account, e.transfer} {
			if name == "" || l.Account(name) != nil || missing[name] {
				continue
			}
			if !opts.CreateAccounts {
				return res, fmt.Errorf("row %d: %w", i+2, &model.InvalidAccountError{Name: name})
			}
			missing[name] = true
			create = append(create, name)
		}
		if e.transfer != "" && e.transfer == e.account {
			return res, fmt.Errorf("row %d: transfer from %q to itself", i+2, e.account)
		}
		entries = append(entries, e)
	}

	err = l.Batch(func() error {
		for _, name := range create {
			if _, err := l.CreateAccount(name); err != nil {
				return err
			}
			res.Created = append(res.Created, name)
			log.Info("created account", logging.F(logging.FieldAccount, name))
		}
		for _, e := range entries {
			a := l.Account(e.account)
			var err error
			if e.transfer != "" {
				_, _, err = a.AddTransfer(e.amount, e.description, e.on, l.Account(e.transfer))
			} else {
				_, err = a.AddTransaction(e.amount, e.description, e.on)
			}
			if err != nil {
				return fmt.Errorf("adding %q to %q: %w", e.description, e.account, err)
			}
			res.Imported++
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	log.Info("imported transactions", logging.F(logging.FieldCount, res.Imported))
	return res, nil
}

func parseRow(row *Row, fallback *model.Account, today date.Date) (entry, error) {
	e := entry{account: row.Account, transfer: row.Transfer, description: row.Description}
	if e.account == "" {
		if fallback == nil {
			return e, errors.New("no account given")
		}
		e.account = fallback.Name()
	}
	on, err := date.Parse(row.Date, today)
	if err != nil {
		return e, err
	}
	e.on = on
	if e.amount, err = money.ParseAmount(row.Amount); err != nil {
		return e, err
	}
	return e, nil
}
