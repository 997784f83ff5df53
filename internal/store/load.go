package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/logging"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/money"
	"github.com/cleared-dev/pocketbank/internal/recurrence"
)

// Load builds the ledger from the database and subscribes the store to its
// changes. Accounts and recurring transactions are read now; transactions
// are read per account on first use. currency is used by an empty ledger.
func (s *Store) Load(currency money.Currency) (*model.Ledger, error) {
	if s.ledger != nil {
		return s.ledger, nil
	}
	if s.state != Ready {
		return nil, fmt.Errorf("loading ledger: store is %s", s.state)
	}

	l := model.New(currency)
	s.ledger = l
	if err := s.loadAccounts(l); err != nil {
		s.ledger = nil
		return nil, err
	}
	if err := s.loadRecurring(l); err != nil {
		s.ledger = nil
		return nil, err
	}
	s.unsubscribe = l.Subscribe(s)
	s.log.Debug("loaded ledger", logging.F(logging.FieldCount, len(l.Accounts())))
	return l, nil
}

// Ledger returns the loaded ledger, nil before Load.
func (s *Store) Ledger() *model.Ledger { return s.ledger }

func (s *Store) loadAccounts(l *model.Ledger) error {
	rows, err := s.query(`SELECT id, name, currency, balance FROM accounts`)
	if err != nil {
		return fmt.Errorf("loading accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			name     string
			currency int
			raw      string
		)
		if err := rows.Scan(&id, &name, &currency, &raw); err != nil {
			return fmt.Errorf("loading accounts: %w", err)
		}
		balance, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("account %q: balance %q: %w", name, raw, err)
		}
		l.RestoreAccount(id, name, money.Currency(currency), balance, s)
	}
	return rows.Err()
}

type recurringRow struct {
	id, accountID int64
	amount, desc  string
	start         string
	unit, every   int
	on, end, last sql.NullString
	source        sql.NullInt64
}

func (s *Store) loadRecurring(l *model.Ledger) error {
	rows, err := s.query(`SELECT id, accountId, amount, description, date, repeatType, repeatEvery,
		repeatsOn, endDate, sourceId, lastTransacted FROM recurring_transactions ORDER BY id`)
	if err != nil {
		return fmt.Errorf("loading recurring transactions: %w", err)
	}
	var recs []recurringRow
	for rows.Next() {
		var r recurringRow
		if err := rows.Scan(&r.id, &r.accountID, &r.amount, &r.desc, &r.start, &r.unit, &r.every,
			&r.on, &r.end, &r.source, &r.last); err != nil {
			rows.Close()
			return fmt.Errorf("loading recurring transactions: %w", err)
		}
		recs = append(recs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading recurring transactions: %w", err)
	}

	for _, r := range recs {
		log := s.log.WithField(logging.FieldRecurring, r.id)
		owner := l.AccountByID(r.accountID)
		if owner == nil {
			log.Warn("skipping recurring transaction of missing account", logging.F(logging.FieldAccount, r.accountID))
			continue
		}
		p, last, err := r.params(l)
		if err != nil {
			return fmt.Errorf("recurring transaction %d: %w", r.id, err)
		}
		if r.source.Valid && p.Source == nil {
			log.Warn("recurring transfer source no longer exists")
		}
		owner.RestoreRecurring(r.id, p, last)
	}
	return nil
}

func (r recurringRow) params(l *model.Ledger) (model.RecurringParams, date.Date, error) {
	var p model.RecurringParams
	amount, err := decimal.NewFromString(r.amount)
	if err != nil {
		return p, date.Date{}, fmt.Errorf("amount %q: %w", r.amount, err)
	}
	start, err := date.ParseStore(r.start)
	if err != nil {
		return p, date.Date{}, err
	}
	rule := recurrence.Rule{Unit: recurrence.Unit(r.unit), Every: r.every}
	if r.on.Valid && r.on.String != "" {
		if rule.On, err = recurrence.ParseMask(r.on.String); err != nil {
			return p, date.Date{}, err
		}
	}
	if err := rule.Validate(); err != nil {
		return p, date.Date{}, err
	}
	var end, last date.Date
	if r.end.Valid && r.end.String != "" {
		if end, err = date.ParseStore(r.end.String); err != nil {
			return p, date.Date{}, err
		}
	}
	if r.last.Valid && r.last.String != "" {
		if last, err = date.ParseStore(r.last.String); err != nil {
			return p, date.Date{}, err
		}
	}
	p = model.RecurringParams{
		Amount:      amount,
		Description: r.desc,
		Start:       start,
		Rule:        rule,
		End:         end,
	}
	if r.source.Valid {
		p.Source = l.AccountByID(r.source.Int64)
	}
	return p, last, nil
}

type transactionRow struct {
	id              int64
	amount, desc    string
	on              string
	link, recurring sql.NullInt64
}

// LoadTransactions implements model.TransactionLoader. A link to a
// transaction of an account not loaded yet is parked in the pending list and
// that account is loaded to resolve it.
func (s *Store) LoadTransactions(a *model.Account) ([]*model.Transaction, error) {
	rows, err := s.query(`SELECT id, amount, description, date, linkId, recurringParent
		FROM transactions WHERE accountId = ? ORDER BY date, id`, a.ID())
	if err != nil {
		return nil, err
	}
	var recs []transactionRow
	for rows.Next() {
		var r transactionRow
		if err := rows.Scan(&r.id, &r.amount, &r.desc, &r.on, &r.link, &r.recurring); err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ts := make([]*model.Transaction, 0, len(recs))
	for _, r := range recs {
		amount, err := decimal.NewFromString(r.amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: amount %q: %w", r.id, r.amount, err)
		}
		on, err := date.ParseStore(r.on)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", r.id, err)
		}
		t := model.NewTransaction(r.id, amount, r.desc, on)
		if r.recurring.Valid {
			if rt := s.ledger.RecurringByID(r.recurring.Int64); rt != nil {
				t.RestoreRecurringParent(rt)
			} else {
				s.log.Warn("recurring parent no longer exists, detaching",
					logging.F(logging.FieldTransaction, r.id),
					logging.F(logging.FieldRecurring, r.recurring.Int64))
			}
		}
		s.byID[r.id] = t
		ts = append(ts, t)
	}

	for i, r := range recs {
		t := ts[i]
		for _, waiting := range s.pending[r.id] {
			model.RestoreLink(waiting, t)
		}
		delete(s.pending, r.id)

		if !r.link.Valid || t.Link() != nil {
			continue
		}
		if target, ok := s.byID[r.link.Int64]; ok {
			model.RestoreLink(t, target)
			continue
		}
		s.pending[r.link.Int64] = append(s.pending[r.link.Int64], t)
	}

	for i, r := range recs {
		if !r.link.Valid || ts[i].Link() != nil {
			continue
		}
		if err := s.resolve(ts[i], r.link.Int64); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// resolve loads the account owning target so the pending link of t is filled.
func (s *Store) resolve(t *model.Transaction, target int64) error {
	missing := &model.MissingLinkError{TransactionID: t.ID(), LinkID: target}

	var owner int64
	err := s.queryRow(`SELECT accountId FROM transactions WHERE id = ?`, target).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return missing
	}
	if err != nil {
		return fmt.Errorf("resolving link of transaction %d: %w", t.ID(), err)
	}
	acc := s.ledger.AccountByID(owner)
	if acc == nil {
		return missing
	}
	if _, err := acc.Transactions(); err != nil {
		return err
	}
	if t.Link() == nil {
		return missing
	}
	return nil
}
