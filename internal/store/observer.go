package store

import (
	"fmt"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/logging"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/recurrence"
)

var _ model.Observer = (*Store)(nil)

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullDate(d date.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Store()
}

func linkID(t *model.Transaction) int64 {
	if t.Link() == nil {
		return 0
	}
	return t.Link().ID()
}

func recurringID(t *model.Transaction) int64 {
	if t.RecurringParent() == nil {
		return 0
	}
	return t.RecurringParent().ID()
}

func accountID(a *model.Account) int64 {
	if a == nil {
		return 0
	}
	return a.ID()
}

func repeatsOn(r recurrence.Rule) any {
	if r.Unit != recurrence.Weekly || r.On.IsEmpty() {
		return nil
	}
	return r.On.String()
}

func (s *Store) AccountCreated(a *model.Account) error {
	id, err := s.insert(`INSERT INTO accounts (name, currency, balance) VALUES (?, ?, ?)`,
		a.Name(), int(a.Currency()), a.Balance().String())
	if err != nil {
		return fmt.Errorf("storing account %q: %w", a.Name(), err)
	}
	a.AssignID(id)
	return s.changed()
}

func (s *Store) AccountRemoved(a *model.Account) error {
	for _, stmt := range []string{
		`DELETE FROM transactions WHERE accountId = ?`,
		`DELETE FROM recurring_transactions WHERE accountId = ?`,
		`DELETE FROM accounts WHERE id = ?`,
	} {
		if _, err := s.exec(stmt, a.ID()); err != nil {
			return fmt.Errorf("removing account %q: %w", a.Name(), err)
		}
	}
	for id, t := range s.byID {
		if t.Parent() == nil || t.Parent() == a {
			delete(s.byID, id)
		}
	}
	return s.changed()
}

func (s *Store) AccountRenamed(a *model.Account, _ string) error {
	if _, err := s.exec(`UPDATE accounts SET name = ? WHERE id = ?`, a.Name(), a.ID()); err != nil {
		return fmt.Errorf("renaming account %q: %w", a.Name(), err)
	}
	return s.changed()
}

func (s *Store) AccountCurrencyChanged(a *model.Account) error {
	if _, err := s.exec(`UPDATE accounts SET currency = ? WHERE id = ?`, int(a.Currency()), a.ID()); err != nil {
		return fmt.Errorf("updating currency of %q: %w", a.Name(), err)
	}
	return s.changed()
}

func (s *Store) AccountBalanceChanged(a *model.Account) error {
	if _, err := s.exec(`UPDATE accounts SET balance = ? WHERE id = ?`, a.Balance().String(), a.ID()); err != nil {
		return fmt.Errorf("updating balance of %q: %w", a.Name(), err)
	}
	return s.changed()
}

func (s *Store) TransactionsCreated(a *model.Account, ts []*model.Transaction) error {
	for _, t := range ts {
		id, err := s.insert(`INSERT INTO transactions
			(accountId, amount, description, date, linkId, recurringParent)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID(), t.Amount().String(), t.Description(), t.Date().Store(),
			nullID(linkID(t)), nullID(recurringID(t)))
		if err != nil {
			return fmt.Errorf("storing transaction in %q: %w", a.Name(), err)
		}
		t.AssignID(id)
		s.byID[id] = t

		// the first leg of a transfer was stored before its counterpart had an id
		if other := t.Link(); other != nil && other.ID() != 0 {
			if _, err := s.exec(`UPDATE transactions SET linkId = ? WHERE id = ?`, id, other.ID()); err != nil {
				return fmt.Errorf("linking transaction %d: %w", id, err)
			}
		}
	}
	return s.changed()
}

func (s *Store) TransactionUpdated(t *model.Transaction, field model.Field) error {
	var (
		column string
		value  any
	)
	switch field {
	case model.FieldAmount:
		column, value = "amount", t.Amount().String()
	case model.FieldDescription:
		column, value = "description", t.Description()
	case model.FieldDate:
		column, value = "date", t.Date().Store()
	case model.FieldLink:
		column, value = "linkId", nullID(linkID(t))
	case model.FieldRecurringParent:
		column, value = "recurringParent", nullID(recurringID(t))
	default:
		return fmt.Errorf("unknown transaction field %v", field)
	}
	if _, err := s.exec(`UPDATE transactions SET `+column+` = ? WHERE id = ?`, value, t.ID()); err != nil {
		return fmt.Errorf("updating %s of transaction %d: %w", field, t.ID(), err)
	}
	return s.changed()
}

func (s *Store) TransactionsRemoved(a *model.Account, ts []*model.Transaction) error {
	for _, t := range ts {
		if _, err := s.exec(`DELETE FROM transactions WHERE id = ?`, t.ID()); err != nil {
			return fmt.Errorf("removing transaction %d from %q: %w", t.ID(), a.Name(), err)
		}
		delete(s.byID, t.ID())
		t.AssignID(0)
	}
	return s.changed()
}

func (s *Store) RecurringCreated(rt *model.RecurringTransaction) error {
	r := rt.Rule()
	id, err := s.insert(`INSERT INTO recurring_transactions
		(accountId, amount, description, date, repeatType, repeatEvery, repeatsOn, endDate, sourceId, lastTransacted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID(rt.Parent()), rt.Amount().String(), rt.Description(), rt.Start().Store(),
		int(r.Unit), r.Every, repeatsOn(r), nullDate(rt.End()),
		nullID(accountID(rt.Source())), nullDate(rt.LastTransacted()))
	if err != nil {
		return fmt.Errorf("storing recurring transaction %q: %w", rt.Description(), err)
	}
	rt.AssignID(id)
	return s.changed()
}

func (s *Store) RecurringUpdated(rt *model.RecurringTransaction) error {
	r := rt.Rule()
	_, err := s.exec(`UPDATE recurring_transactions SET
		amount = ?, description = ?, date = ?, repeatType = ?, repeatEvery = ?,
		repeatsOn = ?, endDate = ?, sourceId = ?, lastTransacted = ?
		WHERE id = ?`,
		rt.Amount().String(), rt.Description(), rt.Start().Store(), int(r.Unit), r.Every,
		repeatsOn(r), nullDate(rt.End()), nullID(accountID(rt.Source())), nullDate(rt.LastTransacted()),
		rt.ID())
	if err != nil {
		return fmt.Errorf("updating recurring transaction %d: %w", rt.ID(), err)
	}
	return s.changed()
}

func (s *Store) RecurringRemoved(rt *model.RecurringTransaction) error {
	if _, err := s.exec(`DELETE FROM recurring_transactions WHERE id = ?`, rt.ID()); err != nil {
		return fmt.Errorf("removing recurring transaction %d: %w", rt.ID(), err)
	}
	return s.changed()
}

func (s *Store) BatchStarted() error {
	s.depth++
	return nil
}

func (s *Store) BatchEnded() error {
	if s.depth == 0 {
		s.log.Warn("batch ended without a start")
		return nil
	}
	s.depth--
	if s.depth > 0 {
		return nil
	}
	if !s.dirty {
		return nil
	}
	return s.changed()
}

func (s *Store) Exiting() error {
	if s.dirty {
		s.log.Warn("exiting with unsaved changes", logging.F(logging.FieldState, s.state.String()))
	}
	return nil
}
