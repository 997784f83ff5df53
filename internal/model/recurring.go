package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/recurrence"
)

// RecurringParams describes a recurring transaction. Source turns it into a
// recurring transfer; End is optional.
type RecurringParams struct {
	Amount      decimal.Decimal
	Description string
	Start       date.Date
	Rule        recurrence.Rule
	End         date.Date
	Source      *Account
}

// RecurringTransaction is a template that materializes transactions in its
// account on every date of its series up to today.
type RecurringTransaction struct {
	id             int64
	parent         *Account
	params         RecurringParams
	lastTransacted date.Date
}

func (rt *RecurringTransaction) ID() int64                 { return rt.id }
func (rt *RecurringTransaction) AssignID(id int64)         { rt.id = id }
func (rt *RecurringTransaction) Parent() *Account          { return rt.parent }
func (rt *RecurringTransaction) Amount() decimal.Decimal   { return rt.params.Amount }
func (rt *RecurringTransaction) Description() string       { return rt.params.Description }
func (rt *RecurringTransaction) Start() date.Date          { return rt.params.Start }
func (rt *RecurringTransaction) Rule() recurrence.Rule     { return rt.params.Rule }
func (rt *RecurringTransaction) End() date.Date            { return rt.params.End }
func (rt *RecurringTransaction) Source() *Account          { return rt.params.Source }
func (rt *RecurringTransaction) LastTransacted() date.Date { return rt.lastTransacted }
func (rt *RecurringTransaction) Params() RecurringParams   { return rt.params }

func (a *Account) checkRecurring(p *RecurringParams) error {
	if p.Start.IsZero() {
		return errors.New("recurring transaction needs a start date")
	}
	if err := p.Rule.Validate(); err != nil {
		return err
	}
	if !p.End.IsZero() && p.End.Before(p.Start) {
		return fmt.Errorf("end date %s is before start date %s", p.End, p.Start)
	}
	if p.Source == a {
		return fmt.Errorf("cannot transfer from %q to itself", a.name)
	}
	if p.Source != nil && p.Source.ledger != a.ledger {
		return &InvalidAccountError{Name: p.Source.name}
	}
	if p.Rule.Unit == recurrence.Weekly && p.Rule.On.IsEmpty() {
		p.Rule.On = recurrence.MaskOf(p.Start.Weekday())
	}
	return nil
}

// AddRecurringTransaction creates a recurring transaction owned by a.
func (a *Account) AddRecurringTransaction(p RecurringParams) (*RecurringTransaction, error) {
	l := a.ledger
	if l == nil {
		return nil, errRemovedAccount
	}
	if err := a.checkRecurring(&p); err != nil {
		return nil, err
	}
	rt := &RecurringTransaction{parent: a, params: p}
	a.recurring = append(a.recurring, rt)
	return rt, l.notify(func(o Observer) error { return o.RecurringCreated(rt) })
}

// Update replaces the recurring transaction's parameters. Transactions it
// already generated are left alone.
func (rt *RecurringTransaction) Update(p RecurringParams) error {
	a := rt.parent
	if a == nil || a.ledger == nil {
		return errRemovedAccount
	}
	if err := a.checkRecurring(&p); err != nil {
		return err
	}
	rt.params = p
	return a.ledger.notify(func(o Observer) error { return o.RecurringUpdated(rt) })
}

// RemoveRecurringTransaction deletes rt. Transactions it generated stay but
// lose their recurring parent.
func (a *Account) RemoveRecurringTransaction(rt *RecurringTransaction) error {
	l := a.ledger
	if l == nil {
		return errRemovedAccount
	}
	if rt == nil || rt.parent != a {
		return fmt.Errorf("recurring transaction is not in account %q", a.name)
	}
	if err := l.LoadAll(); err != nil {
		return err
	}
	return l.Batch(func() error {
		var errs []error
		for _, acc := range l.accounts {
			for _, t := range acc.transactions {
				if t.recurringParent != rt {
					continue
				}
				t.recurringParent = nil
				errs = append(errs, l.notify(func(o Observer) error { return o.TransactionUpdated(t, FieldRecurringParent) }))
			}
		}
		a.recurring = slices.DeleteFunc(a.recurring, func(x *RecurringTransaction) bool { return x == rt })
		errs = append(errs, l.notify(func(o Observer) error { return o.RecurringRemoved(rt) }))
		rt.parent = nil
		return errors.Join(errs...)
	})
}

// DueDates lists the dates not yet materialized, up to and including today.
func (rt *RecurringTransaction) DueDates(today date.Date) []date.Date {
	p := rt.params
	return p.Rule.Due(p.Start, rt.lastTransacted, p.End, today)
}

// Next is the next date the series would produce, ignoring the end date.
func (rt *RecurringTransaction) Next() date.Date {
	return rt.params.Rule.Next(rt.params.Start, rt.lastTransacted)
}

// Finished reports whether the series has nothing left to produce.
func (rt *RecurringTransaction) Finished() bool {
	end := rt.params.End
	if end.IsZero() {
		return false
	}
	next := rt.Next()
	return next.IsZero() || next.After(end)
}

// PerformTransactions creates one transaction per due date and records today
// as the last transacted date. Either every transaction is created or none
// is: on failure the created ones are removed and LastTransacted is kept.
func (rt *RecurringTransaction) PerformTransactions(today date.Date) ([]*Transaction, error) {
	a := rt.parent
	if a == nil || a.ledger == nil {
		return nil, errRemovedAccount
	}
	l := a.ledger
	dates := rt.DueDates(today)
	if len(dates) == 0 && !today.After(rt.lastTransacted) {
		return nil, nil
	}

	previous := rt.lastTransacted
	var created []*Transaction
	err := l.Batch(func() error {
		for _, d := range dates {
			t, _, err := a.add(rt.params.Amount, rt.params.Description, d, rt.params.Source, rt)
			if t != nil && t.parent != nil {
				created = append(created, t)
			}
			if err != nil {
				return rt.rollback(created, previous, false, err)
			}
		}
		rt.lastTransacted = today
		if err := l.notify(func(o Observer) error { return o.RecurringUpdated(rt) }); err != nil {
			return rt.rollback(created, previous, true, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("performing recurring transaction %q: %w", rt.params.Description, err)
	}
	return created, nil
}

func (rt *RecurringTransaction) rollback(created []*Transaction, previous date.Date, announced bool, cause error) error {
	rt.lastTransacted = previous
	errs := []error{cause}
	if announced {
		l := rt.parent.ledger
		errs = append(errs, l.notify(func(o Observer) error { return o.RecurringUpdated(rt) }))
	}
	for i := len(created) - 1; i >= 0; i-- {
		if t := created[i]; t.parent != nil {
			errs = append(errs, t.parent.RemoveTransactions(t))
		}
	}
	return errors.Join(errs...)
}

// RecurringTransactions returns every recurring transaction in ledger order.
func (l *Ledger) RecurringTransactions() []*RecurringTransaction {
	var out []*RecurringTransaction
	for _, a := range l.accounts {
		out = append(out, a.recurring...)
	}
	return out
}

// RecurringByID returns the recurring transaction with the persisted id, or nil.
func (l *Ledger) RecurringByID(id int64) *RecurringTransaction {
	for _, rt := range l.RecurringTransactions() {
		if rt.id == id {
			return rt
		}
	}
	return nil
}

// PerformRecurring performs every recurring transaction due by today and
// returns the transactions it created.
func (l *Ledger) PerformRecurring(today date.Date) ([]*Transaction, error) {
	var all []*Transaction
	err := l.Batch(func() error {
		for _, rt := range l.RecurringTransactions() {
			ts, err := rt.PerformTransactions(today)
			if err != nil {
				return err
			}
			all = append(all, ts...)
		}
		return nil
	})
	return all, err
}

// RestoreRecurring attaches a persisted recurring transaction to a without
// emitting events or validating it.
func (a *Account) RestoreRecurring(id int64, p RecurringParams, lastTransacted date.Date) *RecurringTransaction {
	rt := &RecurringTransaction{id: id, parent: a, params: p, lastTransacted: lastTransacted}
	a.recurring = append(a.recurring, rt)
	return rt
}
