package model

import (
	"errors"
	"slices"
)

// Field names the transaction attribute carried by TransactionUpdated.
type Field int

const (
	FieldAmount Field = iota
	FieldDescription
	FieldDate
	FieldLink
	FieldRecurringParent
)

func (f Field) String() string {
	switch f {
	case FieldAmount:
		return "amount"
	case FieldDescription:
		return "description"
	case FieldDate:
		return "date"
	case FieldLink:
		return "link"
	case FieldRecurringParent:
		return "recurring_parent"
	}
	return "unknown"
}

// Observer receives every change the ledger makes, after the in-memory
// objects have been updated. A returned error is reported to the caller of
// the ledger operation; the remaining observers are still notified.
type Observer interface {
	AccountCreated(a *Account) error
	AccountRemoved(a *Account) error
	AccountRenamed(a *Account, oldName string) error
	AccountCurrencyChanged(a *Account) error
	AccountBalanceChanged(a *Account) error

	TransactionsCreated(a *Account, ts []*Transaction) error
	TransactionUpdated(t *Transaction, field Field) error
	TransactionsRemoved(a *Account, ts []*Transaction) error

	RecurringCreated(rt *RecurringTransaction) error
	RecurringUpdated(rt *RecurringTransaction) error
	RecurringRemoved(rt *RecurringTransaction) error

	BatchStarted() error
	BatchEnded() error
	Exiting() error
}

// NopObserver implements Observer with no-ops. Embed it to handle a subset.
type NopObserver struct{}

func (NopObserver) AccountCreated(*Account) error                      { return nil }
func (NopObserver) AccountRemoved(*Account) error                      { return nil }
func (NopObserver) AccountRenamed(*Account, string) error              { return nil }
func (NopObserver) AccountCurrencyChanged(*Account) error              { return nil }
func (NopObserver) AccountBalanceChanged(*Account) error               { return nil }
func (NopObserver) TransactionsCreated(*Account, []*Transaction) error { return nil }
func (NopObserver) TransactionUpdated(*Transaction, Field) error       { return nil }
func (NopObserver) TransactionsRemoved(*Account, []*Transaction) error { return nil }
func (NopObserver) RecurringCreated(*RecurringTransaction) error       { return nil }
func (NopObserver) RecurringUpdated(*RecurringTransaction) error       { return nil }
func (NopObserver) RecurringRemoved(*RecurringTransaction) error       { return nil }
func (NopObserver) BatchStarted() error                                { return nil }
func (NopObserver) BatchEnded() error                                  { return nil }
func (NopObserver) Exiting() error                                     { return nil }

type subscription struct {
	observer Observer
}

// Subscribe registers o and returns the function that removes it again.
// Calling the returned function more than once is harmless.
func (l *Ledger) Subscribe(o Observer) (unsubscribe func()) {
	sub := &subscription{observer: o}
	l.subs = append(l.subs, sub)
	return func() {
		l.subs = slices.DeleteFunc(l.subs, func(s *subscription) bool { return s == sub })
	}
}

func (l *Ledger) notify(fn func(o Observer) error) error {
	if l == nil || len(l.subs) == 0 {
		return nil
	}
	var errs []error
	// copy: an observer may unsubscribe while being notified
	for _, sub := range slices.Clone(l.subs) {
		if err := fn(sub.observer); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Batch groups the notifications emitted by fn between BatchStarted and
// BatchEnded. Batches nest; BatchEnded is sent even when fn fails.
func (l *Ledger) Batch(fn func() error) error {
	if err := l.notify(func(o Observer) error { return o.BatchStarted() }); err != nil {
		return err
	}
	err := fn()
	endErr := l.notify(func(o Observer) error { return o.BatchEnded() })
	return errors.Join(err, endErr)
}

// Exiting tells observers the process is about to exit.
func (l *Ledger) Exiting() error {
	return l.notify(func(o Observer) error { return o.Exiting() })
}
