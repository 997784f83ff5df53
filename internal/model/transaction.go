package model

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/date"
)

// Transaction is one dated amount in an account. A transfer is a pair of
// transactions linked to each other, with opposite amounts and identical
// descriptions and dates.
type Transaction struct {
	id              int64
	parent          *Account
	amount          decimal.Decimal
	description     string
	on              date.Date
	link            *Transaction
	recurringParent *RecurringTransaction
}

func (t *Transaction) ID() int64               { return t.id }
func (t *Transaction) Amount() decimal.Decimal { return t.amount }
func (t *Transaction) Description() string     { return t.description }
func (t *Transaction) Date() date.Date         { return t.on }
func (t *Transaction) Link() *Transaction      { return t.link }
func (t *Transaction) Parent() *Account        { return t.parent }
func (t *Transaction) IsTransfer() bool        { return t.link != nil }
func (t *Transaction) Tags() []string          { return parseTags(t.description) }
func (t *Transaction) HasTag(name string) bool { return hasTag(t.description, name) }
func (t *Transaction) AssignID(id int64)       { t.id = id }

// RecurringParent is the recurring transaction that generated t, or nil.
func (t *Transaction) RecurringParent() *RecurringTransaction { return t.recurringParent }

// SetAmount changes the amount; the linked leg receives the negation.
func (t *Transaction) SetAmount(v decimal.Decimal) error {
	return updateLinkedPair(t, FieldAmount, func(x *Transaction, mirrored bool) {
		if mirrored {
			x.amount = v.Neg()
		} else {
			x.amount = v
		}
	})
}

// SetDescription changes the description of t and its linked leg.
func (t *Transaction) SetDescription(s string) error {
	return updateLinkedPair(t, FieldDescription, func(x *Transaction, _ bool) { x.description = s })
}

// SetDate changes the date of t and its linked leg.
func (t *Transaction) SetDate(d date.Date) error {
	if d.IsZero() {
		return errors.New("transaction needs a date")
	}
	return updateLinkedPair(t, FieldDate, func(x *Transaction, _ bool) { x.on = d })
}

// AddTag appends #name to the description unless already present.
func (t *Transaction) AddTag(name string) error {
	name, err := tagName(name)
	if err != nil {
		return err
	}
	if t.HasTag(name) {
		return nil
	}
	return t.SetDescription(addTag(t.description, name))
}

// RemoveTag removes every #name token from the description.
func (t *Transaction) RemoveTag(name string) error {
	name, err := tagName(name)
	if err != nil {
		return err
	}
	if !t.HasTag(name) {
		return nil
	}
	return t.SetDescription(removeTag(t.description, name))
}

// updateLinkedPair applies change to t and, for transfers, to its linked leg
// with mirrored set, keeping balances and tag counts in step. One update is
// emitted per changed transaction and one balance change per account.
func updateLinkedPair(t *Transaction, field Field, change func(x *Transaction, mirrored bool)) error {
	pair := []*Transaction{t}
	if t.link != nil {
		pair = append(pair, t.link)
	}

	var l *Ledger
	for i, x := range pair {
		before, oldDesc := x.amount, x.description
		change(x, i == 1)
		if x.parent == nil || x.parent.ledger == nil {
			continue
		}
		l = x.parent.ledger
		x.parent.balance = x.parent.balance.Add(x.amount.Sub(before))
		if oldDesc != x.description {
			l.untag(oldDesc)
			l.tag(x.description)
		}
	}
	if l == nil {
		return nil
	}

	return l.Batch(func() error {
		var errs []error
		for _, x := range pair {
			if x.parent == nil {
				continue
			}
			errs = append(errs, l.notify(func(o Observer) error { return o.TransactionUpdated(x, field) }))
		}
		if field == FieldAmount {
			for _, x := range pair {
				if x.parent == nil {
					continue
				}
				acc := x.parent
				errs = append(errs, l.notify(func(o Observer) error { return o.AccountBalanceChanged(acc) }))
			}
		}
		return errors.Join(errs...)
	})
}

// NewTransaction builds a detached transaction from persisted values without
// emitting events. The loader hands it to its account.
func NewTransaction(id int64, amount decimal.Decimal, description string, on date.Date) *Transaction {
	return &Transaction{id: id, amount: amount, description: description, on: on}
}

// RestoreLink links two persisted transactions without emitting events.
func RestoreLink(a, b *Transaction) {
	a.link, b.link = b, a
}

// RestoreRecurringParent attaches a persisted recurring parent without
// emitting events.
func (t *Transaction) RestoreRecurringParent(rt *RecurringTransaction) {
	t.recurringParent = rt
}
