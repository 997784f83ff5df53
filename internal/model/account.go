package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/money"
)

// TransactionLoader reads the persisted transactions of an account the first
// time they are needed.
type TransactionLoader interface {
	LoadTransactions(a *Account) ([]*Transaction, error)
}

var errRemovedAccount = errors.New("account has been removed")

// Account is a named container of transactions with a cached balance.
type Account struct {
	id       int64
	ledger   *Ledger
	name     string
	currency money.Currency
	balance  decimal.Decimal

	transactions []*Transaction
	loaded       bool
	loader       TransactionLoader

	recurring []*RecurringTransaction
}

// ID is the persisted id, 0 until the account has been stored.
func (a *Account) ID() int64 { return a.id }

// AssignID records the persisted id.
func (a *Account) AssignID(id int64) { a.id = id }

func (a *Account) Name() string                       { return a.name }
func (a *Account) Currency() money.Currency           { return a.currency }
func (a *Account) Balance() decimal.Decimal           { return a.balance }
func (a *Account) Ledger() *Ledger                    { return a.ledger }
func (a *Account) String() string                     { return a.name }
func (a *Account) Loaded() bool                       { return a.loaded }
func (a *Account) Recurring() []*RecurringTransaction { return slices.Clone(a.recurring) }

// Transactions returns the account's transactions, loading them on first use.
func (a *Account) Transactions() ([]*Transaction, error) {
	if err := a.ensureLoaded(); err != nil {
		return nil, err
	}
	return slices.Clone(a.transactions), nil
}

func (a *Account) ensureLoaded() error {
	if a.loaded {
		return nil
	}
	if a.loader == nil {
		a.loaded = true
		return nil
	}
	// mark first: loading may recurse back into this account through links
	a.loaded = true
	ts, err := a.loader.LoadTransactions(a)
	if err != nil {
		a.loaded = false
		return fmt.Errorf("loading transactions of %q: %w", a.name, err)
	}
	for _, t := range ts {
		t.parent = a
		if a.ledger != nil {
			a.ledger.tag(t.description)
		}
	}
	a.transactions = ts
	return nil
}

// SetName renames the account and keeps the ledger sorted.
func (a *Account) SetName(name string) error {
	l := a.ledger
	if l == nil {
		return errRemovedAccount
	}
	if strings.TrimSpace(name) == "" {
		return &BlankAccountNameError{}
	}
	if name == a.name {
		return nil
	}
	if other := l.Account(name); other != nil && other != a {
		return &AccountExistsError{Name: name}
	}
	old := a.name
	a.name = name
	l.sortAccounts()
	return l.notify(func(o Observer) error { return o.AccountRenamed(a, old) })
}

// AddTransaction records a plain transaction in the account.
func (a *Account) AddTransaction(amount decimal.Decimal, description string, on date.Date) (*Transaction, error) {
	t, _, err := a.add(amount, description, on, nil, nil)
	return t, err
}

// AddTransfer moves amount from source into a. It returns the leg in a and
// the mirrored leg in source.
func (a *Account) AddTransfer(amount decimal.Decimal, description string, on date.Date, source *Account) (*Transaction, *Transaction, error) {
	if source == nil {
		return nil, nil, errors.New("transfer needs a source account")
	}
	if source == a {
		return nil, nil, fmt.Errorf("cannot transfer from %q to itself", a.name)
	}
	if source.ledger == nil || source.ledger != a.ledger {
		return nil, nil, &InvalidAccountError{Name: source.name}
	}
	return a.add(amount, description, on, source, nil)
}

// add creates the transaction, and its mirrored leg when source is set. The
// returned transactions are non-nil once attached, even if an observer failed.
func (a *Account) add(amount decimal.Decimal, description string, on date.Date, source *Account, parent *RecurringTransaction) (*Transaction, *Transaction, error) {
	l := a.ledger
	if l == nil {
		return nil, nil, errRemovedAccount
	}
	if on.IsZero() {
		return nil, nil, errors.New("transaction needs a date")
	}
	if err := a.ensureLoaded(); err != nil {
		return nil, nil, err
	}
	if source != nil {
		if err := source.ensureLoaded(); err != nil {
			return nil, nil, err
		}
	}

	t := &Transaction{amount: amount, description: description, on: on, recurringParent: parent}
	var link *Transaction
	if source != nil {
		link = &Transaction{amount: amount.Neg(), description: description, on: on}
		t.link, link.link = link, t
	}

	err := l.Batch(func() error {
		a.attach(t)
		errs := []error{
			l.notify(func(o Observer) error { return o.TransactionsCreated(a, []*Transaction{t}) }),
			l.notify(func(o Observer) error { return o.AccountBalanceChanged(a) }),
		}
		if link != nil {
			source.attach(link)
			errs = append(errs,
				l.notify(func(o Observer) error { return o.TransactionsCreated(source, []*Transaction{link}) }),
				l.notify(func(o Observer) error { return o.AccountBalanceChanged(source) }),
			)
		}
		return errors.Join(errs...)
	})
	return t, link, err
}

func (a *Account) attach(t *Transaction) {
	t.parent = a
	a.transactions = append(a.transactions, t)
	a.balance = a.balance.Add(t.amount)
	a.ledger.tag(t.description)
}

func (a *Account) detach(t *Transaction) {
	a.transactions = slices.DeleteFunc(a.transactions, func(x *Transaction) bool { return x == t })
	a.balance = a.balance.Sub(t.amount)
	a.ledger.untag(t.description)
	t.parent = nil
}

func (a *Account) validate(ts []*Transaction) error {
	for _, t := range ts {
		if t == nil || t.parent != a {
			var id int64
			if t != nil {
				id = t.id
			}
			return &InvalidTransactionError{TransactionID: id, Account: a.name}
		}
	}
	return nil
}

// RemoveTransactions deletes ts from the account. The linked leg of a
// transfer is removed from its own account too.
func (a *Account) RemoveTransactions(ts ...*Transaction) error {
	l := a.ledger
	if l == nil {
		return errRemovedAccount
	}
	if err := a.ensureLoaded(); err != nil {
		return err
	}
	if err := a.validate(ts); err != nil {
		return err
	}
	return l.Batch(func() error { return l.remove(a, ts) })
}

// remove detaches ts and their linked legs, then notifies once per touched
// account in ledger order.
func (l *Ledger) remove(a *Account, ts []*Transaction) error {
	removed := map[*Account][]*Transaction{}
	for _, t := range ts {
		if t.parent != a {
			continue
		}
		a.detach(t)
		removed[a] = append(removed[a], t)
		if other := t.link; other != nil && other.parent != nil {
			owner := other.parent
			owner.detach(other)
			removed[owner] = append(removed[owner], other)
		}
	}
	var errs []error
	for _, acc := range l.touched(a, removed) {
		list := removed[acc]
		errs = append(errs,
			l.notify(func(o Observer) error { return o.TransactionsRemoved(acc, list) }),
			l.notify(func(o Observer) error { return o.AccountBalanceChanged(acc) }),
		)
	}
	return errors.Join(errs...)
}

// touched orders the keys of m with first leading, then in ledger order.
func (l *Ledger) touched(first *Account, m map[*Account][]*Transaction) []*Account {
	var out []*Account
	if _, ok := m[first]; ok {
		out = append(out, first)
	}
	for _, acc := range l.accounts {
		if _, ok := m[acc]; ok && acc != first {
			out = append(out, acc)
		}
	}
	return out
}

// MoveTransactions moves ts into dest, keeping their amounts, descriptions,
// dates and links. Moving a transfer leg into the account holding its
// counterpart is refused.
func (a *Account) MoveTransactions(dest *Account, ts ...*Transaction) error {
	l := a.ledger
	if l == nil {
		return errRemovedAccount
	}
	if dest == nil || dest.ledger != l {
		name := ""
		if dest != nil {
			name = dest.name
		}
		return &InvalidAccountError{Name: name}
	}
	if dest == a {
		return nil
	}
	if err := a.ensureLoaded(); err != nil {
		return err
	}
	if err := dest.ensureLoaded(); err != nil {
		return err
	}
	if err := a.validate(ts); err != nil {
		return err
	}
	linkOwner := map[*Transaction]*Account{}
	for _, t := range ts {
		if t.link == nil {
			continue
		}
		if t.link.parent == dest {
			return fmt.Errorf("cannot move transfer %d into its own source account %q", t.id, dest.name)
		}
		linkOwner[t] = t.link.parent
	}

	return l.Batch(func() error {
		if err := l.remove(a, ts); err != nil {
			return err
		}
		created := map[*Account][]*Transaction{}
		for _, t := range ts {
			if t.parent != nil {
				continue
			}
			dest.attach(t)
			created[dest] = append(created[dest], t)
			if owner := linkOwner[t]; owner != nil && owner.ledger != nil {
				owner.attach(t.link)
				created[owner] = append(created[owner], t.link)
			}
		}
		var errs []error
		for _, acc := range l.touched(dest, created) {
			list := created[acc]
			errs = append(errs,
				l.notify(func(o Observer) error { return o.TransactionsCreated(acc, list) }),
				l.notify(func(o Observer) error { return o.AccountBalanceChanged(acc) }),
			)
		}
		return errors.Join(errs...)
	})
}

// SetBalance corrects the cached balance. It is used after a resync.
func (a *Account) SetBalance(b decimal.Decimal) error {
	if a.balance.Equal(b) {
		return nil
	}
	a.balance = b
	return a.ledger.notify(func(o Observer) error { return o.AccountBalanceChanged(a) })
}
