// Package model holds the in-memory ledger: accounts, transactions and
// recurring transactions. Every mutation is announced to subscribed
// observers, which is how the store learns what to persist.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/money"
)

// Ledger is the ordered collection of accounts plus the ledger-wide state
// shared by every account.
type Ledger struct {
	accounts []*Account
	subs     []*subscription
	currency money.Currency
	tags     map[string]int

	lastAccount        *Account
	integrationEnabled bool
}

// New returns an empty ledger whose first account will use currency.
func New(currency money.Currency) *Ledger {
	if !currency.Valid() {
		currency = money.DefaultCurrency
	}
	return &Ledger{currency: currency, tags: make(map[string]int)}
}

// Accounts returns the accounts sorted by name.
func (l *Ledger) Accounts() []*Account {
	return slices.Clone(l.accounts)
}

// Account returns the account named name, or nil.
func (l *Ledger) Account(name string) *Account {
	for _, a := range l.accounts {
		if a.name == name {
			return a
		}
	}
	return nil
}

// AccountByID returns the account with the persisted id, or nil.
func (l *Ledger) AccountByID(id int64) *Account {
	for _, a := range l.accounts {
		if a.id == id {
			return a
		}
	}
	return nil
}

// MustAccount is Account returning InvalidAccountError for unknown names.
func (l *Ledger) MustAccount(name string) (*Account, error) {
	a := l.Account(name)
	if a == nil {
		return nil, &InvalidAccountError{Name: name}
	}
	return a, nil
}

// Balance is the sum of every account balance.
func (l *Ledger) Balance() decimal.Decimal {
	total := decimal.Zero
	for _, a := range l.accounts {
		total = total.Add(a.balance)
	}
	return total
}

// Currency is the currency new accounts are created with.
func (l *Ledger) Currency() money.Currency {
	if len(l.accounts) > 0 {
		return l.accounts[0].currency
	}
	return l.currency
}

// SetCurrency switches every account to c.
func (l *Ledger) SetCurrency(c money.Currency) error {
	if !c.Valid() {
		return fmt.Errorf("invalid currency index %d", int(c))
	}
	l.currency = c
	return l.Batch(func() error {
		var errs []error
		for _, a := range l.accounts {
			if a.currency == c {
				continue
			}
			a.currency = c
			errs = append(errs, l.notify(func(o Observer) error { return o.AccountCurrencyChanged(a) }))
		}
		return errors.Join(errs...)
	})
}

// CreateAccount adds an empty account in the ledger's currency.
func (l *Ledger) CreateAccount(name string) (*Account, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &BlankAccountNameError{}
	}
	if l.Account(name) != nil {
		return nil, &AccountExistsError{Name: name}
	}
	a := &Account{
		ledger:   l,
		name:     name,
		currency: l.Currency(),
		balance:  decimal.Zero,
		loaded:   true,
	}
	l.accounts = append(l.accounts, a)
	l.sortAccounts()
	return a, l.notify(func(o Observer) error { return o.AccountCreated(a) })
}

// RemoveAccount deletes the named account with its transactions and
// recurring transactions. Transfers into other accounts lose their link but
// keep their amount; recurring transfers drawing on the account stop being
// transfers. Transactions generated by the account's recurring transactions
// that now live elsewhere lose their recurring parent.
func (l *Ledger) RemoveAccount(name string) error {
	a, err := l.MustAccount(name)
	if err != nil {
		return err
	}
	if err := l.LoadAll(); err != nil {
		return err
	}
	return l.Batch(func() error {
		var errs []error
		for _, other := range l.accounts {
			if other == a {
				continue
			}
			for _, t := range other.transactions {
				if t.recurringParent == nil || t.recurringParent.parent != a {
					continue
				}
				t.recurringParent = nil
				errs = append(errs, l.notify(func(o Observer) error { return o.TransactionUpdated(t, FieldRecurringParent) }))
			}
		}
		for _, t := range a.transactions {
			l.untag(t.description)
			if other := t.link; other != nil {
				t.link = nil
				other.link = nil
				errs = append(errs, l.notify(func(o Observer) error { return o.TransactionUpdated(other, FieldLink) }))
			}
		}
		for _, other := range l.accounts {
			if other == a {
				continue
			}
			for _, rt := range other.recurring {
				if rt.params.Source == a {
					rt.params.Source = nil
					errs = append(errs, l.notify(func(o Observer) error { return o.RecurringUpdated(rt) }))
				}
			}
		}
		l.accounts = slices.DeleteFunc(l.accounts, func(x *Account) bool { return x == a })
		if l.lastAccount == a {
			l.lastAccount = nil
		}
		errs = append(errs, l.notify(func(o Observer) error { return o.AccountRemoved(a) }))
		a.ledger = nil
		return errors.Join(errs...)
	})
}

func (l *Ledger) sortAccounts() {
	slices.SortStableFunc(l.accounts, func(x, y *Account) int {
		return strings.Compare(x.name, y.name)
	})
}

// LastAccount is the account the user last worked with, or nil.
func (l *Ledger) LastAccount() *Account { return l.lastAccount }

// SetLastAccount records a as the last used account. a may be nil.
func (l *Ledger) SetLastAccount(a *Account) { l.lastAccount = a }

// IntegrationEnabled reports whether cross-account integration, such as
// reconciliation, is switched on for collaborators that offer it.
func (l *Ledger) IntegrationEnabled() bool { return l.integrationEnabled }

// SetIntegrationEnabled toggles cross-account integration.
func (l *Ledger) SetIntegrationEnabled(v bool) { l.integrationEnabled = v }

// LoadAll forces every lazily loaded account to read its transactions.
func (l *Ledger) LoadAll() error {
	for _, a := range l.accounts {
		if err := a.ensureLoaded(); err != nil {
			return err
		}
	}
	return nil
}

// Transactions returns every transaction of every account, account by account.
func (l *Ledger) Transactions() ([]*Transaction, error) {
	var out []*Transaction
	for _, a := range l.accounts {
		ts, err := a.Transactions()
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	return out, nil
}
