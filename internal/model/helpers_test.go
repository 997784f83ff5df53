package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/money"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) date.Date {
	return date.New(y, m, d)
}

// recorder captures events as short strings, e.g. "created Checking 1".
type recorder struct {
	NopObserver
	events []string
}

func (r *recorder) add(format string, args ...any) error {
	r.events = append(r.events, fmt.Sprintf(format, args...))
	return nil
}

func (r *recorder) AccountCreated(a *Account) error { return r.add("account+ %s", a.Name()) }
func (r *recorder) AccountRemoved(a *Account) error { return r.add("account- %s", a.Name()) }
func (r *recorder) AccountRenamed(a *Account, old string) error {
	return r.add("rename %s->%s", old, a.Name())
}
func (r *recorder) AccountCurrencyChanged(a *Account) error {
	return r.add("currency %s %s", a.Name(), a.Currency())
}
func (r *recorder) AccountBalanceChanged(a *Account) error {
	return r.add("balance %s %s", a.Name(), a.Balance())
}
func (r *recorder) TransactionsCreated(a *Account, ts []*Transaction) error {
	return r.add("txn+ %s %d", a.Name(), len(ts))
}
func (r *recorder) TransactionsRemoved(a *Account, ts []*Transaction) error {
	return r.add("txn- %s %d", a.Name(), len(ts))
}
func (r *recorder) TransactionUpdated(t *Transaction, f Field) error {
	return r.add("txn~ %s %s", t.Parent().Name(), f)
}
func (r *recorder) RecurringCreated(*RecurringTransaction) error { return r.add("recurring+") }
func (r *recorder) RecurringUpdated(*RecurringTransaction) error { return r.add("recurring~") }
func (r *recorder) RecurringRemoved(*RecurringTransaction) error { return r.add("recurring-") }
func (r *recorder) BatchStarted() error                          { return r.add("batch(") }
func (r *recorder) BatchEnded() error                            { return r.add(")batch") }

func (r *recorder) reset() { r.events = nil }

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// failAfter fails the nth TransactionsCreated notification and every one
// after it.
type failAfter struct {
	NopObserver
	n, seen int
}

var errInjected = errors.New("injected failure")

func (f *failAfter) TransactionsCreated(*Account, []*Transaction) error {
	f.seen++
	if f.seen >= f.n {
		return errInjected
	}
	return nil
}

func newLedger(t *testing.T, names ...string) (*Ledger, *recorder) {
	t.Helper()
	l := New(money.DefaultCurrency)
	for _, name := range names {
		_, err := l.CreateAccount(name)
		require.NoError(t, err)
	}
	rec := &recorder{}
	l.Subscribe(rec)
	return l, rec
}

func mustAdd(t *testing.T, a *Account, amount, desc string, on date.Date) *Transaction {
	t.Helper()
	tx, err := a.AddTransaction(dec(amount), desc, on)
	require.NoError(t, err)
	return tx
}

// sumOf recomputes the balance from the transactions.
func sumOf(t *testing.T, a *Account) decimal.Decimal {
	t.Helper()
	ts, err := a.Transactions()
	require.NoError(t, err)
	total := decimal.Zero
	for _, tx := range ts {
		total = total.Add(tx.Amount())
	}
	return total
}
