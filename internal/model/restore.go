package model

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/money"
)

// RestoreAccount adds a persisted account without emitting events. Its
// transactions are read through loader on first use; a nil loader means the
// account has none.
func (l *Ledger) RestoreAccount(id int64, name string, currency money.Currency, balance decimal.Decimal, loader TransactionLoader) *Account {
	a := &Account{
		id:       id,
		ledger:   l,
		name:     name,
		currency: currency,
		balance:  balance,
		loader:   loader,
	}
	l.accounts = append(l.accounts, a)
	l.sortAccounts()
	return a
}
