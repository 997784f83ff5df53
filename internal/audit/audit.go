// Package audit checks a loaded ledger against the invariants the model
// maintains: cached balances, transfer pairing and currency precision.
package audit

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/model"
)

// Check identifies the invariant a ValidationError violates.
type Check string

const (
	CheckBalance   Check = "balance"
	CheckLink      Check = "link"
	CheckCurrency  Check = "currency"
	CheckPrecision Check = "precision"
	CheckRecurring Check = "recurring"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Check         Check
	Account       string
	TransactionID int64
	Description   string
}

func (e ValidationError) Error() string {
	if e.TransactionID != 0 {
		return fmt.Sprintf("%s [%s #%d]: %s", e.Check, e.Account, e.TransactionID, e.Description)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Check, e.Account, e.Description)
}

// Validate loads every account and returns all violations found. The error
// is only set when transactions cannot be loaded.
func Validate(l *model.Ledger) ([]ValidationError, error) {
	var errs []ValidationError
	currency := l.Currency()

	for _, a := range l.Accounts() {
		ts, err := a.Transactions()
		if err != nil {
			return nil, err
		}

		if a.Currency() != currency {
			errs = append(errs, ValidationError{
				Check:       CheckCurrency,
				Account:     a.Name(),
				Description: fmt.Sprintf("currency %s differs from ledger currency %s", a.Currency(), currency),
			})
		}

		sum := decimal.Zero
		places := int32(a.Currency().Fraction())
		for _, t := range ts {
			sum = sum.Add(t.Amount())

			if !t.Amount().Equal(t.Amount().Round(places)) {
				errs = append(errs, ValidationError{
					Check:         CheckPrecision,
					Account:       a.Name(),
					TransactionID: t.ID(),
					Description:   fmt.Sprintf("amount %s has more than %d decimal places", t.Amount(), places),
				})
			}

			if link := t.Link(); link != nil {
				errs = append(errs, checkLink(a, t, link)...)
			}
		}
		// Invariant: cached balance equals the sum of the transactions.
		if !sum.Equal(a.Balance()) {
			errs = append(errs, ValidationError{
				Check:       CheckBalance,
				Account:     a.Name(),
				Description: fmt.Sprintf("balance %s != sum of transactions %s", a.Balance(), sum),
			})
		}

		for _, rt := range a.Recurring() {
			if err := rt.Rule().Validate(); err != nil {
				errs = append(errs, ValidationError{
					Check:       CheckRecurring,
					Account:     a.Name(),
					Description: fmt.Sprintf("recurring %q: %v", rt.Description(), err),
				})
			}
			if rt.Source() == a {
				errs = append(errs, ValidationError{
					Check:       CheckRecurring,
					Account:     a.Name(),
					Description: fmt.Sprintf("recurring %q transfers to itself", rt.Description()),
				})
			}
		}
	}
	return errs, nil
}

func checkLink(a *model.Account, t, link *model.Transaction) []ValidationError {
	var errs []ValidationError
	add := func(format string, args ...any) {
		errs = append(errs, ValidationError{
			Check:         CheckLink,
			Account:       a.Name(),
			TransactionID: t.ID(),
			Description:   fmt.Sprintf(format, args...),
		})
	}
	if link.Link() != t {
		add("link to %d is not mirrored", link.ID())
	}
	if link.Parent() == a {
		add("linked to a transaction in the same account")
	}
	if !t.Amount().Equal(link.Amount().Neg()) {
		add("amount %s is not the negation of %s", t.Amount(), link.Amount())
	}
	if t.Description() != link.Description() {
		add("description differs from linked transaction")
	}
	if t.Date() != link.Date() {
		add("date %s differs from linked date %s", t.Date(), link.Date())
	}
	return errs
}

// FixBalances rewrites every cached balance that disagrees with the sum of
// its transactions and returns the accounts it changed.
func FixBalances(l *model.Ledger) ([]*model.Account, error) {
	var fixed []*model.Account
	err := l.Batch(func() error {
		for _, a := range l.Accounts() {
			ts, err := a.Transactions()
			if err != nil {
				return err
			}
			sum := decimal.Zero
			for _, t := range ts {
				sum = sum.Add(t.Amount())
			}
			if sum.Equal(a.Balance()) {
				continue
			}
			if err := a.SetBalance(sum); err != nil {
				return err
			}
			fixed = append(fixed, a)
		}
		return nil
	})
	return fixed, err
}
