package audit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/money"
)

// fixedLoader hands out a canned set of transactions.
type fixedLoader struct {
	ts []*model.Transaction
}

func (f *fixedLoader) LoadTransactions(*model.Account) ([]*model.Transaction, error) {
	return f.ts, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var jan = date.New(2024, time.January, 15)

func checks(errs []ValidationError) []Check {
	out := make([]Check, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Check)
	}
	return out
}

func TestValidate_Clean(t *testing.T) {
	l := model.New(money.DefaultCurrency)
	chk, err := l.CreateAccount("Checking")
	require.NoError(t, err)
	sav, err := l.CreateAccount("Savings")
	require.NoError(t, err)

	_, err = chk.AddTransaction(dec("100.50"), "salary", jan)
	require.NoError(t, err)
	_, _, err = sav.AddTransfer(dec("25"), "save", jan, chk)
	require.NoError(t, err)

	errs, err := Validate(l)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidate_Findings(t *testing.T) {
	tests := []struct {
		name  string
		build func(l *model.Ledger)
		want  []Check
	}{
		{
			name: "stale balance",
			build: func(l *model.Ledger) {
				l.RestoreAccount(1, "Cash", money.DefaultCurrency, dec("10"), &fixedLoader{ts: []*model.Transaction{
					model.NewTransaction(1, dec("4"), "a", jan),
				}})
			},
			want: []Check{CheckBalance},
		},
		{
			name: "too many decimals",
			build: func(l *model.Ledger) {
				l.RestoreAccount(1, "Cash", money.DefaultCurrency, dec("1.005"), &fixedLoader{ts: []*model.Transaction{
					model.NewTransaction(1, dec("1.005"), "a", jan),
				}})
			},
			want: []Check{CheckPrecision},
		},
		{
			name: "mixed currencies",
			build: func(l *model.Ledger) {
				l.RestoreAccount(1, "A", money.DefaultCurrency, decimal.Zero, nil)
				eur, err := money.Lookup("EUR")
				if err != nil {
					panic(err)
				}
				l.RestoreAccount(2, "B", eur, decimal.Zero, nil)
			},
			want: []Check{CheckCurrency},
		},
		{
			name: "transfer legs disagree",
			build: func(l *model.Ledger) {
				a := model.NewTransaction(1, dec("5"), "move", jan)
				b := model.NewTransaction(2, dec("-4"), "move", jan.Add(1))
				model.RestoreLink(a, b)
				l.RestoreAccount(1, "A", money.DefaultCurrency, dec("5"), &fixedLoader{ts: []*model.Transaction{a}})
				l.RestoreAccount(2, "B", money.DefaultCurrency, dec("-4"), &fixedLoader{ts: []*model.Transaction{b}})
			},
			// amount and date, reported from both sides
			want: []Check{CheckLink, CheckLink, CheckLink, CheckLink},
		},
		{
			name: "transfer within one account",
			build: func(l *model.Ledger) {
				a := model.NewTransaction(1, dec("5"), "loop", jan)
				b := model.NewTransaction(2, dec("-5"), "loop", jan)
				model.RestoreLink(a, b)
				l.RestoreAccount(1, "A", money.DefaultCurrency, decimal.Zero, &fixedLoader{ts: []*model.Transaction{a, b}})
			},
			want: []Check{CheckLink, CheckLink},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := model.New(money.DefaultCurrency)
			tt.build(l)
			errs, err := Validate(l)
			require.NoError(t, err)
			assert.Equal(t, tt.want, checks(errs))
			for _, e := range errs {
				assert.NotEmpty(t, e.Error())
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Check: CheckLink, Account: "A", TransactionID: 7, Description: "bad"}
	assert.Equal(t, "link [A #7]: bad", e.Error())

	e = ValidationError{Check: CheckBalance, Account: "A", Description: "off"}
	assert.Equal(t, "balance [A]: off", e.Error())
}

type balanceCounter struct {
	model.NopObserver
	n int
}

func (b *balanceCounter) AccountBalanceChanged(*model.Account) error {
	b.n++
	return nil
}

func TestFixBalances(t *testing.T) {
	l := model.New(money.DefaultCurrency)
	l.RestoreAccount(1, "Good", money.DefaultCurrency, dec("3"), &fixedLoader{ts: []*model.Transaction{
		model.NewTransaction(1, dec("3"), "a", jan),
	}})
	l.RestoreAccount(2, "Stale", money.DefaultCurrency, dec("99"), &fixedLoader{ts: []*model.Transaction{
		model.NewTransaction(2, dec("1.25"), "b", jan),
		model.NewTransaction(3, dec("0.75"), "c", jan),
	}})
	obs := &balanceCounter{}
	l.Subscribe(obs)

	fixed, err := FixBalances(l)
	require.NoError(t, err)
	require.Len(t, fixed, 1)
	assert.Equal(t, "Stale", fixed[0].Name())
	assert.True(t, fixed[0].Balance().Equal(dec("2")))
	assert.Equal(t, 1, obs.n)

	errs, err := Validate(l)
	require.NoError(t, err)
	assert.Empty(t, errs)
}
