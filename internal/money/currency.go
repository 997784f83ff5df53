package money

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is an index into the fixed currency table. Persisted as an integer,
// so entries may only ever be appended.
type Currency int

var codes = []string{
	"USD", "EUR", "GBP", "JPY", "RUB", "CAD", "AUD", "CHF", "SEK", "NOK",
	"DKK", "MXN", "BRL", "INR", "PLN", "CZK", "HUF", "ZAR", "NZD", "SGD",
	"HKD", "KRW", "CNY", "TRY", "ILS", "UAH", "RON", "THB",
}

// DefaultCurrency is used when nothing else decides, index 0.
const DefaultCurrency Currency = 0

// Codes returns the ISO codes of the table in index order.
func Codes() []string {
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// Lookup returns the Currency for an ISO code (case-insensitive).
func Lookup(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i, c := range codes {
		if c == code {
			return Currency(i), nil
		}
	}
	return 0, fmt.Errorf("unknown currency %q", code)
}

// Valid reports whether c indexes the table.
func (c Currency) Valid() bool { return c >= 0 && int(c) < len(codes) }

// Code returns the ISO code, or "" for an invalid index.
func (c Currency) Code() string {
	if !c.Valid() {
		return ""
	}
	return codes[c]
}

func (c Currency) String() string { return c.Code() }

func (c Currency) details() *gomoney.Currency {
	// go through the Money constructor to always get a non-nil currency
	return gomoney.New(0, c.Code()).Currency()
}

// Fraction returns the number of minor-unit digits of the currency.
func (c Currency) Fraction() int { return c.details().Fraction }

// Format renders amount with the currency's symbol and separators.
func (c Currency) Format(amount decimal.Decimal) string {
	cur := c.details()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// Round rounds amount to the currency's minor unit.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(int32(c.Fraction()))
}
