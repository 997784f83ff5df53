package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketbank/internal/date"
)

// SearchField restricts which transaction attribute Search matches.
type SearchField int

const (
	SearchAll SearchField = iota
	SearchDescription
	SearchAmount
	SearchDate
)

// ParseSearchField maps "all", "description", "amount" and "date".
func ParseSearchField(s string) (SearchField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return SearchAll, nil
	case "description", "desc":
		return SearchDescription, nil
	case "amount":
		return SearchAmount, nil
	case "date":
		return SearchDate, nil
	}
	return SearchAll, fmt.Errorf("unknown search field %q", s)
}

// Search returns the transactions whose field contains text, ignoring case.
// A nil account searches the whole ledger.
func (l *Ledger) Search(text string, account *Account, field SearchField) ([]*Transaction, error) {
	var (
		all []*Transaction
		err error
	)
	if account != nil {
		all, err = account.Transactions()
	} else {
		all, err = l.Transactions()
	}
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(text)
	return slices.DeleteFunc(all, func(t *Transaction) bool {
		return !matches(t, needle, field)
	}), nil
}

func matches(t *Transaction, needle string, field SearchField) bool {
	var hay []string
	if field == SearchAll || field == SearchDescription {
		hay = append(hay, strings.ToLower(t.description))
	}
	if field == SearchAll || field == SearchAmount {
		hay = append(hay, t.amount.String(), t.amount.StringFixed(2))
	}
	if field == SearchAll || field == SearchDate {
		hay = append(hay, t.on.String(), t.on.Store())
	}
	for _, h := range hay {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}

// TotalPoint is the running balance at the end of Date.
type TotalPoint struct {
	Date  date.Date
	Total decimal.Decimal
}

// XTotals returns the running balance of account (or of the whole ledger for
// a nil account) with one point per distinct transaction date in [from, to].
// Zero bounds are open. Transactions before from seed the first point.
func (l *Ledger) XTotals(account *Account, from, to date.Date) ([]TotalPoint, error) {
	var (
		all []*Transaction
		err error
	)
	if account != nil {
		all, err = account.Transactions()
	} else {
		all, err = l.Transactions()
	}
	if err != nil {
		return nil, err
	}
	SortByDate(all)

	var points []TotalPoint
	total := decimal.Zero
	for _, t := range all {
		total = total.Add(t.amount)
		if !from.IsZero() && t.on.Before(from) {
			continue
		}
		if !to.IsZero() && t.on.After(to) {
			break
		}
		if n := len(points); n > 0 && points[n-1].Date == t.on {
			points[n-1].Total = total
			continue
		}
		points = append(points, TotalPoint{Date: t.on, Total: total})
	}
	return points, nil
}

// SortByDate orders ts by date, keeping insertion order for equal dates.
func SortByDate(ts []*Transaction) {
	slices.SortStableFunc(ts, func(x, y *Transaction) int {
		return x.on.Compare(y.on)
	})
}
