// Package money parses user supplied amounts and holds the fixed currency table.
package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var noise = regexp.MustCompile(`[€$£¥₣₤₧₹₺₽₩฿₫₲₴₸₼₪'\s]|[A-Z]{3}`)

// ParseAmount parses an amount written with either '.' or ',' as the decimal
// separator, with optional thousands separators and currency markers, e.g.
// "1,234.56", "1.234,56", "CHF 1'234.56", "-12,5".
func ParseAmount(s string) (decimal.Decimal, error) {
	std, err := StandardizeAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(std)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return amount, nil
}

// StandardizeAmount rewrites s into the plain "-1234.56" form.
//
// When both separators are present the rightmost one is the decimal separator.
// A lone ',' is decimal when at most two digits follow it and it occurs once.
// A lone '.' is decimal unless it occurs more than once.
func StandardizeAmount(s string) (string, error) {
	str := noise.ReplaceAllString(strings.TrimSpace(s), "")
	if str == "" {
		return "", fmt.Errorf("parsing amount %q: empty", s)
	}

	neg := false
	if strings.HasPrefix(str, "(") && strings.HasSuffix(str, ")") {
		neg = true
		str = str[1 : len(str)-1]
	}
	switch {
	case strings.HasPrefix(str, "-"):
		neg = !neg
		str = str[1:]
	case strings.HasPrefix(str, "+"):
		str = str[1:]
	}

	lastDot := strings.LastIndex(str, ".")
	lastComma := strings.LastIndex(str, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			str = strings.ReplaceAll(str, ".", "")
			str = strings.Replace(str, ",", ".", 1)
		} else {
			str = strings.ReplaceAll(str, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(str, ",") == 1 && len(str)-lastComma-1 <= 2 {
			str = strings.Replace(str, ",", ".", 1)
		} else {
			str = strings.ReplaceAll(str, ",", "")
		}
	case lastDot >= 0 && strings.Count(str, ".") > 1:
		str = strings.ReplaceAll(str, ".", "")
	}

	if str == "" || strings.Count(str, ".") > 1 || strings.ContainsAny(str, "+-,") {
		return "", fmt.Errorf("parsing amount %q: malformed", s)
	}
	if neg {
		str = "-" + str
	}
	return str, nil
}
