// Package core provides money parsing and handling utilities.
//
// Amounts are stored as integers in the smallest unit of the user's currency.
// Yen have no minor unit, so one Money is one yen.
package core

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative monetary amount. Sign is carried by TransactionType.
type Money int64

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts decimal text to Money with half-up rounding.
//
// A dot is the only decimal separator. Commas, spaces and apostrophes are
// thousands separators; commas must group the integer part in threes.
// Negative, zero and malformed values are rejected.
//
// Examples:
//
//	ParseAmount("1200")      -> 1200, nil
//	ParseAmount("1,200")     -> 1200, nil
//	ParseAmount("1,234,567") -> 1234567, nil
//	ParseAmount("1200.5")    -> 1201, nil
func ParseAmount(s string) (Money, error) {
	s = strings.NewReplacer(" ", "", "'", "").Replace(strings.TrimSpace(s))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		whole, frac, hasFrac := strings.Cut(s, ".")
		if !thousandsGrouped(whole) {
			return 0, ErrInvalidAmount
		}
		s = strings.ReplaceAll(whole, ",", "")
		if hasFrac {
			s += "." + frac
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	rounded := d.Round(0)
	if !rounded.IsPositive() || !rounded.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return Money(rounded.IntPart()), nil
}

// thousandsGrouped reports whether s looks like "1,234,567".
func thousandsGrouped(s string) bool {
	groups := strings.Split(s, ",")
	if len(groups[0]) < 1 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

func (m Money) Validate() error {
	if m <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Int64 returns the raw amount.
func (m Money) Int64() int64 {
	return int64(m)
}

// String formats the amount with thousands separators, e.g. "¥12,345".
// Negative values (balances) are prefixed with a minus sign.
func (m Money) String() string {
	v := int64(m)
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-¥" + b.String()
	}
	return "¥" + b.String()
}
