// Package core provides money parsing and handling utilities.
//
// Amounts are decimals without a currency unit. They are never signed on the
// record itself; the sign comes from the transaction kind.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative decimal amount.
type Money struct {
	decimal.Decimal
}

// NewMoney builds a Money from a float, intended for tests and literals.
func NewMoney(v float64) Money {
	return Money{Decimal: decimal.NewFromFloat(v)}
}

// MoneyFromDecimal wraps an existing decimal.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// ParseAmount converts a user or spreadsheet supplied string into Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// values and anything that is not a plain decimal number are rejected.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> error
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			return Money{}, ErrInvalidAmount
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Decimal: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate rejects negative amounts and amounts that would not survive a
// workbook round trip, where cells hold float64 numbers.
func (m Money) Validate() error {
	if m.IsNegative() {
		return ErrNegativeAmount
	}
	if !decimal.NewFromFloat(m.InexactFloat64()).Equal(m.Decimal) {
		return ErrAmountPrecision
	}
	return nil
}
