package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in cents. It serializes to JSON as a dollar amount with two decimals.
type Money int64

// NewMoney converts a dollar amount to cents, rounding half away from zero
func NewMoney(dollars float64) Money {
	return Money(math.Round(dollars * 100))
}

// Dollars returns the amount as a float dollar value
func (m Money) Dollars() float64 {
	return float64(m) / 100
}

// Cents returns the raw cent amount
func (m Money) Cents() int64 {
	return int64(m)
}

// String formats the amount as "$12.34"
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

// Plain formats the amount without the currency sign, e.g. "12.34"
func (m Money) Plain() string {
	return strconv.FormatFloat(m.Dollars(), 'f', 2, 64)
}

// MulRate multiplies by a rate and rounds to the nearest cent
func (m Money) MulRate(rate float64) Money {
	return Money(math.Round(float64(m) * rate))
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Plain()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var f float64

	if err := json.Unmarshal(data, &f); err != nil {
		// accept quoted amounts like "12.50"
		var s string
		if err2 := json.Unmarshal(data, &s); err2 != nil {
			return fmt.Errorf("invalid money amount %s: %w", string(data), err)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid money amount %q: %w", s, err)
		}
		f = parsed
	}

	*m = NewMoney(f)
	return nil
}
