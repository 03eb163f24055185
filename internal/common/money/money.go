// Package money handles the loosely-typed amounts the donor portal and the
// payment gateway exchange. Amounts are major-unit floats on the wire; the
// gateway's hash contract requires them re-rendered with exactly two decimals.
package money

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary amount in major currency units.
type Amount float64

// Coerce converts a decoded JSON value into an Amount. The portal frontend
// sends amounts as numbers or numeric strings interchangeably.
func Coerce(v any) (Amount, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return Amount(n), true
	case float32:
		return Amount(n), true
	case int:
		return Amount(n), true
	case int64:
		return Amount(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return Amount(f), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return Amount(f), true
	default:
		return 0, false
	}
}

// CoerceQuantity converts a decoded JSON value into an item quantity,
// defaulting to 1 when absent or non-numeric.
func CoerceQuantity(v any) int {
	a, ok := Coerce(v)
	if !ok || a <= 0 {
		return 1
	}
	return int(a)
}

// Gateway renders the amount the way the gateway's hash contract requires:
// a plain decimal string with exactly two fraction digits.
func (a Amount) Gateway() string {
	return fmt.Sprintf("%.2f", float64(a))
}

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool {
	return a > 0
}

// Add returns the sum of two amounts.
func (a Amount) Add(other Amount) Amount {
	return a + other
}
