// Package money holds the integer minor-unit amount type used for every price,
// fee and total, and the Subtotal type that fee and minimum-order rules accept.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Cents is an amount in minor currency units.
type Cents int64

// FromFloat converts a major-unit amount (9.49) to Cents, rounding half away from zero.
func FromFloat(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Float returns the amount in major units. Only for display and wire formats.
func (c Cents) Float() float64 {
	return float64(c) / 100
}

// String formats the amount as a plain decimal, e.g. "74.99" or "-5.00".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MulRate multiplies by a fractional rate (tax) and rounds to the nearest cent.
func (c Cents) MulRate(rate float64) Cents {
	return Cents(math.Round(float64(c) * rate))
}

// MarshalJSON writes the amount as a decimal number in major units.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number (or numeric string) in major units.
func (c *Cents) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("money: invalid amount %q: %w", string(data), err)
	}
	*c = FromFloat(f)
	return nil
}

// Max returns the larger of a and b.
func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

// Line is one priced cart line.
type Line struct {
	UnitPrice Cents
	Quantity  int
}

// Subtotal is the merchandise-only sum of unit price × quantity, before
// delivery fee, tax, discount and tip. Fee and minimum-order rules take a
// Subtotal so that no other amount can be passed to them by accident.
type Subtotal struct {
	amount Cents
}

// SubtotalOf sums the lines. Lines with a non-positive quantity contribute nothing.
func SubtotalOf(lines ...Line) Subtotal {
	var sum Cents
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum += l.UnitPrice * Cents(l.Quantity)
	}
	return Subtotal{amount: sum}
}

// Cents returns the subtotal amount.
func (s Subtotal) Cents() Cents {
	return s.amount
}

func (s Subtotal) String() string {
	return s.amount.String()
}

// MarshalJSON renders the subtotal like any other amount.
func (s Subtotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.amount)
}
