// Package money holds the integer-cent amount type used by every ledger module.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Cents is an amount in the smallest currency unit.
type Cents int64

var hundred = decimal.NewFromInt(100)

// FromDecimal converts a major-unit amount to cents, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Mul(hundred).Round(0).IntPart())
}

// FromDecimalExact converts a major-unit amount to cents, rejecting sub-cent precision.
func FromDecimalExact(d decimal.Decimal) (Cents, error) {
	scaled := d.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("money: %s has more than two decimal places", d.String())
	}
	return Cents(scaled.IntPart()), nil
}

// Parse reads a major-unit amount such as "1250.50" or "1,250.50".
func Parse(s string) (Cents, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return 0, fmt.Errorf("money: empty amount")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimalExact(d)
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount with two decimals and no grouping.
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Display renders the amount with thousands grouping for messages.
func (c Cents) Display() string {
	p := message.NewPrinter(language.English)
	return p.Sprint(number.Decimal(c.Decimal().InexactFloat64(), number.Scale(2)))
}

// Min returns the smaller amount.
func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger amount.
func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

// Sum adds the amounts.
func Sum(values ...Cents) Cents {
	var total Cents
	for _, v := range values {
		total += v
	}
	return total
}
