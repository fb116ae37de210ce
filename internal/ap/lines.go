package ap

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// LineAmounts splits a line into net, tax and total cents. The total is
// (qty × price − discount) × (1 + rate/100) rounded half away from zero; the net is
// rounded the same way and tax absorbs the difference so net + tax = total.
func LineAmounts(in LineInput) (net, tax, total money.Cents) {
	gross := in.Quantity.Mul(decimal.NewFromInt(int64(in.UnitPrice))).Sub(decimal.NewFromInt(int64(in.Discount)))
	net = money.Cents(gross.Round(0).IntPart())
	total = money.Cents(gross.Mul(hundred.Add(in.TaxRate)).Div(hundred).Round(0).IntPart())
	return net, total - net, total
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return shared.Errorf(shared.ErrValidation, "ap: at least one line is required")
	}
	for idx, l := range lines {
		switch {
		case !l.Quantity.IsPositive():
			return shared.Errorf(shared.ErrValidation, "ap: line %d quantity must be positive", idx+1)
		case l.UnitPrice < 0:
			return shared.Errorf(shared.ErrValidation, "ap: line %d unit price cannot be negative", idx+1)
		case l.Discount < 0:
			return shared.Errorf(shared.ErrValidation, "ap: line %d discount cannot be negative", idx+1)
		case l.TaxRate.IsNegative():
			return shared.Errorf(shared.ErrValidation, "ap: line %d tax rate cannot be negative", idx+1)
		case strings.TrimSpace(l.GLAccountCode) == "":
			return shared.Errorf(shared.ErrValidation, "ap: line %d gl account required", idx+1)
		}
		if l.Quantity.Mul(decimal.NewFromInt(int64(l.UnitPrice))).LessThan(decimal.NewFromInt(int64(l.Discount))) {
			return shared.Errorf(shared.ErrValidation, "ap: line %d discount exceeds line amount", idx+1)
		}
	}
	return nil
}

// buildLines prices each input line in document order.
func buildLines(inputs []LineInput) ([]BillLine, money.Cents) {
	lines := make([]BillLine, 0, len(inputs))
	var total money.Cents
	for idx, in := range inputs {
		_, _, lineTotal := LineAmounts(in)
		lines = append(lines, BillLine{
			Description:   strings.TrimSpace(in.Description),
			Quantity:      in.Quantity,
			Unit:          in.Unit,
			UnitPrice:     in.UnitPrice,
			Discount:      in.Discount,
			TaxRate:       in.TaxRate,
			GLAccountCode: strings.TrimSpace(in.GLAccountCode),
			LineTotal:     lineTotal,
			SortOrder:     idx + 1,
		})
		total += lineTotal
	}
	return lines, total
}

// splitByAccount aggregates net amounts per GL code and the tax across all lines.
func splitByAccount(lines []BillLine) (map[string]money.Cents, money.Cents) {
	net := map[string]money.Cents{}
	var tax money.Cents
	for _, l := range lines {
		n, t, _ := LineAmounts(l.input())
		net[l.GLAccountCode] += n
		tax += t
	}
	return net, tax
}

func (l BillLine) input() LineInput {
	return LineInput{
		Description:   l.Description,
		Quantity:      l.Quantity,
		Unit:          l.Unit,
		UnitPrice:     l.UnitPrice,
		Discount:      l.Discount,
		TaxRate:       l.TaxRate,
		GLAccountCode: l.GLAccountCode,
	}
}
