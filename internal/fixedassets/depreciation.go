package fixedassets

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// monthsElapsed counts whole calendar months from the purchase month to the run month.
func monthsElapsed(purchase, runMonth time.Time) int {
	return (runMonth.Year()-purchase.Year())*12 + int(runMonth.Month()) - int(purchase.Month())
}

// RemainingLife returns the months of useful life left at the start of runMonth,
// counting runMonth itself.
func RemainingLife(a Asset, runMonth time.Time) int {
	return a.UsefulLifeMonths - monthsElapsed(a.PurchaseDate, runMonth)
}

// MonthlyCharge computes the depreciation for one asset and month. Assets that
// are fully depreciated, out of life or not yet purchased return zero.
func MonthlyCharge(a Asset, runMonth time.Time) money.Cents {
	runMonth = FirstOfMonth(runMonth)
	if a.Status != AssetActive || a.UsefulLifeMonths <= 0 {
		return 0
	}
	if a.PurchaseDate.After(LastOfMonth(runMonth)) {
		return 0
	}
	remaining := a.DepreciableBase() - a.Accumulated
	if remaining <= 0 {
		return 0
	}
	life := RemainingLife(a, runMonth)
	if life <= 0 {
		return 0
	}
	switch a.Method {
	case MethodStraightLine:
		monthly := a.DepreciableBase() / money.Cents(a.UsefulLifeMonths)
		if monthly == 0 {
			monthly = remaining
		}
		return money.Min(monthly, remaining)
	case MethodDecliningBalance:
		candidate := (a.Cost - a.Accumulated) * 2 / money.Cents(a.UsefulLifeMonths)
		return money.Min(money.Max(candidate, 0), remaining)
	default:
		return 0
	}
}
