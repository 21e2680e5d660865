// Package tax computes what a vehicle owes for a fiscal period: bracket lookup,
// environmental discounts, proration for new vehicles and the traffic-light
// fee. Everything except PeriodManager is a pure function of its inputs.
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// Resolve returns the first bracket whose inclusive range contains value.
// An empty table or a value outside every bracket is ErrNoApplicableRate,
// never a zero rate.
func Resolve(value decimal.Decimal, brackets []models.RateBracket) (models.RateBracket, error) {
	for _, b := range brackets {
		if b.Contains(value) {
			return b, nil
		}
	}
	return models.RateBracket{}, apperr.ErrNoApplicableRate
}

// BracketsFor filters a period's rate table down to one vehicle type, keeping
// the stored order.
func BracketsFor(brackets []models.RateBracket, vt models.VehicleType) []models.RateBracket {
	var out []models.RateBracket
	for _, b := range brackets {
		if b.VehicleType == vt {
			out = append(out, b)
		}
	}
	return out
}
