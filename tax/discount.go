package tax

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// DiscountYears is how long an environmental discount lasts after registration
const DiscountYears = 5

var (
	multiplierElectricPublic  = decimal.RequireFromString("0.30")
	multiplierElectricPrivate = decimal.RequireFromString("0.40")
	multiplierHybrid          = decimal.RequireFromString("0.60")
	electricCapFraction       = decimal.RequireFromString("0.01")
	one                       = decimal.NewFromInt(1)
	hundred                   = decimal.NewFromInt(100)
	monthsInYear              = decimal.NewFromInt(12)
)

// DiscountPolicy decides environmental discounts against an injected clock
type DiscountPolicy struct {
	Clock clock.Clock
}

// Eligible is true for electric or hybrid vehicles whose discount has not
// expired. A vehicle without an expiry date stays eligible.
func (p DiscountPolicy) Eligible(v models.Vehicle) bool {
	if !v.IsElectric && !v.IsHybrid {
		return false
	}
	return v.DiscountExpiry == nil || v.DiscountExpiry.After(p.Clock.Now())
}

// Multiplier is the share of the base tax that is still owed
func (p DiscountPolicy) Multiplier(v models.Vehicle) decimal.Decimal {
	switch DiscountTypeFor(v) {
	case models.DiscountElectricPublic:
		return multiplierElectricPublic
	case models.DiscountElectricPrivate:
		return multiplierElectricPrivate
	case models.DiscountHybrid:
		return multiplierHybrid
	}
	return one
}

// DiscountTypeFor classifies a vehicle by fuel and service class
func DiscountTypeFor(v models.Vehicle) models.DiscountType {
	switch {
	case v.IsElectric && v.Type == models.VehicleTypePublic:
		return models.DiscountElectricPublic
	case v.IsElectric:
		return models.DiscountElectricPrivate
	case v.IsHybrid:
		return models.DiscountHybrid
	}
	return models.DiscountNone
}

// DiscountPercentage is the whole-percent reduction for a discount type
func DiscountPercentage(t models.DiscountType) int {
	switch t {
	case models.DiscountElectricPublic:
		return 70
	case models.DiscountElectricPrivate:
		return 60
	case models.DiscountHybrid:
		return 40
	}
	return 0
}

// DiscountExpiry is the default end of the discount window for a registration
func DiscountExpiry(registered time.Time) time.Time {
	return registered.AddDate(DiscountYears, 0, 0)
}

// Prorate scales amount to the months from the registration month through
// December inclusive.
func Prorate(amount decimal.Decimal, registered time.Time) decimal.Decimal {
	remaining := decimal.NewFromInt(int64(13 - int(registered.Month())))
	return amount.Mul(remaining).Div(monthsInYear)
}
