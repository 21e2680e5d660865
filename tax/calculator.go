package tax

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

// Breakdown is the amount a vehicle owes for one fiscal period
type Breakdown struct {
	Rate            decimal.Decimal `json:"rate"`           // whole percent from the bracket
	PreDiscountTax  decimal.Decimal `json:"preDiscountTax"` // bracket tax before cap and discount, prorated when new
	BaseTax         decimal.Decimal `json:"baseTax"`
	TrafficLightFee decimal.Decimal `json:"trafficLightFee"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Discount        *DiscountInfo   `json:"discount,omitempty"`
}

// DiscountInfo describes the environmental discount applied to a breakdown
type DiscountInfo struct {
	Type        models.DiscountType `json:"type"`
	Percentage  int                 `json:"percentage"`
	AmountSaved decimal.Decimal     `json:"amountSaved"`
	ExpiryDate  *time.Time          `json:"expiryDate,omitempty"`
	// Expired marks a discount past its expiry date. The multiplier still
	// applies; the flag is informational.
	Expired bool `json:"expired"`
}

// Calculator composes the resolver, the discount policy and the traffic-light
// fee into a Breakdown
type Calculator struct {
	Policy DiscountPolicy
}

// Compute returns the breakdown for v in period using brackets. Amounts are
// rounded half away from zero to two places, which is half-up for the
// non-negative values produced here.
func (c Calculator) Compute(v models.Vehicle, period models.FiscalPeriod, brackets []models.RateBracket) (Breakdown, error) {
	bracket, err := Resolve(v.CommercialValue, BracketsFor(brackets, v.Type))
	if err != nil {
		return Breakdown{}, err
	}

	naive := v.CommercialValue.Mul(bracket.Rate.Div(hundred))
	base := naive

	// the 1% ceiling for electric vehicles comes before the discount
	if v.IsElectric {
		base = decimal.Min(base, v.CommercialValue.Mul(electricCapFraction))
	}
	base = base.Mul(c.Policy.Multiplier(v))

	if v.IsNew {
		base = Prorate(base, v.RegistrationDate)
		naive = Prorate(naive, v.RegistrationDate)
	}

	base = base.Round(2)
	naive = naive.Round(2)
	fee := TrafficLightFee(v, period)

	b := Breakdown{
		Rate:            bracket.Rate,
		PreDiscountTax:  naive,
		BaseTax:         base,
		TrafficLightFee: fee,
		TotalAmount:     base.Add(fee),
	}
	if v.IsElectric || v.IsHybrid {
		dt := DiscountTypeFor(v)
		info := &DiscountInfo{
			Type:        dt,
			Percentage:  DiscountPercentage(dt),
			AmountSaved: naive.Sub(base),
			ExpiryDate:  v.DiscountExpiry,
			Expired:     !c.Policy.Eligible(v),
		}
		b.Discount = info
	}
	return b, nil
}

var half = decimal.RequireFromString("0.5")

// TrafficLightFee is the period's flat fee, halved for motorcycles and waived
// for exempt vehicles
func TrafficLightFee(v models.Vehicle, period models.FiscalPeriod) decimal.Decimal {
	if v.TrafficLightFeeExempt {
		return decimal.Zero
	}
	if v.Type == models.VehicleTypeMotorcycle {
		return period.TrafficLightFee.Mul(half)
	}
	return period.TrafficLightFee
}
