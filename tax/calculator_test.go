package tax_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/tax"
)

var now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func bracket(vt models.VehicleType, min, max, rate string) models.RateBracket {
	b := models.RateBracket{VehicleType: vt, Rate: dec(rate)}
	if min != "" {
		b.Min = decp(min)
	}
	if max != "" {
		b.Max = decp(max)
	}
	return b
}

func period() models.FiscalPeriod {
	return models.FiscalPeriod{
		Year:            2024,
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		DueDate:         time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		TrafficLightFee: dec("87000"),
		Brackets: []models.RateBracket{
			bracket(models.VehicleTypeParticular, "", "60000000", "1.5"),
			bracket(models.VehicleTypeParticular, "60000001", "", "3.5"),
			bracket(models.VehicleTypePublic, "", "", "2.5"),
			bracket(models.VehicleTypeMotorcycle, "", "", "1.5"),
		},
	}
}

func calculator() tax.Calculator {
	return tax.Calculator{Policy: tax.DiscountPolicy{Clock: clock.NewFixed(now)}}
}

func vehicle(vt models.VehicleType, value string) models.Vehicle {
	return models.Vehicle{
		Plate:            "ABC123",
		Type:             vt,
		CommercialValue:  dec(value),
		RegistrationDate: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func compute(t *testing.T, v models.Vehicle) tax.Breakdown {
	t.Helper()
	p := period()
	b, err := calculator().Compute(v, p, p.Brackets)
	require.NoError(t, err)
	return b
}

func TestCompute_ParticularVehicle(t *testing.T) {
	b := compute(t, vehicle(models.VehicleTypeParticular, "50000000"))

	assert.Equal(t, "750000.00", b.BaseTax.StringFixed(2))
	assert.Equal(t, "87000", b.TrafficLightFee.String())
	assert.Equal(t, "837000.00", b.TotalAmount.StringFixed(2))
	assert.Nil(t, b.Discount)
}

func TestCompute_MotorcyclePaysHalfTrafficLightFee(t *testing.T) {
	b := compute(t, vehicle(models.VehicleTypeMotorcycle, "8000000"))

	assert.True(t, b.TrafficLightFee.Equal(dec("43500")), b.TrafficLightFee.String())
	assert.True(t, b.TotalAmount.Equal(dec("163500")), b.TotalAmount.String())
}

func TestCompute_ExemptVehicleSkipsTrafficLightFee(t *testing.T) {
	v := vehicle(models.VehicleTypeMotorcycle, "8000000")
	v.TrafficLightFeeExempt = true

	b := compute(t, v)

	assert.True(t, b.TrafficLightFee.IsZero())
	assert.True(t, b.TotalAmount.Equal(b.BaseTax))
}

func TestCompute_ElectricTaxiIsCappedThenDiscounted(t *testing.T) {
	v := vehicle(models.VehicleTypePublic, "80000000")
	v.IsElectric = true

	b := compute(t, v)

	assert.Equal(t, "240000.00", b.BaseTax.StringFixed(2))
	assert.Equal(t, "2000000.00", b.PreDiscountTax.StringFixed(2))
	require.NotNil(t, b.Discount)
	assert.Equal(t, models.DiscountElectricPublic, b.Discount.Type)
	assert.Equal(t, 70, b.Discount.Percentage)
	assert.Equal(t, "1760000.00", b.Discount.AmountSaved.StringFixed(2))
}

func TestCompute_ElectricPrivateNeverExceedsDiscountedCap(t *testing.T) {
	v := vehicle(models.VehicleTypeParticular, "100000000")
	v.IsElectric = true

	b := compute(t, v)

	limit := v.CommercialValue.Mul(dec("0.01")).Mul(dec("0.40"))
	assert.True(t, b.BaseTax.LessThanOrEqual(limit), b.BaseTax.String())
	assert.Equal(t, "400000.00", b.BaseTax.StringFixed(2))
}

func TestCompute_ExpiredDiscountStillAppliesMultiplier(t *testing.T) {
	expired := now.AddDate(0, 0, -1)

	ev := vehicle(models.VehicleTypeParticular, "100000000")
	ev.IsElectric = true
	ev.DiscountExpiry = &expired
	b := compute(t, ev)
	assert.Equal(t, "400000.00", b.BaseTax.StringFixed(2))
	require.NotNil(t, b.Discount)
	assert.Equal(t, 60, b.Discount.Percentage)
	assert.True(t, b.Discount.Expired)
	assert.Equal(t, b.PreDiscountTax.Sub(b.BaseTax).StringFixed(2), b.Discount.AmountSaved.StringFixed(2))

	hybrid := vehicle(models.VehicleTypeParticular, "50000000")
	hybrid.IsHybrid = true
	hybrid.DiscountExpiry = &expired
	b = compute(t, hybrid)
	assert.Equal(t, "450000.00", b.BaseTax.StringFixed(2))
	require.NotNil(t, b.Discount)
	assert.True(t, b.Discount.Expired)
}

func TestCompute_CurrentDiscountIsNotExpired(t *testing.T) {
	v := vehicle(models.VehicleTypeParticular, "50000000")
	v.IsHybrid = true
	future := now.AddDate(1, 0, 0)
	v.DiscountExpiry = &future

	b := compute(t, v)
	require.NotNil(t, b.Discount)
	assert.False(t, b.Discount.Expired)
	assert.Equal(t, 40, b.Discount.Percentage)
}

func TestCompute_HybridIsFlatSixtyPercentInEveryBracket(t *testing.T) {
	for _, value := range []string{"50000000", "90000000"} {
		plain := compute(t, vehicle(models.VehicleTypeParticular, value))

		v := vehicle(models.VehicleTypeParticular, value)
		v.IsHybrid = true
		hybrid := compute(t, v)

		assert.Equal(t, plain.BaseTax.Mul(dec("0.60")).StringFixed(2), hybrid.BaseTax.StringFixed(2), value)
		assert.Equal(t, models.DiscountHybrid, hybrid.Discount.Type)
	}
}

func TestCompute_NewVehicleRegisteredInJulyOwesHalf(t *testing.T) {
	v := vehicle(models.VehicleTypeParticular, "50000000")
	v.IsNew = true
	v.RegistrationDate = time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC)

	b := compute(t, v)

	assert.Equal(t, "375000.00", b.BaseTax.StringFixed(2))
	assert.Equal(t, "462000.00", b.TotalAmount.StringFixed(2))
}

func TestCompute_NewVehicleRegisteredInJanuaryOwesFullYear(t *testing.T) {
	v := vehicle(models.VehicleTypeParticular, "50000000")
	v.IsNew = true
	v.RegistrationDate = time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "750000.00", compute(t, v).BaseTax.StringFixed(2))
}

func TestCompute_RoundsHalfUp(t *testing.T) {
	p := period()
	p.Brackets = []models.RateBracket{bracket(models.VehicleTypeParticular, "", "", "0.5")}

	b, err := calculator().Compute(vehicle(models.VehicleTypeParticular, "101"), p, p.Brackets)

	require.NoError(t, err)
	// 101 * 0.005 = 0.505
	assert.Equal(t, "0.51", b.BaseTax.StringFixed(2))
}

func TestCompute_NoApplicableRate(t *testing.T) {
	p := period()

	_, err := calculator().Compute(vehicle(models.VehicleTypeParticular, "1000"), p, nil)
	assert.ErrorIs(t, err, apperr.ErrNoApplicableRate)

	only := []models.RateBracket{bracket(models.VehicleTypeParticular, "5000", "9000", "1")}
	_, err = calculator().Compute(vehicle(models.VehicleTypeParticular, "1000"), p, only)
	assert.ErrorIs(t, err, apperr.ErrNoApplicableRate)

	_, err = calculator().Compute(vehicle(models.VehicleTypeMotorcycle, "1000"), p, only)
	assert.ErrorIs(t, err, apperr.ErrNoApplicableRate)
}

func TestCompute_BaseTaxStaysWithinCommercialValue(t *testing.T) {
	values := []string{"0", "1", "999999", "50000000", "60000000", "60000001", "250000000"}
	for _, value := range values {
		for _, mod := range []func(*models.Vehicle){
			func(v *models.Vehicle) {},
			func(v *models.Vehicle) { v.IsElectric = true },
			func(v *models.Vehicle) { v.IsHybrid = true },
			func(v *models.Vehicle) { v.IsNew = true; v.RegistrationDate = now },
		} {
			v := vehicle(models.VehicleTypeParticular, value)
			mod(&v)
			b := compute(t, v)
			assert.False(t, b.BaseTax.IsNegative(), value)
			assert.True(t, b.BaseTax.LessThanOrEqual(v.CommercialValue), value)
		}
	}
}
