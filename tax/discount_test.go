package tax_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/tax"
)

func TestDiscountPolicy_Eligible(t *testing.T) {
	p := tax.DiscountPolicy{Clock: clock.NewFixed(now)}
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		v    models.Vehicle
		want bool
	}{
		{"combustion", models.Vehicle{}, false},
		{"electric without expiry", models.Vehicle{IsElectric: true}, true},
		{"hybrid before expiry", models.Vehicle{IsHybrid: true, DiscountExpiry: &future}, true},
		{"hybrid after expiry", models.Vehicle{IsHybrid: true, DiscountExpiry: &past}, false},
		{"electric expiring now", models.Vehicle{IsElectric: true, DiscountExpiry: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Eligible(tt.v))
		})
	}
}

func TestDiscountPolicy_Multiplier(t *testing.T) {
	p := tax.DiscountPolicy{Clock: clock.NewFixed(now)}

	assert.Equal(t, "0.3", p.Multiplier(models.Vehicle{IsElectric: true, Type: models.VehicleTypePublic}).String())
	assert.Equal(t, "0.4", p.Multiplier(models.Vehicle{IsElectric: true, Type: models.VehicleTypeParticular}).String())
	assert.Equal(t, "0.4", p.Multiplier(models.Vehicle{IsElectric: true, Type: models.VehicleTypeMotorcycle}).String())
	assert.Equal(t, "0.6", p.Multiplier(models.Vehicle{IsHybrid: true, Type: models.VehicleTypePublic}).String())
	assert.Equal(t, "1", p.Multiplier(models.Vehicle{Type: models.VehicleTypeParticular}).String())
}

func TestProrate(t *testing.T) {
	amount := dec("1200")
	for month := time.January; month <= time.December; month++ {
		got := tax.Prorate(amount, time.Date(2024, month, 1, 0, 0, 0, 0, time.UTC))
		want := int64(100 * (13 - int(month)))
		assert.Equal(t, want, got.IntPart(), month.String())
	}
}

func TestDiscountExpiry(t *testing.T) {
	reg := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2029, 3, 1, 0, 0, 0, 0, time.UTC), tax.DiscountExpiry(reg))
}
