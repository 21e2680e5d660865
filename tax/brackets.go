package tax

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// maxGap is the widest hole allowed between consecutive brackets: one currency
// unit, so [0, 1000] followed by [1001, ...] is contiguous.
var maxGap = decimal.NewFromInt(1)

// ValidateBrackets checks that each vehicle type's brackets partition the value
// domain. Only the lowest bracket may have an open minimum and only the highest
// an open maximum.
func ValidateBrackets(brackets []models.RateBracket) error {
	byType := map[models.VehicleType][]models.RateBracket{}
	var order []models.VehicleType
	for _, b := range brackets {
		if _, err := models.ParseVehicleType(string(b.VehicleType)); err != nil {
			return err
		}
		if b.Rate.IsNegative() || b.AdditionalRate.IsNegative() {
			return apperr.ErrNegativeRate
		}
		if b.Min != nil && b.Max != nil && b.Min.GreaterThan(*b.Max) {
			return apperr.ErrInvertedBracket
		}
		if _, ok := byType[b.VehicleType]; !ok {
			order = append(order, b.VehicleType)
		}
		byType[b.VehicleType] = append(byType[b.VehicleType], b)
	}

	for _, vt := range order {
		if err := validateSeries(byType[vt]); err != nil {
			return fmt.Errorf("%s brackets: %w", vt, err)
		}
	}
	return nil
}

func validateSeries(series []models.RateBracket) error {
	sorted := make([]models.RateBracket, len(series))
	copy(sorted, series)
	// open minimums sort first
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Min, sorted[j].Min
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.LessThan(*b)
	})

	for i, b := range sorted {
		if b.Min == nil && i != 0 {
			return apperr.ErrOverlappingBrackets
		}
		if b.Max == nil && i != len(sorted)-1 {
			return apperr.ErrUnboundedInnerBracket
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if !b.Min.GreaterThan(*prev.Max) {
			return apperr.ErrOverlappingBrackets
		}
		if b.Min.Sub(*prev.Max).GreaterThan(maxGap) {
			return apperr.ErrGappedBrackets
		}
	}
	return nil
}
