package vehicles

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/tax"
)

// SmallMotorcycleCC is the displacement at or below which a motorcycle does not
// pay the traffic-light fee
const SmallMotorcycleCC = 125

// RegistrationStore persists new vehicles
type RegistrationStore interface {
	// InsertVehicle returns apperr.ErrPlateTaken when the plate exists
	InsertVehicle(ctx context.Context, v *models.Vehicle) error
}

// Registrar validates and stores new vehicles
type Registrar struct {
	Store RegistrationStore
	Clock clock.Clock
}

// Validate checks the invariants every stored vehicle must hold
func Validate(v models.Vehicle, currentYear int) error {
	if _, err := models.ParseVehicleType(string(v.Type)); err != nil {
		return err
	}
	if v.IsElectric && v.IsHybrid {
		return apperr.ErrElectricAndHybrid
	}
	if v.Year > currentYear {
		return apperr.ErrFutureModelYear
	}
	if v.CommercialValue.IsNegative() {
		return apperr.ErrNegativeValue
	}
	if v.TaxStatus != "" {
		if _, err := models.ParseTaxStatus(string(v.TaxStatus)); err != nil {
			return err
		}
	}
	return nil
}

// Prepare normalises the plate, validates v and derives the discount and
// fee flags a stored vehicle carries. The payment state is reset.
func Prepare(v models.Vehicle, now time.Time) (models.Vehicle, error) {
	plate, err := NormalizePlate(v.Plate)
	if err != nil {
		return v, err
	}
	v.Plate = plate
	if err := Validate(v, now.Year()); err != nil {
		return v, err
	}

	if v.RegistrationDate.IsZero() {
		v.RegistrationDate = now
	}
	if v.TaxStatus == "" {
		v.TaxStatus = models.TaxStatusPending
	}
	v.DiscountType = tax.DiscountTypeFor(v)
	if v.DiscountType != models.DiscountNone && v.DiscountExpiry == nil {
		expiry := tax.DiscountExpiry(v.RegistrationDate)
		v.DiscountExpiry = &expiry
	}
	if v.Type == models.VehicleTypeMotorcycle && v.EngineDisplacement > 0 && v.EngineDisplacement <= SmallMotorcycleCC {
		v.TrafficLightFeeExempt = true
	}
	v.HasPendingPayments = false
	v.LastPaymentDate = nil
	v.CreatedAt = now
	v.UpdatedAt = now
	return v, nil
}

// Register prepares v and stores it under a new id
func (r Registrar) Register(ctx context.Context, v models.Vehicle) (*models.Vehicle, error) {
	v, err := Prepare(v, r.Clock.Now())
	if err != nil {
		return nil, err
	}
	v.ID = primitive.NewObjectID()

	if err := r.Store.InsertVehicle(ctx, &v); err != nil {
		return nil, apperr.Persistence(err)
	}
	zap.S().Infow("vehicle registered",
		"plate", v.Plate,
		"vehicleId", v.ID.Hex(),
		"ownerId", v.OwnerID.Hex())
	return &v, nil
}
