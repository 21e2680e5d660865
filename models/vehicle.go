package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
)

// VehicleType is the tax classification of a vehicle
type VehicleType string

// Vehicle types
const (
	VehicleTypeParticular VehicleType = "particular"
	VehicleTypePublic     VehicleType = "public"
	VehicleTypeMotorcycle VehicleType = "motorcycle"
)

// ParseVehicleType validates a vehicle type string
func ParseVehicleType(s string) (VehicleType, error) {
	switch t := VehicleType(s); t {
	case VehicleTypeParticular, VehicleTypePublic, VehicleTypeMotorcycle:
		return t, nil
	}
	return "", apperr.ErrInvalidVehicleType
}

// TaxStatus is the canonical tax standing of a vehicle
type TaxStatus string

// Tax statuses
const (
	TaxStatusUpToDate TaxStatus = "up_to_date"
	TaxStatusPending  TaxStatus = "pending"
	TaxStatusOverdue  TaxStatus = "overdue"
	TaxStatusExempt   TaxStatus = "exempt"
)

// ParseTaxStatus rejects anything outside the canonical enum, including the
// legacy "PAID" spelling.
func ParseTaxStatus(s string) (TaxStatus, error) {
	switch t := TaxStatus(s); t {
	case TaxStatusUpToDate, TaxStatusPending, TaxStatusOverdue, TaxStatusExempt:
		return t, nil
	}
	return "", apperr.ErrInvalidTaxStatus
}

// DiscountType names the environmental discount a vehicle receives
type DiscountType string

// Discount types
const (
	DiscountNone            DiscountType = ""
	DiscountElectricPublic  DiscountType = "ELECTRIC_PUBLIC"
	DiscountElectricPrivate DiscountType = "ELECTRIC_PRIVATE"
	DiscountHybrid          DiscountType = "HYBRID"
)

// Vehicle holds the structure for the vehicles collection in mongo
type Vehicle struct {
	ID                    primitive.ObjectID `json:"_id" bson:"_id"`
	Plate                 string             `json:"plate" bson:"plate"` // upper case, unique
	Brand                 string             `json:"brand" bson:"brand"`
	Model                 string             `json:"model" bson:"model"`
	Line                  string             `json:"line,omitempty" bson:"line,omitempty"`
	Year                  int                `json:"year" bson:"year"`
	City                  string             `json:"city" bson:"city"`
	Type                  VehicleType        `json:"type" bson:"vehicleType"`
	CommercialValue       decimal.Decimal    `json:"commercialValue" bson:"commercialValue"`
	EngineDisplacement    int                `json:"engineDisplacement,omitempty" bson:"engineDisplacement,omitempty"` // cc
	IsElectric            bool               `json:"isElectric" bson:"isElectric"`
	IsHybrid              bool               `json:"isHybrid" bson:"isHybrid"`
	IsNew                 bool               `json:"isNew" bson:"isNew"`
	DiscountType          DiscountType       `json:"discountType,omitempty" bson:"discountType,omitempty"`
	DiscountExpiry        *time.Time         `json:"discountExpiry,omitempty" bson:"discountExpiry,omitempty"`
	RegistrationDate      time.Time          `json:"registrationDate" bson:"registrationDate"`
	TrafficLightFeeExempt bool               `json:"trafficLightFeeExempt" bson:"trafficLightFeeExempt"`
	OwnerID               primitive.ObjectID `json:"ownerId" bson:"ownerId"`
	TaxStatus             TaxStatus          `json:"taxStatus" bson:"currentTaxStatus"`
	HasPendingPayments    bool               `json:"hasPendingPayments" bson:"hasPendingPayments"`
	LastPaymentDate       *time.Time         `json:"lastPaymentDate,omitempty" bson:"lastPaymentDate,omitempty"`
	CreatedAt             time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time          `json:"updatedAt" bson:"updatedAt"`
}
