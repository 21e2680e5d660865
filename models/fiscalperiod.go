package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FiscalPeriod holds the structure for the fiscalPeriods collection in mongo.
// Its rate table is embedded so a period and its brackets are read and
// validated as one document.
type FiscalPeriod struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id"`
	Year            int                `json:"year" bson:"year"` // unique
	StartDate       time.Time          `json:"startDate" bson:"startDate"`
	EndDate         time.Time          `json:"endDate" bson:"endDate"`
	DueDate         time.Time          `json:"dueDate" bson:"dueDate"`
	ExtensionDate   *time.Time         `json:"extensionDate,omitempty" bson:"extensionDate,omitempty"`
	TrafficLightFee decimal.Decimal    `json:"trafficLightFee" bson:"trafficLightFee"`
	MinPenaltyUVT   int                `json:"minPenaltyUvt" bson:"minPenaltyUvt"`
	UVTValue        decimal.Decimal    `json:"uvtValue" bson:"uvtValue"`
	Active          bool               `json:"active" bson:"active"` // mirrors the settings pointer
	Observations    string             `json:"observations,omitempty" bson:"observations,omitempty"`
	Brackets        []RateBracket      `json:"brackets" bson:"brackets"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PaymentDeadline is the last day a payment is on time, honouring an extension
func (p FiscalPeriod) PaymentDeadline() time.Time {
	if p.ExtensionDate != nil && p.ExtensionDate.After(p.DueDate) {
		return *p.ExtensionDate
	}
	return p.DueDate
}

// RateBracket is one row of a period's rate table. A nil Min or Max is
// open-ended.
type RateBracket struct {
	VehicleType    VehicleType      `json:"vehicleType" bson:"vehicleType"`
	Min            *decimal.Decimal `json:"minValue,omitempty" bson:"minValue,omitempty"`
	Max            *decimal.Decimal `json:"maxValue,omitempty" bson:"maxValue,omitempty"`
	Rate           decimal.Decimal  `json:"rate" bson:"rate"` // whole percent, 1.5 means 1.5%
	AdditionalRate decimal.Decimal  `json:"additionalRate" bson:"additionalRate"`
}

// Contains reports whether value falls inside the inclusive range
func (b RateBracket) Contains(value decimal.Decimal) bool {
	if b.Min != nil && value.LessThan(*b.Min) {
		return false
	}
	if b.Max != nil && value.GreaterThan(*b.Max) {
		return false
	}
	return true
}

// CurrentPeriodSettingID is the _id of the settings document pointing at the
// active fiscal period
const CurrentPeriodSettingID = "current_fiscal_period"

// CurrentPeriodSetting holds the structure for the single active-period pointer
// in the settings collection
type CurrentPeriodSetting struct {
	ID        string             `json:"_id" bson:"_id"`
	PeriodID  primitive.ObjectID `json:"periodId" bson:"periodId"`
	Year      int                `json:"year" bson:"year"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}
