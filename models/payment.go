package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProcessStatus is the single persisted state of a payment attempt
type ProcessStatus string

// Process statuses
const (
	ProcessInitiated  ProcessStatus = "initiated"
	ProcessPendingPSE ProcessStatus = "pending_pse"
	ProcessProcessing ProcessStatus = "processing"
	ProcessCompleted  ProcessStatus = "completed"
	ProcessFailed     ProcessStatus = "failed"
	ProcessCancelled  ProcessStatus = "cancelled"
	ProcessExpired    ProcessStatus = "expired"
)

// Outcome is the coarse classification derived from a ProcessStatus
type Outcome string

// Outcomes
const (
	OutcomePending   Outcome = "pending"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Outcome maps the workflow state onto pending/completed/failed
func (s ProcessStatus) Outcome() Outcome {
	switch s {
	case ProcessCompleted:
		return OutcomeCompleted
	case ProcessFailed, ProcessCancelled, ProcessExpired:
		return OutcomeFailed
	}
	return OutcomePending
}

// Terminal reports whether no further transition is possible
func (s ProcessStatus) Terminal() bool {
	return s.Outcome() != OutcomePending
}

// PaymentMethodPSE is the only supported payment rail
const PaymentMethodPSE = "PSE"

// PaymentAttempt holds the structure for the payments collection in mongo
type PaymentAttempt struct {
	ID             primitive.ObjectID  `json:"_id" bson:"_id"`
	VehicleID      primitive.ObjectID  `json:"vehicleId" bson:"vehicleId"`
	FiscalPeriodID primitive.ObjectID  `json:"fiscalPeriodId" bson:"fiscalPeriodId"`
	TaxYear        int                 `json:"taxYear" bson:"taxYear"`
	Amount         decimal.Decimal     `json:"amount" bson:"amount"`
	ProcessStatus  ProcessStatus       `json:"processStatus" bson:"processStatus"`
	PaymentMethod  string              `json:"paymentMethod" bson:"paymentMethod"`
	BankCode       string              `json:"bankCode" bson:"bankCode"`
	ContactEmail   string              `json:"contactEmail" bson:"contactEmail"`
	Reference      string              `json:"reference" bson:"reference"` // unique
	InvoiceNumber  string              `json:"invoiceNumber" bson:"invoiceNumber"`
	PaymentDate    time.Time           `json:"paymentDate" bson:"paymentDate"`
	DueDate        time.Time           `json:"dueDate" bson:"dueDate"`
	PaidAt         *time.Time          `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	CorrectionOf   *primitive.ObjectID `json:"correctionOf,omitempty" bson:"correctionOf,omitempty"`
	ProcessMessage string              `json:"processMessage,omitempty" bson:"processMessage,omitempty"`
	// OpenKey is "<vehicle>:<period>" while the attempt is pending or completed.
	// A unique partial index on it keeps one open attempt per vehicle and period.
	OpenKey   string    `json:"-" bson:"openKey,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Status is the coarse outcome of the attempt
func (p PaymentAttempt) Status() Outcome {
	return p.ProcessStatus.Outcome()
}

// OpenKeyFor builds the uniqueness key for a vehicle and fiscal period
func OpenKeyFor(vehicleID, periodID primitive.ObjectID) string {
	return vehicleID.Hex() + ":" + periodID.Hex()
}

// PaymentStatusLogEntry holds the structure for the paymentStatusLogs
// collection. Entries are only ever inserted.
type PaymentStatusLogEntry struct {
	ID           primitive.ObjectID  `json:"_id" bson:"_id"`
	PaymentID    primitive.ObjectID  `json:"paymentId" bson:"paymentId"`
	Reference    string              `json:"reference" bson:"reference"`
	Status       ProcessStatus       `json:"status" bson:"status"`
	Timestamp    time.Time           `json:"timestamp" bson:"timestamp"`
	Details      string              `json:"details" bson:"details"`
	ChangeReason string              `json:"changeReason,omitempty" bson:"changeReason,omitempty"`
	ActorID      *primitive.ObjectID `json:"actorId,omitempty" bson:"actorId,omitempty"`
}

// PaymentEvent is emitted after a payment transition commits
type PaymentEvent struct {
	Type       ProcessStatus  `json:"type"`
	Outcome    Outcome        `json:"outcome"`
	Attempt    PaymentAttempt `json:"payment"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// StatusCount is the number of attempts a vehicle has in one state
type StatusCount struct {
	VehicleID primitive.ObjectID `json:"vehicleId" bson:"vehicleId"`
	Status    ProcessStatus      `json:"status" bson:"status"`
	Count     int                `json:"count" bson:"count"`
}

// VehiclePaymentSummary is one row of the admin dashboard
type VehiclePaymentSummary struct {
	VehicleID          primitive.ObjectID    `json:"vehicleId"`
	Plate              string                `json:"plate"`
	TaxStatus          TaxStatus             `json:"taxStatus"`
	HasPendingPayments bool                  `json:"hasPendingPayments"`
	Counts             map[ProcessStatus]int `json:"counts"`
	Total              int                   `json:"total"`
}

// Dashboard aggregates payment attempts per vehicle and per state
type Dashboard struct {
	Totals      map[ProcessStatus]int   `json:"totals"`
	Vehicles    []VehiclePaymentSummary `json:"vehicles"`
	GeneratedAt time.Time               `json:"generatedAt"`
}
