package payments

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

// ErrDuplicateAttempt is returned by InsertAttempt when the storage constraint
// on open attempts (or on the reference) rejects the row
var ErrDuplicateAttempt = errors.New("payments: duplicate payment attempt")

// VehiclePaymentState is the part of a vehicle the state machine writes
type VehiclePaymentState struct {
	HasPendingPayments bool
	// PaidAt marks the vehicle up to date and stamps its last payment date
	PaidAt *time.Time
}

// Store is the transactional persistence the state machine runs on. Every
// method takes the context handed to the WithTransaction callback when called
// inside one.
type Store interface {
	// WithTransaction runs fn as one atomic unit, rolling back every write
	// when fn returns an error
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ActivePeriod returns apperr.ErrNoActiveFiscalPeriod when none is active
	ActivePeriod(ctx context.Context) (*models.FiscalPeriod, error)

	// FindAttempt returns nil, nil when no attempt matches
	FindAttempt(ctx context.Context, vehicleID, periodID primitive.ObjectID, status models.ProcessStatus) (*models.PaymentAttempt, error)
	// FindAttemptByReference returns apperr.ErrTransactionNotFound when missing
	FindAttemptByReference(ctx context.Context, reference string) (*models.PaymentAttempt, error)
	// FindAttemptByID returns apperr.ErrTransactionNotFound when missing
	FindAttemptByID(ctx context.Context, id primitive.ObjectID) (*models.PaymentAttempt, error)
	// InsertAttempt returns ErrDuplicateAttempt on a uniqueness violation
	InsertAttempt(ctx context.Context, a *models.PaymentAttempt) error
	UpdateAttempt(ctx context.Context, a *models.PaymentAttempt) error
	// AttemptsForVehicle is ordered by payment date, newest first
	AttemptsForVehicle(ctx context.Context, vehicleID primitive.ObjectID) ([]models.PaymentAttempt, error)
	// StalePending lists PENDING_PSE attempts created before cutoff
	StalePending(ctx context.Context, cutoff time.Time) ([]models.PaymentAttempt, error)

	AppendStatusLog(ctx context.Context, e models.PaymentStatusLogEntry) error
	// StatusLog is ordered by timestamp, oldest first
	StatusLog(ctx context.Context, paymentID primitive.ObjectID) ([]models.PaymentStatusLogEntry, error)

	SetVehiclePaymentState(ctx context.Context, vehicleID primitive.ObjectID, s VehiclePaymentState) error
}

// Locker serialises work on one key across requests and instances
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Notifier receives committed transitions. Implementations handle their own
// failures; nothing they do can undo a transition.
type Notifier interface {
	PaymentChanged(ctx context.Context, ev models.PaymentEvent)
}
