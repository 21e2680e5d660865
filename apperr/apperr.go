// Package apperr holds the error taxonomy shared by the tax engine, the payment
// state machine and the HTTP layer. Every failure carries a Kind, used to pick a
// status code, and a Reason that is shown to the caller verbatim.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error
type Kind int

// Error kinds
const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidInput
	KindStateConflict
	KindPersistence
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindStateConflict:
		return "state_conflict"
	case KindPersistence:
		return "persistence_failure"
	case KindUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// Error is a classified failure with a caller-visible reason
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and reason, so wrapped copies of
// a sentinel still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Reason == e.Reason
}

// New returns a sentinel-style error
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches cause to a copy of sentinel
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, Reason: sentinel.Reason, Err: cause}
}

// Persistence wraps a storage failure. Errors that are already classified pass
// through untouched.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(ErrPersistence, err)
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// ReasonOf returns the caller-visible reason for err
func ReasonOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return "internal error"
}

// HTTPStatus maps err to a response code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindStateConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Not found
var (
	ErrVehicleNotFound      = New(KindNotFound, "vehicle not found")
	ErrOwnerNotFound        = New(KindNotFound, "owner not found")
	ErrNoActiveFiscalPeriod = New(KindNotFound, "no active fiscal period")
	ErrFiscalPeriodNotFound = New(KindNotFound, "fiscal period not found")
	ErrNoApplicableRate     = New(KindNotFound, "no applicable rate for vehicle value")
	ErrTransactionNotFound  = New(KindNotFound, "transaction not found")
)

// Invalid input
var (
	ErrInvalidDocument        = New(KindInvalidInput, "invalid document number")
	ErrUnknownDocumentType    = New(KindInvalidInput, "unknown document type")
	ErrInvalidPlate           = New(KindInvalidInput, "invalid plate")
	ErrNegativeValue          = New(KindInvalidInput, "commercial value cannot be negative")
	ErrFutureModelYear        = New(KindInvalidInput, "model year cannot be in the future")
	ErrElectricAndHybrid      = New(KindInvalidInput, "vehicle cannot be both electric and hybrid")
	ErrInvalidVehicleType     = New(KindInvalidInput, "invalid vehicle type")
	ErrInvalidAmount          = New(KindInvalidInput, "amount must be greater than zero")
	ErrInvalidBank            = New(KindInvalidInput, "unknown bank code")
	ErrInvalidEmail           = New(KindInvalidInput, "invalid email")
	ErrInvalidTaxStatus       = New(KindInvalidInput, "invalid tax status")
	ErrInvalidOutcome         = New(KindInvalidInput, "invalid payment outcome")
	ErrOverlappingBrackets    = New(KindInvalidInput, "rate brackets overlap")
	ErrGappedBrackets         = New(KindInvalidInput, "rate brackets leave a gap")
	ErrInvertedBracket        = New(KindInvalidInput, "rate bracket minimum exceeds maximum")
	ErrUnboundedInnerBracket  = New(KindInvalidInput, "only the outer rate brackets may be open-ended")
	ErrNegativeRate           = New(KindInvalidInput, "rate bracket percentage cannot be negative")
	ErrCorrectionChainTooLong = New(KindInvalidInput, "correction chain exceeds maximum length")
	ErrCorrectionCycle        = New(KindInvalidInput, "correction chain contains a cycle")
	ErrInvalidCorrection      = New(KindInvalidInput, "corrected payment must be a finished attempt of the same vehicle")
)

// State conflicts
var (
	ErrInvalidTransition = New(KindStateConflict, "payment status transition not allowed")
	ErrPaymentInProgress = New(KindStateConflict, "another payment attempt is being registered, retry")
	ErrPlateTaken        = New(KindStateConflict, "plate already registered")
	ErrDocumentTaken     = New(KindStateConflict, "document already registered to another owner")
)

// Other
var (
	ErrPersistence        = New(KindPersistence, "persistence failure")
	ErrInvalidCredentials = New(KindUnauthorized, "invalid credentials")
	ErrInactiveUser       = New(KindUnauthorized, "inactive user")
)
