package payments

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// MaxCorrectionChain bounds how many predecessors CorrectionChain will follow
const MaxCorrectionChain = 10

// DefaultRedirectURL is the simulated bank checkout
const DefaultRedirectURL = "https://pse.example.com/checkout?reference=%s"

// Service is the payment state machine
type Service struct {
	Store     Store
	Clock     clock.Clock
	Locker    Locker
	Notifiers []Notifier
	// RedirectURL is a format string receiving the reference
	RedirectURL string
}

// NewService returns a Service on the real clock
func NewService(store Store, locker Locker, notifiers ...Notifier) *Service {
	return &Service{
		Store:       store,
		Clock:       clock.Real{},
		Locker:      locker,
		Notifiers:   notifiers,
		RedirectURL: DefaultRedirectURL,
	}
}

// InitiateRequest starts a PSE payment for a vehicle in the active period
type InitiateRequest struct {
	VehicleID    primitive.ObjectID
	Amount       decimal.Decimal
	BankCode     string
	ContactEmail string
	// CorrectionOf is the reference of a finished attempt this one replaces
	CorrectionOf string
}

// Result is the state of an attempt after an operation. Replayed is set when
// the operation found the work already done and changed nothing.
type Result struct {
	Attempt     models.PaymentAttempt
	Replayed    bool
	Message     string
	RedirectURL string
}

// StatusResult is a read of an attempt and its audit trail
type StatusResult struct {
	Attempt models.PaymentAttempt
	Log     []models.PaymentStatusLogEntry
	Message string
}

// referenceLayout is a timestamp to the millisecond, digits only
const referenceLayout = "20060102150405.000"

// maxReferenceTries bounds the search for a free reference
const maxReferenceTries = 100

// Reference builds the PSE reference for a vehicle at t
func Reference(t time.Time, vehicleID primitive.ObjectID) string {
	ts := strings.Replace(t.UTC().Format(referenceLayout), ".", "", 1)
	return fmt.Sprintf("PSE-%s-%s", ts, vehicleID.Hex())
}

// freeReference returns the first unused reference at or after now, stepping
// one millisecond per taken reference
func (s *Service) freeReference(ctx context.Context, now time.Time, vehicleID primitive.ObjectID) (string, error) {
	for i := 0; i < maxReferenceTries; i++ {
		ref := Reference(now.Add(time.Duration(i)*time.Millisecond), vehicleID)
		_, err := s.Store.FindAttemptByReference(ctx, ref)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return ref, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", apperr.ErrPaymentInProgress
}

// Initiate creates a PENDING_PSE attempt, or returns the completed or open
// attempt that already exists for the vehicle in the active period. The
// request is validated only when a new attempt is needed, so a replay never
// fails on input that was valid when the attempt was made.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*Result, error) {
	period, err := s.Store.ActivePeriod(ctx)
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	release, err := s.lock(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *Result
	err = s.Store.WithTransaction(ctx, func(tx context.Context) error {
		res = nil
		existing, err := s.openAttempt(tx, req.VehicleID, period.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			res = s.replay(existing)
			return nil
		}
		if err := validateInitiate(req); err != nil {
			return err
		}

		now := s.Clock.Now()
		ref, err := s.freeReference(tx, now, req.VehicleID)
		if err != nil {
			return err
		}
		attempt := models.PaymentAttempt{
			ID:             primitive.NewObjectID(),
			VehicleID:      req.VehicleID,
			FiscalPeriodID: period.ID,
			TaxYear:        period.Year,
			Amount:         req.Amount,
			ProcessStatus:  models.ProcessPendingPSE,
			PaymentMethod:  models.PaymentMethodPSE,
			BankCode:       req.BankCode,
			ContactEmail:   req.ContactEmail,
			PaymentDate:    now,
			DueDate:        period.PaymentDeadline(),
			OpenKey:        models.OpenKeyFor(req.VehicleID, period.ID),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		attempt.Reference = ref
		attempt.InvoiceNumber = "INV-" + attempt.Reference
		if req.CorrectionOf != "" {
			prev, err := s.correctedAttempt(tx, req)
			if err != nil {
				return err
			}
			attempt.CorrectionOf = &prev.ID
		}

		if err := s.Store.InsertAttempt(tx, &attempt); err != nil {
			return err
		}
		details := fmt.Sprintf("PSE payment initiated, bank: %s, email: %s", req.BankCode, req.ContactEmail)
		if err := s.Store.AppendStatusLog(tx, logEntry(attempt, now, details, "initiated", nil)); err != nil {
			return err
		}
		if err := s.Store.SetVehiclePaymentState(tx, req.VehicleID, VehiclePaymentState{HasPendingPayments: true}); err != nil {
			return err
		}
		res = &Result{Attempt: attempt, Message: "payment initiated", RedirectURL: s.redirect(attempt.Reference)}
		return nil
	})

	if errors.Is(err, ErrDuplicateAttempt) {
		// a concurrent initiate committed first
		existing, rerr := s.openAttempt(ctx, req.VehicleID, period.ID)
		if rerr != nil {
			return nil, apperr.Persistence(rerr)
		}
		if existing == nil {
			return nil, apperr.ErrPaymentInProgress
		}
		return s.replay(existing), nil
	}
	if err != nil {
		err = apperr.Persistence(err)
		if apperr.KindOf(err) == apperr.KindPersistence {
			zap.S().Errorw("failed to initiate payment",
				"vehicleId", req.VehicleID.Hex(),
				"error", err)
		}
		return nil, err
	}

	if !res.Replayed {
		zap.S().Infow("payment initiated",
			"reference", res.Attempt.Reference,
			"vehicleId", req.VehicleID.Hex(),
			"amount", res.Attempt.Amount.String())
		s.notify(ctx, res.Attempt)
	}
	return res, nil
}

// ParseOutcome reads a bank callback status. An empty status means success.
func ParseOutcome(status string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "", "SUCCESS":
		return true, nil
	case "FAILED", "REJECTED", "DECLINED", "ERROR":
		return false, nil
	}
	return false, apperr.ErrInvalidOutcome
}

// Complete applies a bank callback. An attempt that is already completed or
// failed is returned unchanged, so repeated callbacks are harmless.
func (s *Service) Complete(ctx context.Context, reference string, success bool, bankStatus string) (*Result, error) {
	to := models.ProcessCompleted
	details := "payment completed successfully"
	if !success {
		to = models.ProcessFailed
		details = fmt.Sprintf("payment failed: %s", bankStatus)
	}
	return s.transition(ctx, reference, transition{
		to:      to,
		details: details,
		reason:  "bank callback",
		replay:  func(a *models.PaymentAttempt) bool { return a.ProcessStatus.Terminal() },
	})
}

// Cancel is the administrative exit for an attempt that has not finished
func (s *Service) Cancel(ctx context.Context, reference string, actorID *primitive.ObjectID, reason string) (*Result, error) {
	if reason == "" {
		reason = "cancelled by administrator"
	}
	return s.transition(ctx, reference, transition{
		to:      models.ProcessCancelled,
		details: reason,
		reason:  "administrative cancellation",
		actor:   actorID,
		replay:  func(a *models.PaymentAttempt) bool { return a.ProcessStatus == models.ProcessCancelled },
	})
}

// ExpireStale moves PENDING_PSE attempts older than maxAge to EXPIRED and
// returns how many were expired
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.Clock.Now().Add(-maxAge)
	stale, err := s.Store.StalePending(ctx, cutoff)
	if err != nil {
		return 0, apperr.Persistence(err)
	}

	expired := 0
	var errs []error
	for _, a := range stale {
		res, err := s.transition(ctx, a.Reference, transition{
			to:      models.ProcessExpired,
			details: fmt.Sprintf("no bank confirmation since %s", a.PaymentDate.Format(time.RFC3339)),
			reason:  "expiry sweep",
			replay:  func(a *models.PaymentAttempt) bool { return a.ProcessStatus != models.ProcessPendingPSE },
		})
		if err != nil {
			zap.S().Errorw("failed to expire payment",
				"reference", a.Reference,
				"error", err)
			errs = append(errs, err)
			continue
		}
		if !res.Replayed {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

// Status reads an attempt and its status log
func (s *Service) Status(ctx context.Context, reference string) (*StatusResult, error) {
	a, err := s.Store.FindAttemptByReference(ctx, reference)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	log, err := s.Store.StatusLog(ctx, a.ID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return &StatusResult{Attempt: *a, Log: log, Message: statusMessage(a.ProcessStatus)}, nil
}

// History lists every attempt for a vehicle, newest first
func (s *Service) History(ctx context.Context, vehicleID primitive.ObjectID) ([]models.PaymentAttempt, error) {
	attempts, err := s.Store.AttemptsForVehicle(ctx, vehicleID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return attempts, nil
}

// Pending lists a vehicle's unfinished attempts by due date
func (s *Service) Pending(ctx context.Context, vehicleID primitive.ObjectID) ([]models.PaymentAttempt, error) {
	all, err := s.History(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	var pending []models.PaymentAttempt
	for _, a := range all {
		if a.Status() == models.OutcomePending {
			pending = append(pending, a)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].DueDate.Before(pending[j].DueDate)
	})
	return pending, nil
}

// LastCompleted returns the newest completed attempt, or nil
func LastCompleted(history []models.PaymentAttempt) *models.PaymentAttempt {
	for i := range history {
		if history[i].ProcessStatus == models.ProcessCompleted {
			return &history[i]
		}
	}
	return nil
}

// CorrectionChain walks from reference back through the attempts it corrects,
// newest first
func (s *Service) CorrectionChain(ctx context.Context, reference string) ([]models.PaymentAttempt, error) {
	a, err := s.Store.FindAttemptByReference(ctx, reference)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	chain := []models.PaymentAttempt{*a}
	seen := map[primitive.ObjectID]bool{a.ID: true}
	for a.CorrectionOf != nil {
		if len(chain) > MaxCorrectionChain {
			return nil, apperr.ErrCorrectionChainTooLong
		}
		prev, err := s.Store.FindAttemptByID(ctx, *a.CorrectionOf)
		if err != nil {
			return nil, apperr.Persistence(err)
		}
		if seen[prev.ID] {
			return nil, apperr.ErrCorrectionCycle
		}
		seen[prev.ID] = true
		chain = append(chain, *prev)
		a = prev
	}
	return chain, nil
}

type transition struct {
	to      models.ProcessStatus
	details string
	reason  string
	actor   *primitive.ObjectID
	// replay reports whether the attempt already reflects this transition
	replay func(a *models.PaymentAttempt) bool
}

func (s *Service) transition(ctx context.Context, reference string, t transition) (*Result, error) {
	found, err := s.Store.FindAttemptByReference(ctx, reference)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	release, err := s.lock(ctx, found.VehicleID)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *Result
	var from models.ProcessStatus
	err = s.Store.WithTransaction(ctx, func(tx context.Context) error {
		res = nil
		a, err := s.Store.FindAttemptByReference(tx, reference)
		if err != nil {
			return err
		}
		if t.replay(a) {
			res = s.replay(a)
			return nil
		}
		from = a.ProcessStatus
		if err := ValidateTransition(a.ProcessStatus, t.to); err != nil {
			return err
		}

		now := s.Clock.Now()
		a.ProcessStatus = t.to
		a.ProcessMessage = t.details
		a.UpdatedAt = now
		state := VehiclePaymentState{}
		switch {
		case t.to == models.ProcessCompleted:
			a.PaidAt = &now
			state.PaidAt = &now
		case t.to.Terminal():
			// frees the vehicle and period for a new attempt
			a.OpenKey = ""
		default:
			state.HasPendingPayments = true
		}

		if err := s.Store.UpdateAttempt(tx, a); err != nil {
			return err
		}
		if err := s.Store.AppendStatusLog(tx, logEntry(*a, now, t.details, t.reason, t.actor)); err != nil {
			return err
		}
		if err := s.Store.SetVehiclePaymentState(tx, a.VehicleID, state); err != nil {
			return err
		}
		res = &Result{Attempt: *a, Message: statusMessage(a.ProcessStatus)}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	if !res.Replayed {
		zap.S().Infow("payment status changed",
			"reference", reference,
			"vehicleId", res.Attempt.VehicleID.Hex(),
			"from", from,
			"to", res.Attempt.ProcessStatus)
		s.notify(ctx, res.Attempt)
	}
	return res, nil
}

// openAttempt finds the attempt holding the vehicle and period, completed
// first and then any unfinished one
func (s *Service) openAttempt(ctx context.Context, vehicleID, periodID primitive.ObjectID) (*models.PaymentAttempt, error) {
	for _, st := range []models.ProcessStatus{
		models.ProcessCompleted,
		models.ProcessPendingPSE,
		models.ProcessProcessing,
		models.ProcessInitiated,
	} {
		a, err := s.Store.FindAttempt(ctx, vehicleID, periodID, st)
		if err != nil || a != nil {
			return a, err
		}
	}
	return nil, nil
}

func (s *Service) correctedAttempt(ctx context.Context, req InitiateRequest) (*models.PaymentAttempt, error) {
	prev, err := s.Store.FindAttemptByReference(ctx, req.CorrectionOf)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.ErrInvalidCorrection
		}
		return nil, err
	}
	if prev.VehicleID != req.VehicleID || !prev.ProcessStatus.Terminal() {
		return nil, apperr.ErrInvalidCorrection
	}
	return prev, nil
}

func (s *Service) replay(a *models.PaymentAttempt) *Result {
	res := &Result{Attempt: *a, Replayed: true}
	switch a.Status() {
	case models.OutcomeCompleted:
		res.Message = "payment already completed for this vehicle in the current period"
	case models.OutcomePending:
		res.Message = "a payment is already in progress for this vehicle"
		res.RedirectURL = s.redirect(a.Reference)
	default:
		res.Message = statusMessage(a.ProcessStatus)
	}
	return res
}

func (s *Service) redirect(reference string) string {
	tpl := s.RedirectURL
	if tpl == "" {
		tpl = DefaultRedirectURL
	}
	return fmt.Sprintf(tpl, reference)
}

func (s *Service) lock(ctx context.Context, vehicleID primitive.ObjectID) (func(), error) {
	if s.Locker == nil {
		return func() {}, nil
	}
	release, err := s.Locker.Acquire(ctx, "vehicle:"+vehicleID.Hex())
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrPaymentInProgress, err)
	}
	return release, nil
}

func (s *Service) notify(ctx context.Context, a models.PaymentAttempt) {
	if len(s.Notifiers) == 0 {
		return
	}
	ev := models.PaymentEvent{
		Type:       a.ProcessStatus,
		Outcome:    a.Status(),
		Attempt:    a,
		OccurredAt: s.Clock.Now(),
	}
	ctx = context.WithoutCancel(ctx)
	for _, n := range s.Notifiers {
		n.PaymentChanged(ctx, ev)
	}
}

func validateInitiate(req InitiateRequest) error {
	if !req.Amount.IsPositive() {
		return apperr.ErrInvalidAmount
	}
	if _, ok := LookupBank(req.BankCode); !ok {
		return apperr.ErrInvalidBank
	}
	if _, err := mail.ParseAddress(req.ContactEmail); err != nil {
		return apperr.ErrInvalidEmail
	}
	return nil
}

func logEntry(a models.PaymentAttempt, at time.Time, details, reason string, actor *primitive.ObjectID) models.PaymentStatusLogEntry {
	return models.PaymentStatusLogEntry{
		ID:           primitive.NewObjectID(),
		PaymentID:    a.ID,
		Reference:    a.Reference,
		Status:       a.ProcessStatus,
		Timestamp:    at,
		Details:      details,
		ChangeReason: reason,
		ActorID:      actor,
	}
}

func statusMessage(s models.ProcessStatus) string {
	switch s {
	case models.ProcessCompleted:
		return "payment completed"
	case models.ProcessFailed:
		return "payment failed"
	case models.ProcessCancelled:
		return "payment cancelled"
	case models.ProcessExpired:
		return "payment expired"
	}
	return "payment in progress"
}
