// Package testhelpers holds an in-memory store that honours the same
// uniqueness constraints and transactional rollback as the mongo store, for
// tests of the payment flow and the handlers.
package testhelpers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/payments"
)

type txKey struct{}

type memTx struct {
	undo []func()
}

// MemoryStore keeps every collection in maps. Transactions are serialised and
// undone on error; writes made outside a transaction are never undone.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users    map[primitive.ObjectID]models.User
	vehicles map[primitive.ObjectID]models.Vehicle
	periods  map[primitive.ObjectID]models.FiscalPeriod
	attempts map[primitive.ObjectID]models.PaymentAttempt
	docTypes map[string]models.DocumentType
	log      []models.PaymentStatusLogEntry
	current  *primitive.ObjectID

	faults map[string]error
	writes int

	// BeforeInsertAttempt runs inside InsertAttempt before the uniqueness
	// check, outside the data lock. Tests use it to commit a competing attempt.
	BeforeInsertAttempt func()
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    map[primitive.ObjectID]models.User{},
		vehicles: map[primitive.ObjectID]models.Vehicle{},
		periods:  map[primitive.ObjectID]models.FiscalPeriod{},
		attempts: map[primitive.ObjectID]models.PaymentAttempt{},
		docTypes: map[string]models.DocumentType{},
		faults:   map[string]error{},
	}
}

// FailNext makes the next call to method return err
func (s *MemoryStore) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = err
}

// Writes counts committed and uncommitted write calls
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// PutUser stores u as is
func (s *MemoryStore) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutVehicle stores v as is
func (s *MemoryStore) PutVehicle(v models.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = v
}

// PutPeriod stores p, pointing the current-period pointer at it when active
func (s *MemoryStore) PutPeriod(p models.FiscalPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[p.ID] = p
	if p.Active {
		id := p.ID
		s.current = &id
	}
}

// PutAttempt stores a outside any transaction, as a competing writer would
func (s *MemoryStore) PutAttempt(a models.PaymentAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = a
}

// Vehicle returns the stored vehicle
func (s *MemoryStore) Vehicle(id primitive.ObjectID) models.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehicles[id]
}

// Attempts returns every stored attempt
func (s *MemoryStore) Attempts() []models.PaymentAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PaymentAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		out = append(out, a)
	}
	return out
}

// Log returns the whole status log in insertion order
func (s *MemoryStore) Log() []models.PaymentStatusLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PaymentStatusLogEntry(nil), s.log...)
}

// WithTransaction runs fn with other transactions excluded and undoes its
// writes when it fails
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(txKey{}).(*memTx); nested {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// write records undo for the enclosing transaction. Callers hold mu.
func (s *MemoryStore) write(ctx context.Context, undo func()) {
	s.writes++
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

// fault returns and clears an injected failure. Callers hold mu.
func (s *MemoryStore) fault(method string) error {
	err := s.faults[method]
	delete(s.faults, method)
	return err
}

// ActivePeriod follows the current-period pointer
func (s *MemoryStore) ActivePeriod(_ context.Context) (*models.FiscalPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("ActivePeriod"); err != nil {
		return nil, err
	}
	if s.current == nil {
		return nil, apperr.ErrNoActiveFiscalPeriod
	}
	p := s.periods[*s.current]
	return &p, nil
}

// FindPeriodByYear returns apperr.ErrFiscalPeriodNotFound when missing
func (s *MemoryStore) FindPeriodByYear(_ context.Context, year int) (*models.FiscalPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.periods {
		if p.Year == year {
			return &p, nil
		}
	}
	return nil, apperr.ErrFiscalPeriodNotFound
}

// SwitchActivePeriod moves the pointer and the active flags together
func (s *MemoryStore) SwitchActivePeriod(ctx context.Context, p models.FiscalPeriod) error {
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.fault("SwitchActivePeriod"); err != nil {
			return err
		}
		before := map[primitive.ObjectID]models.FiscalPeriod{}
		for id, fp := range s.periods {
			before[id] = fp
			fp.Active = id == p.ID
			s.periods[id] = fp
		}
		prev := s.current
		id := p.ID
		s.current = &id
		s.write(ctx, func() {
			s.periods = before
			s.current = prev
		})
		return nil
	})
}

// FindOwnerByDocument returns apperr.ErrOwnerNotFound when missing
func (s *MemoryStore) FindOwnerByDocument(_ context.Context, docType, number string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.DocumentType == docType && u.DocumentNumber == number {
			return &u, nil
		}
	}
	return nil, apperr.ErrOwnerNotFound
}

// FindUserByEmail matches case-insensitively
func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.ErrOwnerNotFound
}

// FindUserByID returns apperr.ErrOwnerNotFound when missing
func (s *MemoryStore) FindUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrOwnerNotFound
	}
	return &u, nil
}

// RecordLogin stamps a successful login or counts a failed one
func (s *MemoryStore) RecordLogin(ctx context.Context, id primitive.ObjectID, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.ErrOwnerNotFound
	}
	before := u
	if success {
		u.LastLogin = &at
		u.FailedLoginAttempts = 0
	} else {
		u.FailedLoginAttempts++
	}
	u.UpdatedAt = at
	s.users[id] = u
	s.write(ctx, func() { s.users[id] = before })
	return nil
}

// FindVehicle matches plate and owner
func (s *MemoryStore) FindVehicle(_ context.Context, plate string, ownerID primitive.ObjectID) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if v.Plate == plate && v.OwnerID == ownerID {
			return &v, nil
		}
	}
	return nil, apperr.ErrVehicleNotFound
}

// FindVehicleByPlate returns apperr.ErrVehicleNotFound when missing
func (s *MemoryStore) FindVehicleByPlate(_ context.Context, plate string) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if v.Plate == plate {
			return &v, nil
		}
	}
	return nil, apperr.ErrVehicleNotFound
}

// FindVehiclesByID skips ids that do not exist
func (s *MemoryStore) FindVehiclesByID(_ context.Context, ids []primitive.ObjectID) ([]models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Vehicle
	for _, id := range ids {
		if v, ok := s.vehicles[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// InsertVehicle enforces plate uniqueness
func (s *MemoryStore) InsertVehicle(ctx context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("InsertVehicle"); err != nil {
		return err
	}
	for _, existing := range s.vehicles {
		if existing.Plate == v.Plate {
			return apperr.ErrPlateTaken
		}
	}
	id := v.ID
	s.vehicles[id] = *v
	s.write(ctx, func() { delete(s.vehicles, id) })
	return nil
}

// SetVehiclePaymentState applies the state machine's vehicle mutation
func (s *MemoryStore) SetVehiclePaymentState(ctx context.Context, vehicleID primitive.ObjectID, st payments.VehiclePaymentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("SetVehiclePaymentState"); err != nil {
		return err
	}
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return apperr.ErrVehicleNotFound
	}
	before := v
	v.HasPendingPayments = st.HasPendingPayments
	if st.PaidAt != nil {
		paid := *st.PaidAt
		v.LastPaymentDate = &paid
		v.TaxStatus = models.TaxStatusUpToDate
		v.UpdatedAt = paid
	}
	s.vehicles[vehicleID] = v
	s.write(ctx, func() { s.vehicles[vehicleID] = before })
	return nil
}

// FindAttempt returns nil, nil when nothing matches
func (s *MemoryStore) FindAttempt(_ context.Context, vehicleID, periodID primitive.ObjectID, status models.ProcessStatus) (*models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("FindAttempt"); err != nil {
		return nil, err
	}
	for _, a := range s.attempts {
		if a.VehicleID == vehicleID && a.FiscalPeriodID == periodID && a.ProcessStatus == status {
			return &a, nil
		}
	}
	return nil, nil
}

// FindAttemptByReference returns apperr.ErrTransactionNotFound when missing
func (s *MemoryStore) FindAttemptByReference(_ context.Context, reference string) (*models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.Reference == reference {
			return &a, nil
		}
	}
	return nil, apperr.ErrTransactionNotFound
}

// FindAttemptByID returns apperr.ErrTransactionNotFound when missing
func (s *MemoryStore) FindAttemptByID(_ context.Context, id primitive.ObjectID) (*models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, apperr.ErrTransactionNotFound
	}
	return &a, nil
}

// InsertAttempt enforces the open-key and reference unique indexes
func (s *MemoryStore) InsertAttempt(ctx context.Context, a *models.PaymentAttempt) error {
	if s.BeforeInsertAttempt != nil {
		s.BeforeInsertAttempt()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("InsertAttempt"); err != nil {
		return err
	}
	for _, existing := range s.attempts {
		if existing.Reference == a.Reference || (a.OpenKey != "" && existing.OpenKey == a.OpenKey) {
			return payments.ErrDuplicateAttempt
		}
	}
	id := a.ID
	s.attempts[id] = *a
	s.write(ctx, func() { delete(s.attempts, id) })
	return nil
}

// UpdateAttempt replaces the stored attempt
func (s *MemoryStore) UpdateAttempt(ctx context.Context, a *models.PaymentAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpdateAttempt"); err != nil {
		return err
	}
	before, ok := s.attempts[a.ID]
	if !ok {
		return apperr.ErrTransactionNotFound
	}
	id := a.ID
	s.attempts[id] = *a
	s.write(ctx, func() { s.attempts[id] = before })
	return nil
}

// AttemptsForVehicle is newest first
func (s *MemoryStore) AttemptsForVehicle(_ context.Context, vehicleID primitive.ObjectID) ([]models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentAttempt
	for _, a := range s.attempts {
		if a.VehicleID == vehicleID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PaymentDate.After(out[j].PaymentDate)
	})
	return out, nil
}

// StalePending lists PENDING_PSE attempts created before cutoff, oldest first
func (s *MemoryStore) StalePending(_ context.Context, cutoff time.Time) ([]models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentAttempt
	for _, a := range s.attempts {
		if a.ProcessStatus == models.ProcessPendingPSE && a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// StatusCounts groups attempts by vehicle and state
func (s *MemoryStore) StatusCounts(_ context.Context) ([]models.StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct {
		vehicle primitive.ObjectID
		status  models.ProcessStatus
	}
	counts := map[key]int{}
	for _, a := range s.attempts {
		counts[key{a.VehicleID, a.ProcessStatus}]++
	}
	out := make([]models.StatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.StatusCount{VehicleID: k.vehicle, Status: k.status, Count: n})
	}
	return out, nil
}

// AppendStatusLog only ever inserts
func (s *MemoryStore) AppendStatusLog(ctx context.Context, e models.PaymentStatusLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("AppendStatusLog"); err != nil {
		return err
	}
	n := len(s.log)
	s.log = append(s.log, e)
	s.write(ctx, func() { s.log = s.log[:n] })
	return nil
}

// StatusLog is oldest first
func (s *MemoryStore) StatusLog(_ context.Context, paymentID primitive.ObjectID) ([]models.PaymentStatusLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentStatusLogEntry
	for _, e := range s.log {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ErrInjected is a generic storage failure for fault injection
var ErrInjected = errors.New("injected storage failure")

// DocumentTypes returns the stored document types sorted by code
func (s *MemoryStore) DocumentTypes() []models.DocumentType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DocumentType, 0, len(s.docTypes))
	for _, t := range s.docTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// UpsertDocumentType stores t keyed by its code
func (s *MemoryStore) UpsertDocumentType(_ context.Context, t models.DocumentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpsertDocumentType"); err != nil {
		return err
	}
	s.writes++
	s.docTypes[t.Code] = t
	return nil
}

// UpsertUser stores u keyed by email, keeping the existing _id. The document
// is unique across owners.
func (s *MemoryStore) UpsertUser(_ context.Context, u models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpsertUser"); err != nil {
		return nil, err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.ID = primitive.NilObjectID
	for id, existing := range s.users {
		if existing.Email == u.Email {
			u.ID = id
			u.CreatedAt = existing.CreatedAt
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	for id, other := range s.users {
		if id != u.ID && other.DocumentType == u.DocumentType && other.DocumentNumber == u.DocumentNumber {
			return nil, apperr.ErrDocumentTaken
		}
	}
	s.writes++
	s.users[u.ID] = u
	return &u, nil
}

// UpsertPeriod stores p keyed by year, leaving the active flag alone
func (s *MemoryStore) UpsertPeriod(_ context.Context, p models.FiscalPeriod) (*models.FiscalPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpsertPeriod"); err != nil {
		return nil, err
	}
	p.ID = primitive.NilObjectID
	p.Active = false
	for id, existing := range s.periods {
		if existing.Year == p.Year {
			p.ID = id
			p.Active = existing.Active
			p.CreatedAt = existing.CreatedAt
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.writes++
	s.periods[p.ID] = p
	return &p, nil
}

// UpsertVehicle stores v keyed by plate, keeping the existing _id and payment
// state
func (s *MemoryStore) UpsertVehicle(_ context.Context, v models.Vehicle) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpsertVehicle"); err != nil {
		return nil, err
	}
	v.ID = primitive.NilObjectID
	for id, existing := range s.vehicles {
		if existing.Plate == v.Plate {
			v.ID = id
			v.CreatedAt = existing.CreatedAt
			v.HasPendingPayments = existing.HasPendingPayments
			v.LastPaymentDate = existing.LastPaymentDate
		}
	}
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	s.writes++
	s.vehicles[v.ID] = v
	return &v, nil
}
