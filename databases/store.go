package databases

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/payments"
)

// Store is the mongo implementation of every persistence interface the
// services consume. Methods called with the context handed to a
// WithTransaction callback run inside that transaction.
type Store struct {
	client        ClientHelper
	Vehicles      VehicleDatabase
	Users         UserDatabase
	Periods       FiscalPeriodDatabase
	Payments      PaymentDatabase
	PaymentLogs   PaymentLogDatabase
	Settings      SettingsDatabase
	DocumentTypes DocumentTypeDatabase
}

// NewStore wires every collection of db
func NewStore(db DatabaseHelper) *Store {
	return &Store{
		client:        db.Client(),
		Vehicles:      NewVehicleDatabase(db),
		Users:         NewUserDatabase(db),
		Periods:       NewFiscalPeriodDatabase(db),
		Payments:      NewPaymentDatabase(db),
		PaymentLogs:   NewPaymentLogDatabase(db),
		Settings:      NewSettingsDatabase(db),
		DocumentTypes: NewDocumentTypeDatabase(db),
	}
}

// WithTransaction runs fn in a mongo session transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.client.WithTransaction(ctx, fn)
}

// ActivePeriod follows the current-period pointer. A pointer to a period that
// no longer exists counts as no active period.
func (s *Store) ActivePeriod(ctx context.Context) (*models.FiscalPeriod, error) {
	setting, err := s.Settings.CurrentPeriod(ctx)
	if err != nil {
		return nil, classify(err, apperr.ErrNoActiveFiscalPeriod)
	}
	p, err := s.Periods.FindOne(ctx, bson.M{"_id": setting.PeriodID})
	if err != nil {
		return nil, classify(err, apperr.ErrNoActiveFiscalPeriod)
	}
	return p, nil
}

// FindPeriodByYear returns apperr.ErrFiscalPeriodNotFound when missing
func (s *Store) FindPeriodByYear(ctx context.Context, year int) (*models.FiscalPeriod, error) {
	p, err := s.Periods.FindOne(ctx, bson.M{"year": year})
	if err != nil {
		return nil, classify(err, apperr.ErrFiscalPeriodNotFound)
	}
	return p, nil
}

// ListPeriods returns every period, newest year first
func (s *Store) ListPeriods(ctx context.Context) ([]models.FiscalPeriod, error) {
	periods, err := s.Periods.Find(ctx, bson.M{}, sortedBy("year", -1))
	return periods, apperr.Persistence(err)
}

// SwitchActivePeriod moves the pointer to p and flips the active flags in one
// transaction
func (s *Store) SwitchActivePeriod(ctx context.Context, p models.FiscalPeriod) error {
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		if _, err := s.Periods.UpdateMany(ctx,
			bson.M{"active": true, "_id": bson.M{"$ne": p.ID}},
			bson.M{"$set": bson.M{"active": false, "updatedAt": now}},
		); err != nil {
			return err
		}
		res, err := s.Periods.UpdateOne(ctx,
			bson.M{"_id": p.ID},
			bson.M{"$set": bson.M{"active": true, "updatedAt": now}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return apperr.ErrFiscalPeriodNotFound
		}
		return s.Settings.SetCurrentPeriod(ctx, models.CurrentPeriodSetting{
			PeriodID:  p.ID,
			Year:      p.Year,
			UpdatedAt: now,
		})
	})
}

// UpsertPeriod stores p keyed by year, keeping the existing _id. The active
// flag is left to SwitchActivePeriod.
func (s *Store) UpsertPeriod(ctx context.Context, p models.FiscalPeriod) (*models.FiscalPeriod, error) {
	existing, err := s.Periods.FindOne(ctx, bson.M{"year": p.Year})
	switch {
	case err == nil:
		p.ID = existing.ID
		p.Active = existing.Active
		p.CreatedAt = existing.CreatedAt
	case isNoDocuments(err):
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		p.Active = false
	default:
		return nil, apperr.Persistence(err)
	}
	if err := s.Periods.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true)); err != nil {
		return nil, apperr.Persistence(err)
	}
	return &p, nil
}

// FindOwnerByDocument returns apperr.ErrOwnerNotFound when missing
func (s *Store) FindOwnerByDocument(ctx context.Context, docType, number string) (*models.User, error) {
	u, err := s.Users.FindOne(ctx, bson.M{"documentType": docType, "documentNumber": number})
	if err != nil {
		return nil, classify(err, apperr.ErrOwnerNotFound)
	}
	return u, nil
}

// FindUserByEmail returns apperr.ErrOwnerNotFound when missing
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.Users.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		return nil, classify(err, apperr.ErrOwnerNotFound)
	}
	return u, nil
}

// FindUserByID returns apperr.ErrOwnerNotFound when missing
func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.Users.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, classify(err, apperr.ErrOwnerNotFound)
	}
	return u, nil
}

// RecordLogin stamps a successful login or counts a failed one
func (s *Store) RecordLogin(ctx context.Context, id primitive.ObjectID, success bool, at time.Time) error {
	update := bson.M{"$inc": bson.M{"failedLoginAttempts": 1}, "$set": bson.M{"updatedAt": at}}
	if success {
		update = bson.M{"$set": bson.M{"lastLogin": at, "failedLoginAttempts": 0, "updatedAt": at}}
	}
	_, err := s.Users.UpdateOne(ctx, bson.M{"_id": id}, update)
	return apperr.Persistence(err)
}

// UpsertUser stores u keyed by email, keeping the existing _id. A document
// held by another owner is apperr.ErrDocumentTaken.
func (s *Store) UpsertUser(ctx context.Context, u models.User) (*models.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	existing, err := s.Users.FindOne(ctx, bson.M{"email": u.Email})
	switch {
	case err == nil:
		u.ID = existing.ID
		u.CreatedAt = existing.CreatedAt
	case isNoDocuments(err):
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
	default:
		return nil, apperr.Persistence(err)
	}
	err = s.Users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil, apperr.ErrDocumentTaken
	}
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return &u, nil
}

// UpsertDocumentType stores t keyed by its code
func (s *Store) UpsertDocumentType(ctx context.Context, t models.DocumentType) error {
	return apperr.Persistence(s.DocumentTypes.Upsert(ctx, t))
}

// ListDocumentTypes returns the active document types
func (s *Store) ListDocumentTypes(ctx context.Context) ([]models.DocumentType, error) {
	types, err := s.DocumentTypes.Find(ctx, bson.M{"isActive": true})
	return types, apperr.Persistence(err)
}

// FindVehicle matches plate and owner
func (s *Store) FindVehicle(ctx context.Context, plate string, ownerID primitive.ObjectID) (*models.Vehicle, error) {
	v, err := s.Vehicles.FindOne(ctx, bson.M{"plate": plate, "ownerId": ownerID})
	if err != nil {
		return nil, classify(err, apperr.ErrVehicleNotFound)
	}
	return v, nil
}

// FindVehicleByPlate returns apperr.ErrVehicleNotFound when missing
func (s *Store) FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	v, err := s.Vehicles.FindOne(ctx, bson.M{"plate": plate})
	if err != nil {
		return nil, classify(err, apperr.ErrVehicleNotFound)
	}
	return v, nil
}

// FindVehiclesByID skips ids that do not exist
func (s *Store) FindVehiclesByID(ctx context.Context, ids []primitive.ObjectID) ([]models.Vehicle, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	vehicles, err := s.Vehicles.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, sortedBy("plate", 1))
	return vehicles, apperr.Persistence(err)
}

// InsertVehicle returns apperr.ErrPlateTaken when the plate exists
func (s *Store) InsertVehicle(ctx context.Context, v *models.Vehicle) error {
	err := s.Vehicles.InsertOne(ctx, *v)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.ErrPlateTaken
	}
	return apperr.Persistence(err)
}

// UpsertVehicle stores v keyed by plate, keeping the existing _id and payment
// state
func (s *Store) UpsertVehicle(ctx context.Context, v models.Vehicle) (*models.Vehicle, error) {
	existing, err := s.Vehicles.FindOne(ctx, bson.M{"plate": v.Plate})
	switch {
	case err == nil:
		v.ID = existing.ID
		v.CreatedAt = existing.CreatedAt
		v.HasPendingPayments = existing.HasPendingPayments
		v.LastPaymentDate = existing.LastPaymentDate
	case isNoDocuments(err):
		if v.ID.IsZero() {
			v.ID = primitive.NewObjectID()
		}
	default:
		return nil, apperr.Persistence(err)
	}
	if err := s.Vehicles.ReplaceOne(ctx, bson.M{"_id": v.ID}, v, options.Replace().SetUpsert(true)); err != nil {
		return nil, apperr.Persistence(err)
	}
	return &v, nil
}

// SetVehiclePaymentState applies the payment flow's vehicle mutation
func (s *Store) SetVehiclePaymentState(ctx context.Context, vehicleID primitive.ObjectID, st payments.VehiclePaymentState) error {
	set := bson.M{"hasPendingPayments": st.HasPendingPayments}
	if st.PaidAt != nil {
		set["currentTaxStatus"] = models.TaxStatusUpToDate
		set["lastPaymentDate"] = *st.PaidAt
		set["updatedAt"] = *st.PaidAt
	}
	res, err := s.Vehicles.UpdateOne(ctx, bson.M{"_id": vehicleID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrVehicleNotFound
	}
	return nil
}

// FindAttempt returns nil, nil when nothing matches
func (s *Store) FindAttempt(ctx context.Context, vehicleID, periodID primitive.ObjectID, status models.ProcessStatus) (*models.PaymentAttempt, error) {
	a, err := s.Payments.FindOne(ctx, bson.M{
		"vehicleId":      vehicleID,
		"fiscalPeriodId": periodID,
		"processStatus":  status,
	})
	if isNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// FindAttemptByReference returns apperr.ErrTransactionNotFound when missing
func (s *Store) FindAttemptByReference(ctx context.Context, reference string) (*models.PaymentAttempt, error) {
	a, err := s.Payments.FindOne(ctx, bson.M{"reference": reference})
	if err != nil {
		return nil, classify(err, apperr.ErrTransactionNotFound)
	}
	return a, nil
}

// FindAttemptByID returns apperr.ErrTransactionNotFound when missing
func (s *Store) FindAttemptByID(ctx context.Context, id primitive.ObjectID) (*models.PaymentAttempt, error) {
	a, err := s.Payments.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, classify(err, apperr.ErrTransactionNotFound)
	}
	return a, nil
}

// InsertAttempt returns payments.ErrDuplicateAttempt when the open-attempt or
// reference index rejects the document
func (s *Store) InsertAttempt(ctx context.Context, a *models.PaymentAttempt) error {
	err := s.Payments.InsertOne(ctx, *a)
	if mongo.IsDuplicateKeyError(err) {
		return payments.ErrDuplicateAttempt
	}
	return err
}

// UpdateAttempt replaces the stored document. A cleared OpenKey is dropped
// from the document, releasing the partial unique index.
func (s *Store) UpdateAttempt(ctx context.Context, a *models.PaymentAttempt) error {
	matched, err := s.Payments.ReplaceOne(ctx, bson.M{"_id": a.ID}, *a)
	if err != nil {
		return err
	}
	if matched == 0 {
		return apperr.ErrTransactionNotFound
	}
	return nil
}

// AttemptsForVehicle is newest first
func (s *Store) AttemptsForVehicle(ctx context.Context, vehicleID primitive.ObjectID) ([]models.PaymentAttempt, error) {
	return s.Payments.Find(ctx, bson.M{"vehicleId": vehicleID}, sortedBy("paymentDate", -1))
}

// StalePending lists PENDING_PSE attempts created before cutoff, oldest first
func (s *Store) StalePending(ctx context.Context, cutoff time.Time) ([]models.PaymentAttempt, error) {
	return s.Payments.Find(ctx, bson.M{
		"processStatus": models.ProcessPendingPSE,
		"createdAt":     bson.M{"$lt": cutoff},
	}, sortedBy("createdAt", 1))
}

// StatusCounts groups attempts by vehicle and process status
func (s *Store) StatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	counts, err := s.Payments.CountByVehicleAndStatus(ctx)
	return counts, apperr.Persistence(err)
}

// AppendStatusLog inserts e
func (s *Store) AppendStatusLog(ctx context.Context, e models.PaymentStatusLogEntry) error {
	return s.PaymentLogs.InsertOne(ctx, e)
}

// StatusLog is oldest first
func (s *Store) StatusLog(ctx context.Context, paymentID primitive.ObjectID) ([]models.PaymentStatusLogEntry, error) {
	return s.PaymentLogs.Find(ctx, bson.M{"paymentId": paymentID}, sortedBy("timestamp", 1))
}

// Ping checks the connection for the health endpoint
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
