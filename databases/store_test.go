package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/databases"
	"github.com/linesmerrill/vehicle-tax-api/databases/mocks"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/payments"
)

type storeMocks struct {
	db          *mocks.DatabaseHelper
	client      *mocks.ClientHelper
	collections map[string]*mocks.CollectionHelper
}

func newStoreMocks() *storeMocks {
	m := &storeMocks{
		db:          &mocks.DatabaseHelper{},
		client:      &mocks.ClientHelper{},
		collections: map[string]*mocks.CollectionHelper{},
	}
	for _, name := range []string{"vehicles", "users", "fiscalPeriods", "payments", "paymentStatusLogs", "settings", "documentTypes"} {
		c := &mocks.CollectionHelper{}
		m.collections[name] = c
		m.db.On("Collection", name).Return(c)
	}
	m.db.On("Client").Return(m.client)
	// run the callback as the driver would inside a session
	m.client.On("WithTransaction", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
	return m
}

func (m *storeMocks) store() *databases.Store {
	return databases.NewStore(m.db)
}

func singleResult(err error, fill func(args mock.Arguments)) *mocks.SingleResultHelper {
	sr := &mocks.SingleResultHelper{}
	call := sr.On("Decode", mock.Anything).Return(err)
	if fill != nil {
		call.Run(fill)
	}
	return sr
}

func TestStore_ActivePeriodFollowsPointer(t *testing.T) {
	m := newStoreMocks()
	periodID := primitive.NewObjectID()

	m.collections["settings"].
		On("FindOne", context.Background(), bson.M{"_id": models.CurrentPeriodSettingID}).
		Return(singleResult(nil, func(args mock.Arguments) {
			arg := args.Get(0).(**models.CurrentPeriodSetting)
			(*arg).PeriodID = periodID
		}))
	m.collections["fiscalPeriods"].
		On("FindOne", context.Background(), bson.M{"_id": periodID}).
		Return(singleResult(nil, func(args mock.Arguments) {
			arg := args.Get(0).(**models.FiscalPeriod)
			(*arg).ID = periodID
			(*arg).Year = 2024
		}))

	p, err := m.store().ActivePeriod(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2024, p.Year)
}

func TestStore_ActivePeriodMissingPointer(t *testing.T) {
	m := newStoreMocks()
	m.collections["settings"].
		On("FindOne", context.Background(), bson.M{"_id": models.CurrentPeriodSettingID}).
		Return(singleResult(mongo.ErrNoDocuments, nil))

	_, err := m.store().ActivePeriod(context.Background())

	assert.ErrorIs(t, err, apperr.ErrNoActiveFiscalPeriod)
}

func TestStore_ActivePeriodDriverFailure(t *testing.T) {
	m := newStoreMocks()
	m.collections["settings"].
		On("FindOne", context.Background(), bson.M{"_id": models.CurrentPeriodSettingID}).
		Return(singleResult(errors.New("connection reset"), nil))

	_, err := m.store().ActivePeriod(context.Background())

	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
}

func TestStore_FindAttemptNoMatch(t *testing.T) {
	m := newStoreMocks()
	vid, pid := primitive.NewObjectID(), primitive.NewObjectID()
	m.collections["payments"].
		On("FindOne", context.Background(), bson.M{
			"vehicleId":      vid,
			"fiscalPeriodId": pid,
			"processStatus":  models.ProcessCompleted,
		}).
		Return(singleResult(mongo.ErrNoDocuments, nil))

	a, err := m.store().FindAttempt(context.Background(), vid, pid, models.ProcessCompleted)

	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestStore_FindAttemptByReferenceNotFound(t *testing.T) {
	m := newStoreMocks()
	m.collections["payments"].
		On("FindOne", context.Background(), bson.M{"reference": "PSE-missing"}).
		Return(singleResult(mongo.ErrNoDocuments, nil))

	_, err := m.store().FindAttemptByReference(context.Background(), "PSE-missing")

	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)
}

func TestStore_InsertAttemptDuplicateKey(t *testing.T) {
	m := newStoreMocks()
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	m.collections["payments"].
		On("InsertOne", context.Background(), mock.Anything).
		Return(nil, dup)

	err := m.store().InsertAttempt(context.Background(), &models.PaymentAttempt{ID: primitive.NewObjectID()})

	assert.ErrorIs(t, err, payments.ErrDuplicateAttempt)
}

func TestStore_InsertVehicleDuplicatePlate(t *testing.T) {
	m := newStoreMocks()
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	m.collections["vehicles"].
		On("InsertOne", context.Background(), mock.Anything).
		Return(nil, dup)

	err := m.store().InsertVehicle(context.Background(), &models.Vehicle{Plate: "ABC123"})

	assert.ErrorIs(t, err, apperr.ErrPlateTaken)
}

func TestStore_UpsertUserDuplicateDocument(t *testing.T) {
	m := newStoreMocks()
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	m.collections["users"].
		On("FindOne", context.Background(), bson.M{"email": "second@example.com"}).
		Return(singleResult(mongo.ErrNoDocuments, nil))
	m.collections["users"].
		On("ReplaceOne", context.Background(), mock.Anything, mock.Anything, mock.Anything).
		Return(nil, dup)

	_, err := m.store().UpsertUser(context.Background(), models.User{
		Email:          "Second@example.com",
		DocumentType:   "CC",
		DocumentNumber: "1020304050",
	})

	assert.ErrorIs(t, err, apperr.ErrDocumentTaken)
}

func TestStore_SetVehiclePaymentStateMarksPaid(t *testing.T) {
	m := newStoreMocks()
	vid := primitive.NewObjectID()
	paid := time.Date(2024, 3, 10, 12, 5, 0, 0, time.UTC)
	m.collections["vehicles"].
		On("UpdateOne", context.Background(), bson.M{"_id": vid}, bson.M{"$set": bson.M{
			"hasPendingPayments": false,
			"currentTaxStatus":   models.TaxStatusUpToDate,
			"lastPaymentDate":    paid,
			"updatedAt":          paid,
		}}).
		Return(&mongo.UpdateResult{MatchedCount: 1}, nil)

	err := m.store().SetVehiclePaymentState(context.Background(), vid, payments.VehiclePaymentState{PaidAt: &paid})

	assert.NoError(t, err)
	m.collections["vehicles"].AssertExpectations(t)
}

func TestStore_UpdateAttemptMissing(t *testing.T) {
	m := newStoreMocks()
	a := models.PaymentAttempt{ID: primitive.NewObjectID()}
	m.collections["payments"].
		On("ReplaceOne", context.Background(), bson.M{"_id": a.ID}, a).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	err := m.store().UpdateAttempt(context.Background(), &a)

	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)
}

func TestStore_SwitchActivePeriod(t *testing.T) {
	m := newStoreMocks()
	p := models.FiscalPeriod{ID: primitive.NewObjectID(), Year: 2025}
	periods := m.collections["fiscalPeriods"]

	periods.On("UpdateMany", mock.Anything,
		bson.M{"active": true, "_id": bson.M{"$ne": p.ID}}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	periods.On("UpdateOne", mock.Anything, bson.M{"_id": p.ID}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	m.collections["settings"].
		On("ReplaceOne", mock.Anything, bson.M{"_id": models.CurrentPeriodSettingID},
			mock.MatchedBy(func(s models.CurrentPeriodSetting) bool {
				return s.PeriodID == p.ID && s.Year == 2025 && s.ID == models.CurrentPeriodSettingID
			}), mock.Anything).
		Return(&mongo.UpdateResult{UpsertedCount: 1}, nil)

	err := m.store().SwitchActivePeriod(context.Background(), p)

	require.NoError(t, err)
	periods.AssertExpectations(t)
	m.collections["settings"].AssertExpectations(t)
	m.client.AssertCalled(t, "WithTransaction", mock.Anything, mock.Anything)
}

func TestStore_SwitchActivePeriodUnknownPeriod(t *testing.T) {
	m := newStoreMocks()
	p := models.FiscalPeriod{ID: primitive.NewObjectID(), Year: 2030}
	periods := m.collections["fiscalPeriods"]
	periods.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{}, nil)
	periods.On("UpdateOne", mock.Anything, bson.M{"_id": p.ID}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	err := m.store().SwitchActivePeriod(context.Background(), p)

	assert.ErrorIs(t, err, apperr.ErrFiscalPeriodNotFound)
	m.collections["settings"].AssertNotCalled(t, "ReplaceOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_StatusCounts(t *testing.T) {
	m := newStoreMocks()
	vid := primitive.NewObjectID()
	cursor := &mocks.CursorHelper{}
	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.StatusCount)
		*arg = []models.StatusCount{{VehicleID: vid, Status: models.ProcessCompleted, Count: 2}}
	})
	m.collections["payments"].On("Aggregate", context.Background(), mock.Anything).Return(cursor, nil)

	counts, err := m.store().StatusCounts(context.Background())

	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].Count)
}

func TestEnsureIndexes(t *testing.T) {
	m := newStoreMocks()
	for _, c := range m.collections {
		c.On("CreateIndexes", mock.Anything, mock.Anything).Return([]string{"idx"}, nil)
	}

	require.NoError(t, databases.EnsureIndexes(context.Background(), m.db))
	m.collections["payments"].AssertCalled(t, "CreateIndexes", mock.Anything, mock.Anything)
	m.collections["vehicles"].AssertCalled(t, "CreateIndexes", mock.Anything, mock.Anything)
}

func TestIndexes_OwnerDocumentIsUnique(t *testing.T) {
	var found bool
	for _, idx := range databases.Indexes()["users"] {
		if *idx.Options.Name != "uniq_document" {
			continue
		}
		found = true
		assert.True(t, *idx.Options.Unique)
		assert.Equal(t, bson.D{{Key: "documentType", Value: 1}, {Key: "documentNumber", Value: 1}}, idx.Keys)
	}
	assert.True(t, found)
}

func TestIndexes_OpenAttemptIsPartialUnique(t *testing.T) {
	idx := databases.Indexes()["payments"][0]
	require.NotNil(t, idx.Options)
	assert.True(t, *idx.Options.Unique)
	assert.Equal(t, bson.M{"openKey": bson.M{"$exists": true}}, idx.Options.PartialFilterExpression)
}
