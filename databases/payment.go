package databases

// go generate: mockery --name PaymentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

const paymentName = "payments"

// PaymentDatabase contains the methods to use with the payment attempt database
type PaymentDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.PaymentAttempt, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PaymentAttempt, error)
	InsertOne(ctx context.Context, attempt models.PaymentAttempt) error
	ReplaceOne(ctx context.Context, filter interface{}, attempt models.PaymentAttempt) (int64, error)
	CountByVehicleAndStatus(ctx context.Context) ([]models.StatusCount, error)
}

type paymentDatabase struct {
	db DatabaseHelper
}

// NewPaymentDatabase initializes a new instance of payment database with the provided db connection
func NewPaymentDatabase(db DatabaseHelper) PaymentDatabase {
	return &paymentDatabase{
		db: db,
	}
}

func (p *paymentDatabase) FindOne(ctx context.Context, filter interface{}) (*models.PaymentAttempt, error) {
	attempt := &models.PaymentAttempt{}
	err := p.db.Collection(paymentName).FindOne(ctx, filter).Decode(&attempt)
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (p *paymentDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	cursor, err := p.db.Collection(paymentName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	if err := cursor.Decode(&attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

func (p *paymentDatabase) InsertOne(ctx context.Context, attempt models.PaymentAttempt) error {
	_, err := p.db.Collection(paymentName).InsertOne(ctx, attempt)
	return err
}

// ReplaceOne returns the number of matched documents
func (p *paymentDatabase) ReplaceOne(ctx context.Context, filter interface{}, attempt models.PaymentAttempt) (int64, error) {
	res, err := p.db.Collection(paymentName).ReplaceOne(ctx, filter, attempt)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// CountByVehicleAndStatus groups every attempt by vehicle and process status
func (p *paymentDatabase) CountByVehicleAndStatus(ctx context.Context) ([]models.StatusCount, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id": bson.M{
				"vehicleId": "$vehicleId",
				"status":    "$processStatus",
			},
			"count": bson.M{"$sum": 1},
		}},
		{"$project": bson.M{
			"_id":       0,
			"vehicleId": "$_id.vehicleId",
			"status":    "$_id.status",
			"count":     1,
		}},
	}
	var counts []models.StatusCount
	cursor, err := p.db.Collection(paymentName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if err := cursor.Decode(&counts); err != nil {
		return nil, err
	}
	return counts, nil
}
