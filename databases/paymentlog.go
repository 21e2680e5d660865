package databases

// go generate: mockery --name PaymentLogDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

const paymentLogName = "paymentStatusLogs"

// PaymentLogDatabase contains the methods to use with the payment status log
// database. The log is append only, so there is no update or delete.
type PaymentLogDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PaymentStatusLogEntry, error)
	InsertOne(ctx context.Context, entry models.PaymentStatusLogEntry) error
}

type paymentLogDatabase struct {
	db DatabaseHelper
}

// NewPaymentLogDatabase initializes a new instance of payment log database with the provided db connection
func NewPaymentLogDatabase(db DatabaseHelper) PaymentLogDatabase {
	return &paymentLogDatabase{
		db: db,
	}
}

func (l *paymentLogDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.PaymentStatusLogEntry, error) {
	var entries []models.PaymentStatusLogEntry
	cursor, err := l.db.Collection(paymentLogName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	if err := cursor.Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (l *paymentLogDatabase) InsertOne(ctx context.Context, entry models.PaymentStatusLogEntry) error {
	_, err := l.db.Collection(paymentLogName).InsertOne(ctx, entry)
	return err
}
