package databases

// go generate: mockery --name FiscalPeriodDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

const fiscalPeriodName = "fiscalPeriods"

// FiscalPeriodDatabase contains the methods to use with the fiscal period database.
// Rate brackets are embedded in their period.
type FiscalPeriodDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.FiscalPeriod, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.FiscalPeriod, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	ReplaceOne(ctx context.Context, filter interface{}, period models.FiscalPeriod, opts ...*options.ReplaceOptions) error
}

type fiscalPeriodDatabase struct {
	db DatabaseHelper
}

// NewFiscalPeriodDatabase initializes a new instance of fiscal period database with the provided db connection
func NewFiscalPeriodDatabase(db DatabaseHelper) FiscalPeriodDatabase {
	return &fiscalPeriodDatabase{
		db: db,
	}
}

func (f *fiscalPeriodDatabase) FindOne(ctx context.Context, filter interface{}) (*models.FiscalPeriod, error) {
	period := &models.FiscalPeriod{}
	err := f.db.Collection(fiscalPeriodName).FindOne(ctx, filter).Decode(&period)
	if err != nil {
		return nil, err
	}
	return period, nil
}

func (f *fiscalPeriodDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.FiscalPeriod, error) {
	var periods []models.FiscalPeriod
	cursor, err := f.db.Collection(fiscalPeriodName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	if err := cursor.Decode(&periods); err != nil {
		return nil, err
	}
	return periods, nil
}

func (f *fiscalPeriodDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return f.db.Collection(fiscalPeriodName).UpdateOne(ctx, filter, update)
}

func (f *fiscalPeriodDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return f.db.Collection(fiscalPeriodName).UpdateMany(ctx, filter, update)
}

func (f *fiscalPeriodDatabase) ReplaceOne(ctx context.Context, filter interface{}, period models.FiscalPeriod, opts ...*options.ReplaceOptions) error {
	_, err := f.db.Collection(fiscalPeriodName).ReplaceOne(ctx, filter, period, opts...)
	return err
}
