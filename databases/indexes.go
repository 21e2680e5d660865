package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Indexes lists the indexes each collection needs. The partial unique index on
// payments.openKey is what keeps a single open attempt per vehicle and period.
func Indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		paymentName: {
			{
				Keys: bson.D{{Key: "openKey", Value: 1}},
				Options: options.Index().
					SetName("uniq_open_attempt").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"openKey": bson.M{"$exists": true}}),
			},
			{
				Keys:    bson.D{{Key: "reference", Value: 1}},
				Options: options.Index().SetName("uniq_reference").SetUnique(true),
			},
			{
				Keys: bson.D{
					{Key: "vehicleId", Value: 1},
					{Key: "fiscalPeriodId", Value: 1},
					{Key: "processStatus", Value: 1},
				},
				Options: options.Index().SetName("vehicle_period_status"),
			},
			{
				Keys:    bson.D{{Key: "processStatus", Value: 1}, {Key: "createdAt", Value: 1}},
				Options: options.Index().SetName("status_created"),
			},
		},
		paymentLogName: {
			{
				Keys:    bson.D{{Key: "paymentId", Value: 1}, {Key: "timestamp", Value: 1}},
				Options: options.Index().SetName("payment_timestamp"),
			},
		},
		vehicleName: {
			{
				Keys:    bson.D{{Key: "plate", Value: 1}},
				Options: options.Index().SetName("uniq_plate").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "ownerId", Value: 1}},
				Options: options.Index().SetName("owner"),
			},
		},
		userName: {
			{
				Keys:    bson.D{{Key: "documentType", Value: 1}, {Key: "documentNumber", Value: 1}},
				Options: options.Index().SetName("uniq_document").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("uniq_email").SetUnique(true),
			},
		},
		fiscalPeriodName: {
			{
				Keys:    bson.D{{Key: "year", Value: 1}},
				Options: options.Index().SetName("uniq_year").SetUnique(true),
			},
		},
	}
}

// EnsureIndexes creates any missing index. Creating an index that already exists
// with the same definition is a no-op in mongo.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	for collection, models := range Indexes() {
		names, err := db.Collection(collection).CreateIndexes(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
		zap.S().Debugw("indexes ensured",
			"collection", collection,
			"indexes", names)
	}
	return nil
}
