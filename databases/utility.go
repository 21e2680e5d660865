package databases

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
)

// classify turns a missing document into notFound and wraps anything else as a
// persistence failure
func classify(err error, notFound *apperr.Error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return apperr.Persistence(err)
}

func sortedBy(field string, direction int) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: field, Value: direction}})
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
