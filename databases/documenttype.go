package databases

// go generate: mockery --name DocumentTypeDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

const documentTypeName = "documentTypes"

// DocumentTypeDatabase contains the methods to use with the document type database
type DocumentTypeDatabase interface {
	Find(ctx context.Context, filter interface{}) ([]models.DocumentType, error)
	Upsert(ctx context.Context, docType models.DocumentType) error
}

type documentTypeDatabase struct {
	db DatabaseHelper
}

// NewDocumentTypeDatabase initializes a new instance of document type database with the provided db connection
func NewDocumentTypeDatabase(db DatabaseHelper) DocumentTypeDatabase {
	return &documentTypeDatabase{
		db: db,
	}
}

func (d *documentTypeDatabase) Find(ctx context.Context, filter interface{}) ([]models.DocumentType, error) {
	var types []models.DocumentType
	cursor, err := d.db.Collection(documentTypeName).Find(ctx, filter, sortedBy("_id", 1))
	if err != nil {
		return nil, err
	}
	if err := cursor.Decode(&types); err != nil {
		return nil, err
	}
	return types, nil
}

func (d *documentTypeDatabase) Upsert(ctx context.Context, docType models.DocumentType) error {
	_, err := d.db.Collection(documentTypeName).ReplaceOne(ctx,
		bson.M{"_id": docType.Code},
		docType,
		options.Replace().SetUpsert(true))
	return err
}
