package databases

//go generate: mockery --name VehicleDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

const vehicleName = "vehicles"

// VehicleDatabase contains the methods to use with the vehicle database
type VehicleDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Vehicle, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Vehicle, error)
	InsertOne(ctx context.Context, vehicle models.Vehicle) error
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	ReplaceOne(ctx context.Context, filter interface{}, vehicle models.Vehicle, opts ...*options.ReplaceOptions) error
}

type vehicleDatabase struct {
	db DatabaseHelper
}

// NewVehicleDatabase initializes a new instance of vehicle database with the provided db connection
func NewVehicleDatabase(db DatabaseHelper) VehicleDatabase {
	return &vehicleDatabase{
		db: db,
	}
}

func (c *vehicleDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	err := c.db.Collection(vehicleName).FindOne(ctx, filter).Decode(&vehicle)
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (c *vehicleDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	cursor, err := c.db.Collection(vehicleName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	if err := cursor.Decode(&vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (c *vehicleDatabase) InsertOne(ctx context.Context, vehicle models.Vehicle) error {
	_, err := c.db.Collection(vehicleName).InsertOne(ctx, vehicle)
	return err
}

func (c *vehicleDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return c.db.Collection(vehicleName).UpdateOne(ctx, filter, update)
}

func (c *vehicleDatabase) ReplaceOne(ctx context.Context, filter interface{}, vehicle models.Vehicle, opts ...*options.ReplaceOptions) error {
	_, err := c.db.Collection(vehicleName).ReplaceOne(ctx, filter, vehicle, opts...)
	return err
}
