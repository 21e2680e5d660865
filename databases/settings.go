package databases

// go generate: mockery --name SettingsDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

const settingsName = "settings"

// SettingsDatabase holds singleton documents keyed by a fixed _id. The only one
// today is the current fiscal period pointer.
type SettingsDatabase interface {
	CurrentPeriod(ctx context.Context) (*models.CurrentPeriodSetting, error)
	SetCurrentPeriod(ctx context.Context, setting models.CurrentPeriodSetting) error
}

type settingsDatabase struct {
	db DatabaseHelper
}

// NewSettingsDatabase initializes a new instance of settings database with the provided db connection
func NewSettingsDatabase(db DatabaseHelper) SettingsDatabase {
	return &settingsDatabase{
		db: db,
	}
}

func (s *settingsDatabase) CurrentPeriod(ctx context.Context) (*models.CurrentPeriodSetting, error) {
	setting := &models.CurrentPeriodSetting{}
	err := s.db.Collection(settingsName).
		FindOne(ctx, bson.M{"_id": models.CurrentPeriodSettingID}).
		Decode(&setting)
	if err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *settingsDatabase) SetCurrentPeriod(ctx context.Context, setting models.CurrentPeriodSetting) error {
	setting.ID = models.CurrentPeriodSettingID
	_, err := s.db.Collection(settingsName).ReplaceOne(ctx,
		bson.M{"_id": models.CurrentPeriodSettingID},
		setting,
		options.Replace().SetUpsert(true))
	return err
}
