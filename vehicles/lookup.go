package vehicles

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// LookupStore is the persistence the lookup needs
type LookupStore interface {
	FindOwnerByDocument(ctx context.Context, docType, number string) (*models.User, error)
	FindVehicle(ctx context.Context, plate string, ownerID primitive.ObjectID) (*models.Vehicle, error)
}

// Finder resolves vehicles by plate and owner document. Knowing both is the
// authorization, no session is involved.
type Finder struct {
	Store LookupStore
}

// Find validates the credentials before any query runs. A wrong document and a
// wrong plate both come back as ErrVehicleNotFound.
func (f Finder) Find(ctx context.Context, plate, docType, docNumber string) (*models.Vehicle, *models.User, error) {
	if err := ValidateDocument(docType, docNumber); err != nil {
		return nil, nil, err
	}
	p, err := NormalizePlate(plate)
	if err != nil {
		return nil, nil, err
	}
	docType = strings.ToUpper(strings.TrimSpace(docType))

	owner, err := f.Store.FindOwnerByDocument(ctx, docType, docNumber)
	if err != nil {
		return nil, nil, notFound(err)
	}
	v, err := f.Store.FindVehicle(ctx, p, owner.ID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	zap.S().Debugw("vehicle resolved",
		"plate", p,
		"vehicleId", v.ID.Hex())
	return v, owner, nil
}

func notFound(err error) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.ErrVehicleNotFound
	}
	return apperr.Persistence(err)
}
