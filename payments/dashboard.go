package payments

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// DashboardStore is the persistence the admin dashboard reads
type DashboardStore interface {
	StatusCounts(ctx context.Context) ([]models.StatusCount, error)
	FindVehiclesByID(ctx context.Context, ids []primitive.ObjectID) ([]models.Vehicle, error)
}

// Dashboard groups attempt counts per vehicle and per state
func Dashboard(ctx context.Context, ds DashboardStore, now time.Time) (*models.Dashboard, error) {
	counts, err := ds.StatusCounts(ctx)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, c := range counts {
		if !seen[c.VehicleID] {
			seen[c.VehicleID] = true
			ids = append(ids, c.VehicleID)
		}
	}
	var vehicles []models.Vehicle
	if len(ids) > 0 {
		if vehicles, err = ds.FindVehiclesByID(ctx, ids); err != nil {
			return nil, apperr.Persistence(err)
		}
	}
	d := BuildDashboard(counts, vehicles)
	d.GeneratedAt = now
	return &d, nil
}

// BuildDashboard folds counts into one row per vehicle, busiest first. Counts
// for vehicles missing from vehicles still appear, without a plate.
func BuildDashboard(counts []models.StatusCount, vehicles []models.Vehicle) models.Dashboard {
	byID := make(map[primitive.ObjectID]models.Vehicle, len(vehicles))
	for _, v := range vehicles {
		byID[v.ID] = v
	}
	d := models.Dashboard{Totals: map[models.ProcessStatus]int{}}
	rows := map[primitive.ObjectID]*models.VehiclePaymentSummary{}
	for _, c := range counts {
		row, ok := rows[c.VehicleID]
		if !ok {
			row = &models.VehiclePaymentSummary{VehicleID: c.VehicleID, Counts: map[models.ProcessStatus]int{}}
			if v, found := byID[c.VehicleID]; found {
				row.Plate = v.Plate
				row.TaxStatus = v.TaxStatus
				row.HasPendingPayments = v.HasPendingPayments
			}
			rows[c.VehicleID] = row
		}
		row.Counts[c.Status] += c.Count
		row.Total += c.Count
		d.Totals[c.Status] += c.Count
	}
	d.Vehicles = make([]models.VehiclePaymentSummary, 0, len(rows))
	for _, r := range rows {
		d.Vehicles = append(d.Vehicles, *r)
	}
	sort.Slice(d.Vehicles, func(i, j int) bool {
		if d.Vehicles[i].Total != d.Vehicles[j].Total {
			return d.Vehicles[i].Total > d.Vehicles[j].Total
		}
		return d.Vehicles[i].Plate < d.Vehicles[j].Plate
	})
	return d
}
