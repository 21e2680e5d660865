package tax

import (
	"context"

	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// PeriodStore is the persistence the period manager needs
type PeriodStore interface {
	FindPeriodByYear(ctx context.Context, year int) (*models.FiscalPeriod, error)
	ActivePeriod(ctx context.Context) (*models.FiscalPeriod, error)
	// SwitchActivePeriod moves the current-period pointer to p and flips the
	// active flags in one transaction
	SwitchActivePeriod(ctx context.Context, p models.FiscalPeriod) error
}

// PeriodManager is the only writer of the active fiscal period
type PeriodManager struct {
	Store PeriodStore
}

// Active returns the period the current-period pointer references
func (m PeriodManager) Active(ctx context.Context) (*models.FiscalPeriod, error) {
	return m.Store.ActivePeriod(ctx)
}

// Activate validates the rate table of the period for year and makes it the
// single active period. Activating the period that is already active is a
// no-op.
func (m PeriodManager) Activate(ctx context.Context, year int) (*models.FiscalPeriod, error) {
	p, err := m.Store.FindPeriodByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	if err := ValidateBrackets(p.Brackets); err != nil {
		return nil, err
	}

	current, err := m.Store.ActivePeriod(ctx)
	switch {
	case err == nil && current.ID == p.ID:
		return current, nil
	case err != nil && apperr.KindOf(err) != apperr.KindNotFound:
		return nil, err
	}

	if err := m.Store.SwitchActivePeriod(ctx, *p); err != nil {
		return nil, apperr.Persistence(err)
	}
	p.Active = true
	zap.S().Infow("fiscal period activated",
		"year", p.Year,
		"periodId", p.ID.Hex())
	return p, nil
}
