package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
)

func TestWrapKeepsSentinelIdentity(t *testing.T) {
	err := fmt.Errorf("initiate: %w", apperr.Wrap(apperr.ErrTransactionNotFound, errors.New("no documents")))

	assert.True(t, errors.Is(err, apperr.ErrTransactionNotFound))
	assert.False(t, errors.Is(err, apperr.ErrVehicleNotFound))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "transaction not found", apperr.ReasonOf(err))
}

func TestPersistencePassesClassifiedErrorsThrough(t *testing.T) {
	assert.Nil(t, apperr.Persistence(nil))
	assert.Equal(t, apperr.ErrInvalidAmount, apperr.Persistence(apperr.ErrInvalidAmount))

	err := apperr.Persistence(errors.New("connection reset"))
	assert.True(t, errors.Is(err, apperr.ErrPersistence))
	assert.EqualError(t, err, "persistence failure: connection reset")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrVehicleNotFound, http.StatusNotFound},
		{apperr.ErrInvalidDocument, http.StatusBadRequest},
		{apperr.ErrInvalidTransition, http.StatusConflict},
		{apperr.ErrInvalidCredentials, http.StatusUnauthorized},
		{apperr.ErrPersistence, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, apperr.HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestReasonsAreDistinct(t *testing.T) {
	all := []*apperr.Error{
		apperr.ErrVehicleNotFound, apperr.ErrOwnerNotFound, apperr.ErrNoActiveFiscalPeriod,
		apperr.ErrFiscalPeriodNotFound, apperr.ErrNoApplicableRate, apperr.ErrTransactionNotFound,
		apperr.ErrInvalidDocument, apperr.ErrUnknownDocumentType, apperr.ErrInvalidPlate,
		apperr.ErrNegativeValue, apperr.ErrFutureModelYear, apperr.ErrElectricAndHybrid,
		apperr.ErrInvalidVehicleType, apperr.ErrInvalidAmount, apperr.ErrInvalidBank,
		apperr.ErrInvalidEmail, apperr.ErrInvalidTaxStatus, apperr.ErrInvalidOutcome,
		apperr.ErrOverlappingBrackets, apperr.ErrGappedBrackets, apperr.ErrInvertedBracket,
		apperr.ErrUnboundedInnerBracket, apperr.ErrNegativeRate, apperr.ErrCorrectionChainTooLong,
		apperr.ErrCorrectionCycle, apperr.ErrInvalidCorrection, apperr.ErrInvalidTransition,
		apperr.ErrPaymentInProgress, apperr.ErrPlateTaken,
		apperr.ErrPersistence, apperr.ErrInvalidCredentials, apperr.ErrInactiveUser,
	}
	seen := map[string]bool{}
	for _, e := range all {
		assert.False(t, seen[e.Reason], "duplicate reason %q", e.Reason)
		seen[e.Reason] = true
	}
}
