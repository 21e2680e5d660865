package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.ProcessStatus
		want     bool
	}{
		{models.ProcessInitiated, models.ProcessPendingPSE, true},
		{models.ProcessPendingPSE, models.ProcessCompleted, true},
		{models.ProcessPendingPSE, models.ProcessExpired, true},
		{models.ProcessProcessing, models.ProcessCancelled, false},
		{models.ProcessCompleted, models.ProcessFailed, false},
		{models.ProcessFailed, models.ProcessCompleted, false},
		{models.ProcessExpired, models.ProcessPendingPSE, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for from, exits := range AllowedTransitions {
		if from.Terminal() {
			assert.Empty(t, exits, from)
		}
	}
}

func TestValidateTransition(t *testing.T) {
	err := ValidateTransition(models.ProcessCompleted, models.ProcessPendingPSE)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "completed -> pending_pse")
	assert.NoError(t, ValidateTransition(models.ProcessPendingPSE, models.ProcessFailed))
}

func TestLookupBank(t *testing.T) {
	b, ok := LookupBank("1003")
	assert.True(t, ok)
	assert.Equal(t, "Davivienda", b.Name)

	_, ok = LookupBank("0000")
	assert.False(t, ok)
}
