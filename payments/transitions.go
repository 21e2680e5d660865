// Package payments drives a PSE payment attempt from initiation to a terminal
// state. Each transition commits the attempt, its status-log entry and any
// vehicle change as one unit of work.
package payments

import (
	"fmt"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// AllowedTransitions maps each state to the states it may move to. Terminal
// states have no exits.
var AllowedTransitions = map[models.ProcessStatus][]models.ProcessStatus{
	models.ProcessInitiated: {
		models.ProcessPendingPSE,
		models.ProcessCancelled,
		models.ProcessFailed,
	},
	models.ProcessPendingPSE: {
		models.ProcessProcessing,
		models.ProcessCompleted,
		models.ProcessFailed,
		models.ProcessCancelled,
		models.ProcessExpired,
	},
	models.ProcessProcessing: {
		models.ProcessCompleted,
		models.ProcessFailed,
	},
	models.ProcessCompleted: {},
	models.ProcessFailed:    {},
	models.ProcessCancelled: {},
	models.ProcessExpired:   {},
}

// CanTransition reports whether from may move to to
func CanTransition(from, to models.ProcessStatus) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when the move is not allowed
func ValidateTransition(from, to models.ProcessStatus) error {
	if !CanTransition(from, to) {
		return apperr.Wrap(apperr.ErrInvalidTransition, fmt.Errorf("%s -> %s", from, to))
	}
	return nil
}
