package tax

import (
	"time"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

// StatusFor evaluates a vehicle's standing in period at now. Exempt vehicles
// stay exempt, a payment inside the period means up to date, and anything past
// the payment deadline is overdue.
func StatusFor(v models.Vehicle, period models.FiscalPeriod, now time.Time) models.TaxStatus {
	if v.TaxStatus == models.TaxStatusExempt {
		return models.TaxStatusExempt
	}
	if lp := v.LastPaymentDate; lp != nil && !lp.Before(period.StartDate) && !lp.After(endOfDay(period.EndDate)) {
		return models.TaxStatusUpToDate
	}
	if now.After(endOfDay(period.PaymentDeadline())) {
		return models.TaxStatusOverdue
	}
	return models.TaxStatusPending
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
