package notify

import (
	"context"
	"fmt"

	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/tax"
	templates "github.com/linesmerrill/vehicle-tax-api/templates/html"
)

const dateLayout = "2006-01-02"

// Statement is the account statement of one vehicle for one fiscal period
type Statement struct {
	Owner     models.User
	Vehicle   models.Vehicle
	Period    models.FiscalPeriod
	Breakdown tax.Breakdown
	TaxStatus models.TaxStatus
}

// Data flattens s for the email templates
func (s Statement) Data() templates.StatementData {
	d := templates.StatementData{
		OwnerName: s.Owner.FullName,
		Plate:     s.Vehicle.Plate,
		Vehicle:   fmt.Sprintf("%s %s %d", s.Vehicle.Brand, s.Vehicle.Model, s.Vehicle.Year),
		TaxYear:   s.Period.Year,
		TaxStatus: string(s.TaxStatus),
		DueDate:   s.Period.PaymentDeadline().Format(dateLayout),
		Lines: []templates.Row{
			{Label: "Base tax", Value: s.Breakdown.BaseTax.StringFixed(2)},
			{Label: "Traffic-light fee", Value: s.Breakdown.TrafficLightFee.StringFixed(2)},
		},
		Total:           s.Breakdown.TotalAmount.StringFixed(2),
		LastPaymentDate: "none",
	}
	if s.Vehicle.LastPaymentDate != nil {
		d.LastPaymentDate = s.Vehicle.LastPaymentDate.Format(dateLayout)
	}
	if disc := s.Breakdown.Discount; disc != nil && disc.Percentage > 0 {
		d.Discount = fmt.Sprintf("%s discount of %d%% applied, %s saved.",
			disc.Type, disc.Percentage, disc.AmountSaved.StringFixed(2))
	}
	return d
}

// SendStatement emails s to the owner's contact address
func SendStatement(ctx context.Context, m Mailer, s Statement) error {
	d := s.Data()
	return m.Send(ctx, Message{
		ToName:    s.Owner.FullName,
		ToAddress: s.Owner.ContactEmail(),
		Subject:   fmt.Sprintf("Vehicle tax statement %s %d", s.Vehicle.Plate, s.Period.Year),
		PlainText: templates.StatementText(d),
		HTML:      templates.RenderStatement(d),
	})
}
