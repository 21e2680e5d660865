package notify

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/payments"
	templates "github.com/linesmerrill/vehicle-tax-api/templates/html"
)

// VehicleFinder resolves the vehicles a receipt refers to
type VehicleFinder interface {
	FindVehiclesByID(ctx context.Context, ids []primitive.ObjectID) ([]models.Vehicle, error)
}

// ReceiptNotifier emails a receipt to the payer when an attempt completes
type ReceiptNotifier struct {
	Mailer   Mailer
	Vehicles VehicleFinder
}

// PaymentChanged ignores every transition except completion
func (n ReceiptNotifier) PaymentChanged(ctx context.Context, ev models.PaymentEvent) {
	if ev.Type != models.ProcessCompleted || ev.Attempt.ContactEmail == "" {
		return
	}
	a := ev.Attempt
	data := templates.ReceiptData{
		Reference:     a.Reference,
		InvoiceNumber: a.InvoiceNumber,
		TaxYear:       a.TaxYear,
		Amount:        a.Amount.StringFixed(2),
		BankName:      a.BankCode,
	}
	if b, ok := payments.LookupBank(a.BankCode); ok {
		data.BankName = b.Name
	}
	if a.PaidAt != nil {
		data.PaidAt = a.PaidAt.Format(time.RFC1123)
	}
	vs, err := n.Vehicles.FindVehiclesByID(ctx, []primitive.ObjectID{a.VehicleID})
	if err != nil {
		zap.S().Warnw("receipt without plate, vehicle lookup failed",
			"reference", a.Reference,
			"error", err)
	} else if len(vs) > 0 {
		data.Plate = vs[0].Plate
	}

	err = n.Mailer.Send(ctx, Message{
		ToAddress: a.ContactEmail,
		Subject:   "Vehicle tax payment receipt " + a.InvoiceNumber,
		PlainText: templates.ReceiptText(data),
		HTML:      templates.RenderReceipt(data),
	})
	if err != nil {
		zap.S().Errorw("failed to send payment receipt",
			"reference", a.Reference,
			"error", err)
	}
}
