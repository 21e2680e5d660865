package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/linesmerrill/vehicle-tax-api/api"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/payments"
	"github.com/linesmerrill/vehicle-tax-api/tax"
	"github.com/linesmerrill/vehicle-tax-api/vehicles"
)

// Payment exported for testing purposes
type Payment struct {
	Store      Store
	Finder     vehicles.Finder
	Calculator tax.Calculator
	Payments   *payments.Service
}

// PaymentResponse is the state of one attempt after a request
type PaymentResponse struct {
	Reference     string                         `json:"reference"`
	InvoiceNumber string                         `json:"invoiceNumber"`
	Amount        decimal.Decimal                `json:"amount"`
	Status        models.ProcessStatus           `json:"status"`
	Outcome       models.Outcome                 `json:"outcome"`
	RedirectURL   string                         `json:"redirectUrl,omitempty"`
	Message       string                         `json:"message"`
	Replayed      bool                           `json:"replayed"`
	Payment       models.PaymentAttempt          `json:"payment"`
	Log           []models.PaymentStatusLogEntry `json:"log,omitempty"`
}

func paymentResponse(res *payments.Result) PaymentResponse {
	a := res.Attempt
	return PaymentResponse{
		Reference:     a.Reference,
		InvoiceNumber: a.InvoiceNumber,
		Amount:        a.Amount,
		Status:        a.ProcessStatus,
		Outcome:       a.Status(),
		RedirectURL:   res.RedirectURL,
		Message:       res.Message,
		Replayed:      res.Replayed,
		Payment:       a,
	}
}

// BanksHandler lists the banks a payment can be routed to
func (p Payment) BanksHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, payments.Banks)
}

// InitiatePaymentRequest is the body of a payment initiation
type InitiatePaymentRequest struct {
	credentials
	BankCode string `json:"bankCode"`
	Email    string `json:"email"`
	// CorrectionOf is the reference of a finished attempt being replaced
	CorrectionOf string `json:"correctionOf,omitempty"`
}

// InitiateHandler starts a PSE payment for the full tax of the vehicle. A
// repeated request gets the existing attempt back with 200.
func (p Payment) InitiateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req InitiatePaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	vehicle, _, err := p.Finder.Find(ctx, req.Plate, req.DocumentType, req.DocumentNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	period, err := p.Store.ActivePeriod(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := p.Calculator.Compute(*vehicle, *period, period.Brackets)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := p.Payments.Initiate(ctx, payments.InitiateRequest{
		VehicleID:    vehicle.ID,
		Amount:       b.TotalAmount,
		BankCode:     req.BankCode,
		ContactEmail: req.Email,
		CorrectionOf: req.CorrectionOf,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	api.WriteJSON(w, status, paymentResponse(res))
}

// CompleteHandler is the bank callback. status is SUCCESS unless the bank
// reports a failure.
func (p Payment) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	reference := mux.Vars(r)["reference"]
	bankStatus := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	success, err := payments.ParseOutcome(bankStatus)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := p.Payments.Complete(r.Context(), reference, success, bankStatus)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, paymentResponse(res))
}

// StatusHandler returns an attempt and its status log
func (p Payment) StatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := p.Payments.Status(ctx, mux.Vars(r)["reference"])
	if err != nil {
		writeError(w, err)
		return
	}
	out := paymentResponse(&payments.Result{Attempt: res.Attempt, Message: res.Message})
	out.Log = res.Log
	api.WriteJSON(w, http.StatusOK, out)
}
