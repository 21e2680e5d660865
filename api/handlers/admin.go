package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/vehicle-tax-api/api"
	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/config"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/payments"
	"github.com/linesmerrill/vehicle-tax-api/tax"
)

// Admin exported for testing purposes
type Admin struct {
	Store    Store
	Payments *payments.Service
	Periods  tax.PeriodManager
	Metrics  *api.MetricsCollector
	Clock    clock.Clock
}

// DashboardHandler returns attempt counts per vehicle and state
func (a Admin) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	d, err := payments.Dashboard(ctx, a.Store, a.Clock.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, d)
}

// MetricsHandler returns the in-memory request metrics of this instance
func (a Admin) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, a.Metrics.Summary())
}

// ActivatePeriodHandler makes the period for {year} the active one
func (a Admin) ActivatePeriodHandler(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		config.ErrorStatus("invalid fiscal year", http.StatusBadRequest, w, err)
		return
	}
	p, err := a.Periods.Activate(r.Context(), year)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

// CancelPaymentRequest is the optional body of a cancellation
type CancelPaymentRequest struct {
	Reason string `json:"reason"`
}

// CancelPaymentHandler cancels a pending attempt on behalf of the caller
func (a Admin) CancelPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req CancelPaymentRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	p, _ := api.PrincipalFrom(r.Context())
	actor := p.ID
	res, err := a.Payments.Cancel(r.Context(), mux.Vars(r)["reference"], &actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, paymentResponse(res))
}

// CorrectionChainResponse is an attempt and the attempts it corrects
type CorrectionChainResponse struct {
	Reference string                  `json:"reference"`
	Length    int                     `json:"length"`
	Chain     []models.PaymentAttempt `json:"chain"`
}

// CorrectionChainHandler walks the corrections behind {reference}
func (a Admin) CorrectionChainHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	ref := mux.Vars(r)["reference"]
	chain, err := a.Payments.CorrectionChain(ctx, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, CorrectionChainResponse{Reference: ref, Length: len(chain), Chain: chain})
}
