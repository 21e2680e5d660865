// Package docs Vehicle Tax API.
//
// Documentation of the Vehicle Tax API: vehicle tax assessment, account
// statements and PSE payments.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//     Host: vehicle-tax-api.herokuapp.com
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - bearer
//
//    SecurityDefinitions:
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/vehicle-tax-api/api"
	"github.com/linesmerrill/vehicle-tax-api/api/handlers"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/payments"
	templates "github.com/linesmerrill/vehicle-tax-api/templates/html"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse
//   503: healthResponse

// Shows the current health of the api and its database.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// Describes why a request failed.
// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}

// swagger:parameters consultVehicle vehicleStatement paymentHistory processDetail
type credentialsParams struct {
	// in:query
	Plate string `json:"plate"`
	// CC, CE, NIT or PP
	// in:query
	// required: true
	DocumentType string `json:"document_type"`
	// in:query
	// required: true
	DocumentNumber string `json:"document_number"`
}

// swagger:route POST /api/v1/auth/login auth login
// Exchanges an email and password for a bearer token.
// responses:
//   200: tokenResponse
//   401: errorResponse
//   403: errorResponse

// swagger:parameters login
type loginParams struct {
	// in:body
	Body handlers.LoginRequest
}

// A bearer token and the user it was issued to.
// swagger:response tokenResponse
type tokenResponseWrapper struct {
	// in:body
	Body api.Token
}

// swagger:route GET /api/v1/vehicles/consult vehicles consultVehicle
// Assesses a vehicle for the active fiscal period. The plate and owner
// document together authorise the lookup.
// responses:
//   200: assessmentResponse
//   400: errorResponse
//   404: errorResponse
//   503: errorResponse

// swagger:route GET /api/v1/vehicles/tax-calculation/{plate} vehicles taxCalculation
// Assesses any vehicle by plate for an authenticated caller.
// responses:
//   200: assessmentResponse
//   401: errorResponse
//   404: errorResponse

// The tax breakdown and standing of a vehicle.
// swagger:response assessmentResponse
type assessmentResponseWrapper struct {
	// in:body
	Body handlers.TaxAssessment
}

// swagger:route POST /api/v1/vehicles vehicles registerVehicle
// Registers a vehicle.
// responses:
//   201: vehicleResponse
//   400: errorResponse
//   409: errorResponse

// swagger:parameters registerVehicle
type registerVehicleParams struct {
	// in:body
	Body handlers.RegisterVehicleRequest
}

// A stored vehicle.
// swagger:response vehicleResponse
type vehicleResponseWrapper struct {
	// in:body
	Body models.Vehicle
}

// swagger:route GET /api/v1/vehicles/{plate}/payments vehicles paymentHistory
// Lists the payment attempts of a vehicle, newest first.
// responses:
//   200: paymentHistoryResponse
//   404: errorResponse

// A vehicle's payment attempts.
// swagger:response paymentHistoryResponse
type paymentHistoryResponseWrapper struct {
	// in:body
	Body handlers.PaymentHistoryResponse
}

// swagger:route GET /api/v1/vehicles/{plate}/process vehicles processDetail
// Shows the open payment of a vehicle next to its history.
// responses:
//   200: processDetailResponse
//   404: errorResponse

// Open and finished attempts of a vehicle.
// swagger:response processDetailResponse
type processDetailResponseWrapper struct {
	// in:body
	Body handlers.ProcessDetailResponse
}

// swagger:route GET /api/v1/vehicles/{plate}/statement vehicles vehicleStatement
// Returns the account statement of a vehicle.
// responses:
//   200: statementResponse
//   404: errorResponse

// The lines and totals of an account statement.
// swagger:response statementResponse
type statementResponseWrapper struct {
	// in:body
	Body templates.StatementData
}

// swagger:route POST /api/v1/vehicles/send-statement vehicles sendStatement
// Emails the account statement to the owner or to the given address.
// responses:
//   200: statementSentResponse
//   400: errorResponse
//   404: errorResponse
//   502: errorResponse

// swagger:parameters sendStatement
type sendStatementParams struct {
	// in:body
	Body handlers.SendStatementRequest
}

// Where the statement went.
// swagger:response statementSentResponse
type statementSentResponseWrapper struct {
	// in:body
	Body handlers.StatementSentResponse
}

// swagger:route GET /api/v1/payments/banks payments listBanks
// Lists the banks a PSE payment can be routed to.
// responses:
//   200: banksResponse

// The PSE bank directory.
// swagger:response banksResponse
type banksResponseWrapper struct {
	// in:body
	Body []payments.Bank
}

// swagger:route POST /api/v1/payments/initiate payments initiatePayment
// Starts a PSE payment for the active fiscal period. Repeating the request
// while the attempt is open returns the same attempt.
// responses:
//   200: paymentResponse
//   201: paymentResponse
//   400: errorResponse
//   404: errorResponse
//   409: errorResponse

// swagger:parameters initiatePayment
type initiatePaymentParams struct {
	// in:body
	Body handlers.InitiatePaymentRequest
}

// swagger:route POST /api/v1/payments/{reference}/complete payments completePayment
// Applies the PSE outcome to a pending payment.
// responses:
//   200: paymentResponse
//   404: errorResponse
//   409: errorResponse

// swagger:parameters completePayment
type completePaymentParams struct {
	// in:path
	Reference string `json:"reference"`
	// approved, rejected or failed
	// in:query
	Status string `json:"status"`
}

// swagger:route GET /api/v1/payments/{reference} payments paymentStatus
// Shows a payment attempt and its status log.
// responses:
//   200: paymentResponse
//   404: errorResponse

// The state of a payment attempt.
// swagger:response paymentResponse
type paymentResponseWrapper struct {
	// in:body
	Body handlers.PaymentResponse
}

// swagger:route GET /api/v1/admin/dashboard admin adminDashboard
// Counts payment attempts by status, in total and per vehicle.
// responses:
//   200: dashboardResponse
//   403: errorResponse

// Payment counts for administrators.
// swagger:response dashboardResponse
type dashboardResponseWrapper struct {
	// in:body
	Body models.Dashboard
}

// swagger:route GET /api/v1/admin/metrics admin adminMetrics
// Summarises request counts and latencies per route.
// responses:
//   200: metricsResponse

// Request metrics since startup.
// swagger:response metricsResponse
type metricsResponseWrapper struct {
	// in:body
	Body api.Summary
}

// swagger:route POST /api/v1/admin/fiscal-periods/{year}/activate admin activatePeriod
// Validates the rate table of a fiscal period and makes it the active one.
// responses:
//   200: periodResponse
//   400: errorResponse
//   404: errorResponse

// A fiscal period and its rate table.
// swagger:response periodResponse
type periodResponseWrapper struct {
	// in:body
	Body models.FiscalPeriod
}

// swagger:route POST /api/v1/admin/payments/{reference}/cancel admin cancelPayment
// Cancels an open payment attempt.
// responses:
//   200: paymentResponse
//   404: errorResponse
//   409: errorResponse

// swagger:parameters cancelPayment
type cancelPaymentParams struct {
	// in:body
	Body handlers.CancelPaymentRequest
}

// swagger:route GET /api/v1/admin/payments/{reference}/chain admin correctionChain
// Follows the corrections of a payment back to the first attempt.
// responses:
//   200: correctionChainResponse
//   404: errorResponse

// The attempts a correction replaced.
// swagger:response correctionChainResponse
type correctionChainResponseWrapper struct {
	// in:body
	Body handlers.CorrectionChainResponse
}
