package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/vehicle-tax-api/api/handlers"
	"github.com/linesmerrill/vehicle-tax-api/models"
	templates "github.com/linesmerrill/vehicle-tax-api/templates/html"
)

const consultQuery = "plate=abc-123&document_type=cc&document_number=1020304050"

func TestVehicle_ConsultHandler(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "GET", "/api/v1/vehicles/consult?"+consultQuery, nil, "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got handlers.TaxAssessment
	decode(t, rr, &got)
	assert.Equal(t, "ABC123", got.Vehicle.Plate)
	assert.Equal(t, "Ana Gomez", got.OwnerName)
	assert.Equal(t, 2024, got.TaxYear)
	assert.Equal(t, "750000", got.Breakdown.BaseTax.String())
	assert.Equal(t, "837000", got.Breakdown.TotalAmount.String())
	assert.Equal(t, models.TaxStatusPending, got.TaxStatus)
	assert.Nil(t, got.Breakdown.Discount)
}

func TestVehicle_ConsultHandlerErrors(t *testing.T) {
	ta := newTestApp(t)

	tests := []struct {
		name   string
		query  string
		status int
		reason string
	}{
		{"wrong document", "plate=ABC123&document_type=CC&document_number=111", http.StatusNotFound, "vehicle not found"},
		{"wrong plate", "plate=XYZ987&document_type=CC&document_number=1020304050", http.StatusNotFound, "vehicle not found"},
		{"malformed document", "plate=ABC123&document_type=CC&document_number=12AB", http.StatusBadRequest, "invalid document number"},
		{"unknown document type", "plate=ABC123&document_type=XX&document_number=1", http.StatusBadRequest, "unknown document type"},
		{"malformed plate", "plate=A1&document_type=CC&document_number=1020304050", http.StatusBadRequest, "invalid plate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ta.do(t, "GET", "/api/v1/vehicles/consult?"+tt.query, nil, "")
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.reason, errorReason(t, rr))
		})
	}
}

func TestVehicle_TaxCalculationHandler(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login(t, ta.owner.Email)

	unauth := ta.do(t, "GET", "/api/v1/vehicles/tax-calculation/ABC123", nil, "")
	assert.Equal(t, http.StatusUnauthorized, unauth.Code)

	rr := ta.do(t, "GET", "/api/v1/vehicles/tax-calculation/abc123", nil, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got handlers.TaxAssessment
	decode(t, rr, &got)
	assert.Equal(t, "837000", got.Breakdown.TotalAmount.String())
}

func TestVehicle_TaxCalculationHandlerInvalidPlate(t *testing.T) {
	ta := newTestApp(t)
	v := handlers.Vehicle{Store: ta.store}
	req := httptest.NewRequest("GET", "/api/v1/vehicles/tax-calculation/1", nil)
	req = mux.SetURLVars(req, map[string]string{"plate": "1"})
	rr := httptest.NewRecorder()

	http.HandlerFunc(v.TaxCalculationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid plate", errorReason(t, rr))
}

func TestVehicle_RegisterVehicleHandler(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login(t, ta.owner.Email)

	rr := ta.do(t, "POST", "/api/v1/vehicles", map[string]interface{}{
		"plate":              "xyz-12a",
		"brand":              "Yamaha",
		"model":              "NMAX",
		"year":               2023,
		"type":               "motorcycle",
		"commercialValue":    "9000000",
		"engineDisplacement": 125,
		"isElectric":         true,
	}, token)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var got models.Vehicle
	decode(t, rr, &got)
	assert.Equal(t, "XYZ12A", got.Plate)
	assert.Equal(t, ta.owner.ID, got.OwnerID)
	assert.True(t, got.TrafficLightFeeExempt)
	assert.Equal(t, models.DiscountElectricPrivate, got.DiscountType)
	assert.NotNil(t, got.DiscountExpiry)

	dup := ta.do(t, "POST", "/api/v1/vehicles", map[string]interface{}{
		"plate": "XYZ12A", "year": 2023, "type": "motorcycle", "commercialValue": "1",
	}, token)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "plate already registered", errorReason(t, dup))
}

func TestVehicle_RegisterVehicleHandlerValidation(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login(t, ta.admin.Email)

	tests := []struct {
		name   string
		body   map[string]interface{}
		reason string
	}{
		{"electric and hybrid", map[string]interface{}{"plate": "DEF456", "year": 2020, "type": "particular", "commercialValue": "1", "isElectric": true, "isHybrid": true}, "vehicle cannot be both electric and hybrid"},
		{"future year", map[string]interface{}{"plate": "DEF456", "year": 2999, "type": "particular", "commercialValue": "1"}, "model year cannot be in the future"},
		{"negative value", map[string]interface{}{"plate": "DEF456", "year": 2020, "type": "particular", "commercialValue": "-1"}, "commercial value cannot be negative"},
		{"bad type", map[string]interface{}{"plate": "DEF456", "year": 2020, "type": "truck", "commercialValue": "1"}, "invalid vehicle type"},
		{"free-text status", map[string]interface{}{"plate": "DEF456", "year": 2020, "type": "particular", "commercialValue": "1", "taxStatus": "PAID"}, "invalid tax status"},
		{"bad owner document", map[string]interface{}{"plate": "DEF456", "year": 2020, "type": "particular", "commercialValue": "1", "ownerDocumentType": "CC", "ownerDocumentNumber": "x"}, "invalid document number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ta.do(t, "POST", "/api/v1/vehicles", tt.body, token)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.reason, errorReason(t, rr))
		})
	}
}

func TestVehicle_RegisterVehicleHandlerForOwnerDocument(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login(t, ta.admin.Email)

	rr := ta.do(t, "POST", "/api/v1/vehicles", map[string]interface{}{
		"plate": "DEF456", "year": 2020, "type": "public", "commercialValue": "80000000",
		"ownerDocumentType": "cc", "ownerDocumentNumber": ta.owner.DocumentNumber,
	}, token)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var got models.Vehicle
	decode(t, rr, &got)
	assert.Equal(t, ta.owner.ID, got.OwnerID)
}

func TestVehicle_PaymentHistoryAndProcessDetail(t *testing.T) {
	ta := newTestApp(t)
	initiate(t, ta)

	rr := ta.do(t, "GET", "/api/v1/vehicles/ABC123/payments?document_type=CC&document_number=1020304050", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var history handlers.PaymentHistoryResponse
	decode(t, rr, &history)
	assert.Len(t, history.Payments, 1)
	assert.Nil(t, history.LastCompleted)

	rr = ta.do(t, "GET", "/api/v1/vehicles/ABC123/process?document_type=CC&document_number=1020304050", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var detail handlers.ProcessDetailResponse
	decode(t, rr, &detail)
	assert.Len(t, detail.Pending, 1)
	assert.Len(t, detail.History, 1)

	denied := ta.do(t, "GET", "/api/v1/vehicles/ABC123/payments?document_type=CC&document_number=555", nil, "")
	assert.Equal(t, http.StatusNotFound, denied.Code)
}

func TestVehicle_PaymentHistoryEmpty(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "GET", "/api/v1/vehicles/ABC123/payments?document_type=CC&document_number=1020304050", nil, "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"payments":[]`)
}

func TestVehicle_StatementHandler(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "GET", "/api/v1/vehicles/ABC123/statement?document_type=CC&document_number=1020304050", nil, "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got templates.StatementData
	decode(t, rr, &got)
	assert.Equal(t, "837000.00", got.Total)
	assert.Equal(t, "2024-06-28", got.DueDate)
	assert.Equal(t, "pending", got.TaxStatus)
}

func TestVehicle_SendStatementHandler(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "POST", "/api/v1/vehicles/send-statement", map[string]string{
		"plate": "ABC123", "documentType": "CC", "documentNumber": "1020304050", "email": "Ana <other@example.com>",
	}, "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got handlers.StatementSentResponse
	decode(t, rr, &got)
	assert.Equal(t, "other@example.com", got.SentTo)
	require.Len(t, ta.mail.sent, 1)
	assert.Equal(t, "other@example.com", ta.mail.sent[0].ToAddress)
	assert.Contains(t, ta.mail.sent[0].HTML, "837000.00")
}

func TestVehicle_SendStatementHandlerInvalidEmail(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "POST", "/api/v1/vehicles/send-statement", map[string]string{
		"plate": "ABC123", "documentType": "CC", "documentNumber": "1020304050", "email": "not-an-email",
	}, "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid email", errorReason(t, rr))
	assert.Empty(t, ta.mail.sent)
}
