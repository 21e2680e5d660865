package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/vehicle-tax-api/api"
	"github.com/linesmerrill/vehicle-tax-api/api/handlers"
	"github.com/linesmerrill/vehicle-tax-api/api/testhelpers"
	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/config"
	"github.com/linesmerrill/vehicle-tax-api/locks"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/notify"
	"github.com/linesmerrill/vehicle-tax-api/payments"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	password   = "s3cret-pass"
)

var now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (o *outbox) Send(_ context.Context, m notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

type testApp struct {
	app     *handlers.App
	store   *testhelpers.MemoryStore
	mail    *outbox
	owner   models.User
	admin   models.User
	vehicle models.Vehicle
	period  models.FiscalPeriod
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	ta := &testApp{store: testhelpers.NewMemoryStore(), mail: &outbox{}}
	ta.owner = models.User{
		ID:             primitive.NewObjectID(),
		Email:          "owner@example.com",
		FullName:       "Ana Gomez",
		PasswordHash:   string(hash),
		IsActive:       true,
		DocumentType:   "CC",
		DocumentNumber: "1020304050",
	}
	ta.admin = models.User{
		ID:           primitive.NewObjectID(),
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
		IsSuperadmin: true,
		DocumentType: "CC", DocumentNumber: "99",
	}
	ta.vehicle = models.Vehicle{
		ID:               primitive.NewObjectID(),
		Plate:            "ABC123",
		Brand:            "Mazda",
		Model:            "3",
		Year:             2020,
		Type:             models.VehicleTypeParticular,
		CommercialValue:  decimal.RequireFromString("50000000"),
		RegistrationDate: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
		OwnerID:          ta.owner.ID,
		TaxStatus:        models.TaxStatusPending,
	}
	ta.period = models.FiscalPeriod{
		ID:              primitive.NewObjectID(),
		Year:            2024,
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		DueDate:         time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		TrafficLightFee: decimal.RequireFromString("87000"),
		Active:          true,
		Brackets: []models.RateBracket{
			{VehicleType: models.VehicleTypeParticular, Rate: decimal.RequireFromString("1.5")},
			{VehicleType: models.VehicleTypeMotorcycle, Rate: decimal.RequireFromString("1.5")},
			{VehicleType: models.VehicleTypePublic, Rate: decimal.RequireFromString("0.5")},
		},
	}
	ta.store.PutUser(ta.owner)
	ta.store.PutUser(ta.admin)
	ta.store.PutVehicle(ta.vehicle)
	ta.store.PutPeriod(ta.period)

	clk := clock.NewFixed(now)
	auth := api.NewAuth(ta.store, testSecret, 20*time.Minute)
	svc := payments.NewService(ta.store, locks.NewLocal())
	svc.Clock = clk
	ta.app = &handlers.App{
		Config:   config.Config{RequestTimeoutSeconds: 5},
		Store:    ta.store,
		Payments: svc,
		Auth:     auth,
		Mailer:   ta.mail,
		Hub:      notify.NewHub(),
		Clock:    clk,
	}
	ta.app.Initialize()
	return ta
}

func (ta *testApp) do(t *testing.T, method, url string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ta.app.Router.ServeHTTP(rr, req)
	return rr
}

func (ta *testApp) login(t *testing.T, email string) string {
	t.Helper()
	rr := ta.do(t, "POST", "/api/v1/auth/login", handlers.LoginRequest{Email: email, Password: password}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tok api.Token
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	return tok.AccessToken
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func errorReason(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var e models.ErrorMessageResponse
	decode(t, rr, &e)
	return e.Response.Message
}

func TestUnknownRoute(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "GET", "/asdf", nil, "")

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "GET", "/health", nil, "")

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "alive")
}
