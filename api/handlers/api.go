package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/vehicle-tax-api/api"
	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/config"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/notify"
	"github.com/linesmerrill/vehicle-tax-api/payments"
	"github.com/linesmerrill/vehicle-tax-api/tax"
	"github.com/linesmerrill/vehicle-tax-api/vehicles"
)

// Store is everything the handlers read and write
type Store interface {
	payments.Store
	payments.DashboardStore
	vehicles.LookupStore
	vehicles.RegistrationStore
	tax.PeriodStore
	api.UserStore
	FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// DefaultRequestTimeout bounds requests when no timeout is configured
const DefaultRequestTimeout = 30 * time.Second

// App stores the router and its collaborators, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Store    Store
	Payments *payments.Service
	Auth     *api.Auth
	Mailer   notify.Mailer
	Hub      *notify.Hub
	Metrics  *api.MetricsCollector
	Clock    clock.Clock
	// DB is pinged by the health check when set
	DB api.Pinger
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Clock == nil {
		a.Clock = clock.Real{}
	}
	if a.Metrics == nil {
		a.Metrics = api.NewMetricsCollector()
	}
	if a.Mailer == nil {
		a.Mailer = notify.Nop{}
	}
	calc := tax.Calculator{Policy: tax.DiscountPolicy{Clock: a.Clock}}
	finder := vehicles.Finder{Store: a.Store}

	v := Vehicle{Store: a.Store, Finder: finder, Calculator: calc, Payments: a.Payments, Mailer: a.Mailer, Clock: a.Clock,
		Registrar: vehicles.Registrar{Store: a.Store, Clock: a.Clock}}
	p := Payment{Store: a.Store, Finder: finder, Calculator: calc, Payments: a.Payments}
	au := Auth{Auth: a.Auth}
	ad := Admin{Store: a.Store, Payments: a.Payments, Periods: tax.PeriodManager{Store: a.Store}, Metrics: a.Metrics, Clock: a.Clock}

	r := mux.NewRouter()
	r.Use(api.RequestLogger(a.Metrics))

	// healthchex
	r.HandleFunc("/health", api.HealthHandler(a.DB)).Methods("GET")

	// the live feed is registered before the timeout middleware, a hijacked
	// connection cannot be buffered
	if a.Hub != nil {
		r.Handle("/ws/payments", a.Auth.Middleware(api.RequireAdmin(http.HandlerFunc(a.Hub.ServeWS)))).Methods("GET")
	}

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	timeout := a.Config.RequestTimeout()
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	apiCreate.Use(api.TimeoutMiddleware(timeout))
	secured := a.Auth.Middleware
	admin := func(h http.HandlerFunc) http.Handler { return secured(api.RequireAdmin(h)) }

	apiCreate.Handle("/auth/login", http.HandlerFunc(au.LoginHandler)).Methods("POST")
	apiCreate.Handle("/auth/test-token", secured(http.HandlerFunc(au.TestTokenHandler))).Methods("POST")
	apiCreate.Handle("/auth/logout", secured(http.HandlerFunc(au.LogoutHandler))).Methods("DELETE")

	apiCreate.Handle("/vehicles/consult", http.HandlerFunc(v.ConsultHandler)).Methods("GET")
	apiCreate.Handle("/vehicles/send-statement", http.HandlerFunc(v.SendStatementHandler)).Methods("POST")
	apiCreate.Handle("/vehicles/tax-calculation/{plate}", secured(http.HandlerFunc(v.TaxCalculationHandler))).Methods("GET")
	apiCreate.Handle("/vehicles", secured(http.HandlerFunc(v.RegisterVehicleHandler))).Methods("POST")
	apiCreate.Handle("/vehicles/{plate}/payments", http.HandlerFunc(v.PaymentHistoryHandler)).Methods("GET")
	apiCreate.Handle("/vehicles/{plate}/process", http.HandlerFunc(v.ProcessDetailHandler)).Methods("GET")
	apiCreate.Handle("/vehicles/{plate}/statement", http.HandlerFunc(v.StatementHandler)).Methods("GET")

	apiCreate.Handle("/payments/banks", http.HandlerFunc(p.BanksHandler)).Methods("GET")
	apiCreate.Handle("/payments/initiate", http.HandlerFunc(p.InitiateHandler)).Methods("POST")
	apiCreate.Handle("/payments/{reference}/complete", http.HandlerFunc(p.CompleteHandler)).Methods("POST")
	apiCreate.Handle("/payments/{reference}", http.HandlerFunc(p.StatusHandler)).Methods("GET")

	apiCreate.Handle("/admin/dashboard", admin(ad.DashboardHandler)).Methods("GET")
	apiCreate.Handle("/admin/metrics", admin(ad.MetricsHandler)).Methods("GET")
	apiCreate.Handle("/admin/fiscal-periods/{year}/activate", admin(ad.ActivatePeriodHandler)).Methods("POST")
	apiCreate.Handle("/admin/payments/{reference}/cancel", admin(ad.CancelPaymentHandler)).Methods("POST")
	apiCreate.Handle("/admin/payments/{reference}/chain", admin(ad.CorrectionChainHandler)).Methods("GET")

	return r
}

// Initialize builds the router
func (a *App) Initialize() {
	a.Router = a.New()
}

// writeError maps err onto its status code and caller-visible reason
func writeError(w http.ResponseWriter, err error) {
	config.ErrorStatus(apperr.ReasonOf(err), apperr.HTTPStatus(err), w, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return false
	}
	return true
}

// credentials are the plate and owner document that authorise a public lookup
type credentials struct {
	Plate          string `json:"plate"`
	DocumentType   string `json:"documentType"`
	DocumentNumber string `json:"documentNumber"`
}

// queryCredentials reads the document from the query string and the plate from
// the route when present
func queryCredentials(r *http.Request) credentials {
	q := r.URL.Query()
	c := credentials{
		Plate:          q.Get("plate"),
		DocumentType:   q.Get("document_type"),
		DocumentNumber: q.Get("document_number"),
	}
	if p, ok := mux.Vars(r)["plate"]; ok {
		c.Plate = p
	}
	return c
}
