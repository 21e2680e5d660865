package handlers

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/api"
	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/config"
	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/notify"
	"github.com/linesmerrill/vehicle-tax-api/payments"
	"github.com/linesmerrill/vehicle-tax-api/tax"
	templates "github.com/linesmerrill/vehicle-tax-api/templates/html"
	"github.com/linesmerrill/vehicle-tax-api/vehicles"
)

// Vehicle exported for testing purposes
type Vehicle struct {
	Store      Store
	Finder     vehicles.Finder
	Registrar  vehicles.Registrar
	Calculator tax.Calculator
	Payments   *payments.Service
	Mailer     notify.Mailer
	Clock      clock.Clock
}

// TaxAssessment is a vehicle's breakdown and standing in the active period
type TaxAssessment struct {
	Vehicle         models.Vehicle   `json:"vehicle"`
	OwnerName       string           `json:"ownerName,omitempty"`
	TaxYear         int              `json:"taxYear"`
	Breakdown       tax.Breakdown    `json:"breakdown"`
	TaxStatus       models.TaxStatus `json:"taxStatus"`
	DueDate         time.Time        `json:"dueDate"`
	LastPaymentDate *time.Time       `json:"lastPaymentDate,omitempty"`
}

// PaymentHistoryResponse lists a vehicle's attempts newest first
type PaymentHistoryResponse struct {
	Plate         string                  `json:"plate"`
	Payments      []models.PaymentAttempt `json:"payments"`
	LastCompleted *models.PaymentAttempt  `json:"lastCompleted,omitempty"`
}

// ProcessDetailResponse is the open work and the history of a vehicle
type ProcessDetailResponse struct {
	Plate   string                  `json:"plate"`
	Pending []models.PaymentAttempt `json:"pending"`
	History []models.PaymentAttempt `json:"history"`
}

// assess computes the breakdown of v in the active period
func (v Vehicle) assess(ctx context.Context, vehicle models.Vehicle, owner *models.User) (*TaxAssessment, error) {
	period, err := v.Store.ActivePeriod(ctx)
	if err != nil {
		return nil, err
	}
	b, err := v.Calculator.Compute(vehicle, *period, period.Brackets)
	if err != nil {
		return nil, err
	}
	a := &TaxAssessment{
		Vehicle:         vehicle,
		TaxYear:         period.Year,
		Breakdown:       b,
		TaxStatus:       tax.StatusFor(vehicle, *period, v.Clock.Now()),
		DueDate:         period.PaymentDeadline(),
		LastPaymentDate: vehicle.LastPaymentDate,
	}
	if owner != nil {
		a.OwnerName = owner.FullName
	}
	return a, nil
}

// ConsultHandler returns a vehicle and its tax for whoever knows its plate and
// its owner's document
func (v Vehicle) ConsultHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	c := queryCredentials(r)
	vehicle, owner, err := v.Finder.Find(ctx, c.Plate, c.DocumentType, c.DocumentNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := v.assess(ctx, *vehicle, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, a)
}

// TaxCalculationHandler returns the tax of any vehicle by plate
func (v Vehicle) TaxCalculationHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	plate, err := vehicles.NormalizePlate(mux.Vars(r)["plate"])
	if err != nil {
		writeError(w, err)
		return
	}
	vehicle, err := v.Store.FindVehicleByPlate(ctx, plate)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := v.assess(ctx, *vehicle, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, a)
}

// RegisterVehicleRequest is the body of a vehicle registration
type RegisterVehicleRequest struct {
	Plate              string          `json:"plate"`
	Brand              string          `json:"brand"`
	Model              string          `json:"model"`
	Line               string          `json:"line"`
	Year               int             `json:"year"`
	City               string          `json:"city"`
	Type               string          `json:"type"`
	CommercialValue    decimal.Decimal `json:"commercialValue"`
	EngineDisplacement int             `json:"engineDisplacement"`
	IsElectric         bool            `json:"isElectric"`
	IsHybrid           bool            `json:"isHybrid"`
	IsNew              bool            `json:"isNew"`
	RegistrationDate   *time.Time      `json:"registrationDate"`
	TaxStatus          string          `json:"taxStatus"`
	// OwnerDocumentType and OwnerDocumentNumber pick the owner; without them
	// the vehicle belongs to the caller
	OwnerDocumentType   string `json:"ownerDocumentType"`
	OwnerDocumentNumber string `json:"ownerDocumentNumber"`
}

// RegisterVehicleHandler stores a new vehicle
func (v Vehicle) RegisterVehicleHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var req RegisterVehicleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ownerID, err := v.ownerFor(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	vehicle := models.Vehicle{
		Plate:              req.Plate,
		Brand:              req.Brand,
		Model:              req.Model,
		Line:               req.Line,
		Year:               req.Year,
		City:               req.City,
		Type:               models.VehicleType(req.Type),
		CommercialValue:    req.CommercialValue,
		EngineDisplacement: req.EngineDisplacement,
		IsElectric:         req.IsElectric,
		IsHybrid:           req.IsHybrid,
		IsNew:              req.IsNew,
		TaxStatus:          models.TaxStatus(req.TaxStatus),
		OwnerID:            ownerID,
	}
	if req.RegistrationDate != nil {
		vehicle.RegistrationDate = req.RegistrationDate.UTC()
	}
	created, err := v.Registrar.Register(ctx, vehicle)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

func (v Vehicle) ownerFor(ctx context.Context, req RegisterVehicleRequest) (primitive.ObjectID, error) {
	if req.OwnerDocumentType != "" || req.OwnerDocumentNumber != "" {
		if err := vehicles.ValidateDocument(req.OwnerDocumentType, req.OwnerDocumentNumber); err != nil {
			return primitive.NilObjectID, err
		}
		docType := strings.ToUpper(strings.TrimSpace(req.OwnerDocumentType))
		owner, err := v.Store.FindOwnerByDocument(ctx, docType, req.OwnerDocumentNumber)
		if err != nil {
			return primitive.NilObjectID, err
		}
		return owner.ID, nil
	}
	p, ok := api.PrincipalFrom(ctx)
	if !ok {
		return primitive.NilObjectID, apperr.ErrOwnerNotFound
	}
	return p.ID, nil
}

// PaymentHistoryHandler lists every attempt of a vehicle
func (v Vehicle) PaymentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	c := queryCredentials(r)
	vehicle, _, err := v.Finder.Find(ctx, c.Plate, c.DocumentType, c.DocumentNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := v.Payments.History(ctx, vehicle.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []models.PaymentAttempt{}
	}
	api.WriteJSON(w, http.StatusOK, PaymentHistoryResponse{
		Plate:         vehicle.Plate,
		Payments:      history,
		LastCompleted: payments.LastCompleted(history),
	})
}

// ProcessDetailHandler returns the open attempts, by due date, and the history
func (v Vehicle) ProcessDetailHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	c := queryCredentials(r)
	vehicle, _, err := v.Finder.Find(ctx, c.Plate, c.DocumentType, c.DocumentNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	pending, err := v.Payments.Pending(ctx, vehicle.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := v.Payments.History(ctx, vehicle.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if pending == nil {
		pending = []models.PaymentAttempt{}
	}
	if history == nil {
		history = []models.PaymentAttempt{}
	}
	api.WriteJSON(w, http.StatusOK, ProcessDetailResponse{Plate: vehicle.Plate, Pending: pending, History: history})
}

func (v Vehicle) statement(ctx context.Context, c credentials) (*notify.Statement, error) {
	vehicle, owner, err := v.Finder.Find(ctx, c.Plate, c.DocumentType, c.DocumentNumber)
	if err != nil {
		return nil, err
	}
	period, err := v.Store.ActivePeriod(ctx)
	if err != nil {
		return nil, err
	}
	b, err := v.Calculator.Compute(*vehicle, *period, period.Brackets)
	if err != nil {
		return nil, err
	}
	return &notify.Statement{
		Owner:     *owner,
		Vehicle:   *vehicle,
		Period:    *period,
		Breakdown: b,
		TaxStatus: tax.StatusFor(*vehicle, *period, v.Clock.Now()),
	}, nil
}

// StatementHandler returns the account statement data
func (v Vehicle) StatementHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	s, err := v.statement(ctx, queryCredentials(r))
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, s.Data())
}

// SendStatementRequest is the body of a statement email request
type SendStatementRequest struct {
	credentials
	// Email overrides the owner's contact address
	Email string `json:"email"`
}

// SendStatementHandler emails the account statement to the owner
func (v Vehicle) SendStatementHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var req SendStatementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, err := v.statement(ctx, req.credentials)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Email != "" {
		addr, err := mail.ParseAddress(req.Email)
		if err != nil {
			writeError(w, apperr.Wrap(apperr.ErrInvalidEmail, err))
			return
		}
		s.Owner.NotificationEmail = addr.Address
	}
	if err := notify.SendStatement(ctx, v.Mailer, *s); err != nil {
		config.ErrorStatus("failed to send statement", http.StatusBadGateway, w, err)
		return
	}
	zap.S().Infow("statement sent",
		"plate", s.Vehicle.Plate,
		"taxYear", s.Period.Year)
	api.WriteJSON(w, http.StatusOK, StatementSentResponse{
		Message:   "statement sent",
		SentTo:    s.Owner.ContactEmail(),
		Statement: s.Data(),
	})
}

// StatementSentResponse confirms a statement email
type StatementSentResponse struct {
	Message   string                  `json:"message"`
	SentTo    string                  `json:"sentTo"`
	Statement templates.StatementData `json:"statement"`
}
