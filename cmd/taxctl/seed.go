package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/linesmerrill/vehicle-tax-api/models"
	"github.com/linesmerrill/vehicle-tax-api/tax"
	"github.com/linesmerrill/vehicle-tax-api/vehicles"
)

const dateLayout = "2006-01-02"

// Fixtures is the layout of a seed file
type Fixtures struct {
	DocumentTypes []DocumentTypeFixture `yaml:"documentTypes"`
	Owners        []OwnerFixture        `yaml:"owners"`
	FiscalPeriods []PeriodFixture       `yaml:"fiscalPeriods"`
	Vehicles      []VehicleFixture      `yaml:"vehicles"`
}

// DocumentTypeFixture seeds one accepted identity document
type DocumentTypeFixture struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// OwnerFixture seeds a user. Password is hashed on load; PasswordHash is
// stored as is.
type OwnerFixture struct {
	Email             string `yaml:"email"`
	FullName          string `yaml:"fullName"`
	Password          string `yaml:"password"`
	PasswordHash      string `yaml:"passwordHash"`
	Superadmin        bool   `yaml:"superadmin"`
	DocumentType      string `yaml:"documentType"`
	DocumentNumber    string `yaml:"documentNumber"`
	Phone             string `yaml:"phone"`
	City              string `yaml:"city"`
	NotificationEmail string `yaml:"notificationEmail"`
}

// PeriodFixture seeds a fiscal period and its rate table. Money is written as
// strings to keep it exact.
type PeriodFixture struct {
	Year            int              `yaml:"year"`
	StartDate       string           `yaml:"startDate"`
	EndDate         string           `yaml:"endDate"`
	DueDate         string           `yaml:"dueDate"`
	ExtensionDate   string           `yaml:"extensionDate"`
	TrafficLightFee string           `yaml:"trafficLightFee"`
	MinPenaltyUVT   int              `yaml:"minPenaltyUvt"`
	UVTValue        string           `yaml:"uvtValue"`
	Observations    string           `yaml:"observations"`
	Active          bool             `yaml:"active"`
	Brackets        []BracketFixture `yaml:"brackets"`
}

// BracketFixture is one rate table row; empty bounds are open-ended
type BracketFixture struct {
	VehicleType    string `yaml:"vehicleType"`
	Min            string `yaml:"min"`
	Max            string `yaml:"max"`
	Rate           string `yaml:"rate"`
	AdditionalRate string `yaml:"additionalRate"`
}

// VehicleFixture seeds a vehicle owned by the owner holding the document
type VehicleFixture struct {
	Plate               string `yaml:"plate"`
	Brand               string `yaml:"brand"`
	Model               string `yaml:"model"`
	Line                string `yaml:"line"`
	Year                int    `yaml:"year"`
	City                string `yaml:"city"`
	Type                string `yaml:"type"`
	CommercialValue     string `yaml:"commercialValue"`
	EngineDisplacement  int    `yaml:"engineDisplacement"`
	IsElectric          bool   `yaml:"isElectric"`
	IsHybrid            bool   `yaml:"isHybrid"`
	IsNew               bool   `yaml:"isNew"`
	RegistrationDate    string `yaml:"registrationDate"`
	TaxStatus           string `yaml:"taxStatus"`
	OwnerDocumentType   string `yaml:"ownerDocumentType"`
	OwnerDocumentNumber string `yaml:"ownerDocumentNumber"`
}

// SeedStore is the persistence seeding writes through. Every upsert is keyed
// by the natural key, so seeding twice changes nothing.
type SeedStore interface {
	UpsertDocumentType(ctx context.Context, t models.DocumentType) error
	UpsertUser(ctx context.Context, u models.User) (*models.User, error)
	UpsertPeriod(ctx context.Context, p models.FiscalPeriod) (*models.FiscalPeriod, error)
	UpsertVehicle(ctx context.Context, v models.Vehicle) (*models.Vehicle, error)
	tax.PeriodStore
}

// SeedResult counts what a seed run wrote
type SeedResult struct {
	DocumentTypes int
	Owners        int
	FiscalPeriods int
	Vehicles      int
	ActiveYear    int
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load document types, owners, fiscal periods and vehicles from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening fixtures: %w", err)
			}
			defer f.Close()
			fx, err := LoadFixtures(f)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			store, closeFn, err := connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := Seed(ctx, store, fx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d document types, %d owners, %d fiscal periods, %d vehicles\n",
				res.DocumentTypes, res.Owners, res.FiscalPeriods, res.Vehicles)
			if res.ActiveYear != 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "active fiscal period: %d\n", res.ActiveYear)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "fixtures.yaml", "fixture file")
	return cmd
}

// LoadFixtures decodes a seed file, rejecting unknown fields
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx Fixtures
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}
	return &fx, nil
}

// Seed writes fx in dependency order and activates the period marked active
func Seed(ctx context.Context, store SeedStore, fx *Fixtures, now time.Time) (*SeedResult, error) {
	res := &SeedResult{}
	for _, d := range fx.DocumentTypes {
		t := models.DocumentType{Code: strings.ToUpper(d.Code), Name: d.Name, Description: d.Description, IsActive: true}
		if err := store.UpsertDocumentType(ctx, t); err != nil {
			return res, fmt.Errorf("document type %s: %w", d.Code, err)
		}
		res.DocumentTypes++
	}

	owners := map[string]primitive.ObjectID{}
	for _, o := range fx.Owners {
		u, err := o.user(now)
		if err != nil {
			return res, fmt.Errorf("owner %s: %w", o.Email, err)
		}
		stored, err := store.UpsertUser(ctx, u)
		if err != nil {
			return res, fmt.Errorf("owner %s: %w", o.Email, err)
		}
		owners[u.DocumentType+":"+u.DocumentNumber] = stored.ID
		res.Owners++
	}

	activeYear := 0
	for _, p := range fx.FiscalPeriods {
		period, err := p.period(now)
		if err != nil {
			return res, fmt.Errorf("fiscal period %d: %w", p.Year, err)
		}
		if _, err := store.UpsertPeriod(ctx, period); err != nil {
			return res, fmt.Errorf("fiscal period %d: %w", p.Year, err)
		}
		if p.Active {
			activeYear = p.Year
		}
		res.FiscalPeriods++
	}

	for _, vf := range fx.Vehicles {
		key := strings.ToUpper(vf.OwnerDocumentType) + ":" + vf.OwnerDocumentNumber
		ownerID, ok := owners[key]
		if !ok {
			return res, fmt.Errorf("vehicle %s: owner %s is not in the fixtures", vf.Plate, key)
		}
		v, err := vf.vehicle(ownerID, now)
		if err != nil {
			return res, fmt.Errorf("vehicle %s: %w", vf.Plate, err)
		}
		if _, err := store.UpsertVehicle(ctx, v); err != nil {
			return res, fmt.Errorf("vehicle %s: %w", vf.Plate, err)
		}
		res.Vehicles++
	}

	if activeYear != 0 {
		if _, err := (tax.PeriodManager{Store: store}).Activate(ctx, activeYear); err != nil {
			return res, fmt.Errorf("activating %d: %w", activeYear, err)
		}
		res.ActiveYear = activeYear
	}
	zap.S().Infow("fixtures seeded",
		"documentTypes", res.DocumentTypes,
		"owners", res.Owners,
		"fiscalPeriods", res.FiscalPeriods,
		"vehicles", res.Vehicles)
	return res, nil
}

func (o OwnerFixture) user(now time.Time) (models.User, error) {
	docType := strings.ToUpper(o.DocumentType)
	if err := vehicles.ValidateDocument(docType, o.DocumentNumber); err != nil {
		return models.User{}, err
	}
	hash := o.PasswordHash
	if hash == "" {
		if o.Password == "" {
			return models.User{}, fmt.Errorf("password or passwordHash is required")
		}
		var err error
		if hash, err = hashPassword(o.Password, 10); err != nil {
			return models.User{}, err
		}
	}
	return models.User{
		Email:             strings.ToLower(strings.TrimSpace(o.Email)),
		FullName:          o.FullName,
		PasswordHash:      hash,
		IsActive:          true,
		IsSuperadmin:      o.Superadmin,
		DocumentType:      docType,
		DocumentNumber:    o.DocumentNumber,
		Phone:             o.Phone,
		City:              o.City,
		NotificationEmail: o.NotificationEmail,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (p PeriodFixture) period(now time.Time) (models.FiscalPeriod, error) {
	var err error
	out := models.FiscalPeriod{
		Year:          p.Year,
		MinPenaltyUVT: p.MinPenaltyUVT,
		Observations:  p.Observations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if out.StartDate, err = parseDate(p.StartDate); err != nil {
		return out, err
	}
	if out.EndDate, err = parseDate(p.EndDate); err != nil {
		return out, err
	}
	if out.DueDate, err = parseDate(p.DueDate); err != nil {
		return out, err
	}
	if p.ExtensionDate != "" {
		ext, err := parseDate(p.ExtensionDate)
		if err != nil {
			return out, err
		}
		out.ExtensionDate = &ext
	}
	if out.TrafficLightFee, err = parseMoney(p.TrafficLightFee); err != nil {
		return out, err
	}
	if out.UVTValue, err = parseMoney(p.UVTValue); err != nil {
		return out, err
	}
	for _, b := range p.Brackets {
		rb, err := b.bracket()
		if err != nil {
			return out, err
		}
		out.Brackets = append(out.Brackets, rb)
	}
	return out, tax.ValidateBrackets(out.Brackets)
}

func (b BracketFixture) bracket() (models.RateBracket, error) {
	vt, err := models.ParseVehicleType(b.VehicleType)
	if err != nil {
		return models.RateBracket{}, err
	}
	rb := models.RateBracket{VehicleType: vt}
	if rb.Rate, err = decimal.NewFromString(b.Rate); err != nil {
		return rb, fmt.Errorf("rate %q: %w", b.Rate, err)
	}
	if rb.AdditionalRate, err = parseMoney(b.AdditionalRate); err != nil {
		return rb, err
	}
	if b.Min != "" {
		lo, err := decimal.NewFromString(b.Min)
		if err != nil {
			return rb, fmt.Errorf("min %q: %w", b.Min, err)
		}
		rb.Min = &lo
	}
	if b.Max != "" {
		hi, err := decimal.NewFromString(b.Max)
		if err != nil {
			return rb, fmt.Errorf("max %q: %w", b.Max, err)
		}
		rb.Max = &hi
	}
	return rb, nil
}

func (vf VehicleFixture) vehicle(ownerID primitive.ObjectID, now time.Time) (models.Vehicle, error) {
	value, err := decimal.NewFromString(vf.CommercialValue)
	if err != nil {
		return models.Vehicle{}, fmt.Errorf("commercial value %q: %w", vf.CommercialValue, err)
	}
	v := models.Vehicle{
		Plate:              vf.Plate,
		Brand:              vf.Brand,
		Model:              vf.Model,
		Line:               vf.Line,
		Year:               vf.Year,
		City:               vf.City,
		Type:               models.VehicleType(vf.Type),
		CommercialValue:    value,
		EngineDisplacement: vf.EngineDisplacement,
		IsElectric:         vf.IsElectric,
		IsHybrid:           vf.IsHybrid,
		IsNew:              vf.IsNew,
		TaxStatus:          models.TaxStatus(vf.TaxStatus),
		OwnerID:            ownerID,
	}
	if vf.RegistrationDate != "" {
		if v.RegistrationDate, err = parseDate(vf.RegistrationDate); err != nil {
			return v, err
		}
	}
	return vehicles.Prepare(v, now)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return t, fmt.Errorf("date %q: %w", s, err)
	}
	return t, nil
}

// parseMoney treats an empty string as zero
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return d, fmt.Errorf("amount %q: %w", s, err)
	}
	return d, nil
}
