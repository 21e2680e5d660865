package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/vehicle-tax-api/api/testhelpers"
	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

var seedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func loadTestFixtures(t *testing.T) *Fixtures {
	t.Helper()
	f, err := os.Open("testdata/fixtures.yaml")
	require.NoError(t, err)
	defer f.Close()
	fx, err := LoadFixtures(f)
	require.NoError(t, err)
	return fx
}

func TestLoadFixtures(t *testing.T) {
	fx := loadTestFixtures(t)
	assert.Len(t, fx.DocumentTypes, 4)
	assert.Len(t, fx.Owners, 2)
	assert.Len(t, fx.FiscalPeriods, 2)
	assert.Len(t, fx.Vehicles, 3)
	assert.True(t, fx.FiscalPeriods[1].Active)
	assert.Equal(t, "112000000", fx.FiscalPeriods[1].Brackets[1].Max)
}

func TestLoadFixturesRejectsUnknownFields(t *testing.T) {
	_, err := LoadFixtures(strings.NewReader("owners:\n  - email: a@b.co\n    nickname: x\n"))
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	res, err := Seed(context.Background(), store, loadTestFixtures(t), seedNow)
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{DocumentTypes: 4, Owners: 2, FiscalPeriods: 2, Vehicles: 3, ActiveYear: 2024}, res)

	assert.Equal(t, "CC", store.DocumentTypes()[0].Code)

	owner, err := store.FindUserByEmail(context.Background(), "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, "CC", owner.DocumentType)
	assert.Equal(t, "ana.notices@example.com", owner.ContactEmail())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte("s3cret-pass")))

	admin, err := store.FindUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.True(t, admin.IsSuperadmin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin-pass-2024")))

	active, err := store.ActivePeriod(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2024, active.Year)
	assert.True(t, active.TrafficLightFee.Equal(decimal.NewFromInt(87000)))
	require.NotNil(t, active.ExtensionDate)
	assert.Len(t, active.Brackets, 5)

	car, err := store.FindVehicle(context.Background(), "ABC123", owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaxStatusPending, car.TaxStatus)

	moto, err := store.FindVehicleByPlate(context.Background(), "XYZ12A")
	require.NoError(t, err)
	assert.True(t, moto.TrafficLightFeeExempt)

	ev, err := store.FindVehicle(context.Background(), "EVC456", admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DiscountElectricPrivate, ev.DiscountType)
	assert.NotNil(t, ev.DiscountExpiry)
}

func TestSeedTwiceKeepsIdentities(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	fx := loadTestFixtures(t)
	_, err := Seed(context.Background(), store, fx, seedNow)
	require.NoError(t, err)
	first, err := store.FindVehicleByPlate(context.Background(), "ABC123")
	require.NoError(t, err)

	_, err = Seed(context.Background(), store, fx, seedNow.Add(time.Hour))
	require.NoError(t, err)
	second, err := store.FindVehicleByPlate(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
}

func TestSeedKeepsPasswordHash(t *testing.T) {
	hash, err := hashPassword("from-the-cli", bcrypt.MinCost)
	require.NoError(t, err)
	fx := &Fixtures{Owners: []OwnerFixture{{
		Email:          "clerk@example.com",
		PasswordHash:   hash,
		DocumentType:   "CE",
		DocumentNumber: "E1234567",
	}}}
	store := testhelpers.NewMemoryStore()
	_, err = Seed(context.Background(), store, fx, seedNow)
	require.NoError(t, err)
	u, err := store.FindUserByEmail(context.Background(), "clerk@example.com")
	require.NoError(t, err)
	assert.Equal(t, hash, u.PasswordHash)
}

func TestSeedOwnerWithoutPassword(t *testing.T) {
	fx := &Fixtures{Owners: []OwnerFixture{{Email: "x@example.com", DocumentType: "CC", DocumentNumber: "123"}}}
	_, err := Seed(context.Background(), testhelpers.NewMemoryStore(), fx, seedNow)
	assert.ErrorContains(t, err, "password")
}

func TestSeedRejectsSharedOwnerDocument(t *testing.T) {
	fx := loadTestFixtures(t)
	fx.Owners[1].DocumentType = "CC"
	fx.Owners[1].DocumentNumber = "1020304050"
	_, err := Seed(context.Background(), testhelpers.NewMemoryStore(), fx, seedNow)
	assert.True(t, errors.Is(err, apperr.ErrDocumentTaken), err)
}

func TestSeedUnknownOwner(t *testing.T) {
	fx := loadTestFixtures(t)
	fx.Vehicles[0].OwnerDocumentNumber = "999"
	_, err := Seed(context.Background(), testhelpers.NewMemoryStore(), fx, seedNow)
	assert.ErrorContains(t, err, "not in the fixtures")
}

func TestSeedRejectsBrokenRateTable(t *testing.T) {
	fx := loadTestFixtures(t)
	fx.FiscalPeriods[1].Brackets[1].Min = "60000000"
	_, err := Seed(context.Background(), testhelpers.NewMemoryStore(), fx, seedNow)
	assert.True(t, errors.Is(err, apperr.ErrGappedBrackets), err)
}

func TestSeedRejectsInvalidOwnerDocument(t *testing.T) {
	fx := loadTestFixtures(t)
	fx.Owners[0].DocumentNumber = "12AB"
	_, err := Seed(context.Background(), testhelpers.NewMemoryStore(), fx, seedNow)
	assert.True(t, errors.Is(err, apperr.ErrInvalidDocument), err)
}

func TestSeedStoreFailure(t *testing.T) {
	store := testhelpers.NewMemoryStore()
	store.FailNext("UpsertPeriod", errors.New("connection reset"))
	res, err := Seed(context.Background(), store, loadTestFixtures(t), seedNow)
	assert.ErrorContains(t, err, "fiscal period 2023")
	assert.Equal(t, 2, res.Owners)
	assert.Zero(t, res.Vehicles)
}

func TestHashPassword(t *testing.T) {
	hash, err := hashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))

	_, err = hashPassword("", bcrypt.MinCost)
	assert.Error(t, err)
}

func TestHashPasswordCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"hash-password", "--cost", "4", "hunter22"})
	require.NoError(t, cmd.Execute())
	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))
}

func TestRootCmdListsCommands(t *testing.T) {
	cmd := newRootCmd()
	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"seed", "activate-period", "expire-stale", "hash-password"})
}

func TestActivatePeriodRequiresYear(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"activate-period"})
	assert.ErrorContains(t, cmd.Execute(), "year")
}
