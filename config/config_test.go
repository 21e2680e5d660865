package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "")
	t.Setenv("PAYMENT_EXPIRY_MINUTES", "")

	conf, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, 20*time.Minute, conf.AccessTokenTTL())
	assert.Equal(t, time.Hour, conf.PaymentExpiry())
	assert.Equal(t, 30*time.Second, conf.RequestTimeout())
	assert.Equal(t, "@every 15m", conf.ExpirySweepSchedule)
	assert.Equal(t, "vehicle_tax.events", conf.EventsExchange)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAYMENT_EXPIRY_MINUTES", "90")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	conf, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, conf.PaymentExpiry())
	assert.Equal(t, "redis://localhost:6379/0", conf.RedisURL)
}

func TestValidate(t *testing.T) {
	valid := Config{URL: "mongodb://db", JWTSecret: strings.Repeat("s", MinJWTSecretLength), PaymentExpiryMinutes: 60}
	assert.NoError(t, valid.Validate())

	short := valid
	short.JWTSecret = "too-short"
	assert.ErrorContains(t, short.Validate(), "JWT_SECRET")

	noDB := valid
	noDB.URL = ""
	assert.ErrorContains(t, noDB.Validate(), "DB_URI")
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()

	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, models.ErrorMessageResponse{Response: models.MessageError{Message: "error it borked", Error: "bad request"}}, body)
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(1))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(2))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(0))
}
