package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/logging"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

// MinJWTSecretLength is the shortest signing secret Validate accepts
const MinJWTSecretLength = 32

// Config holds the project config values
type Config struct {
	URL          string `mapstructure:"DB_URI"`
	DatabaseName string `mapstructure:"DB_NAME"`
	BaseURL      string `mapstructure:"BASE_URL"`
	Port         string `mapstructure:"PORT"`
	Environment  string `mapstructure:"ENVIRONMENT"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	SendGridAPIKey  string `mapstructure:"SENDGRID_API_KEY"`
	MailFromAddress string `mapstructure:"MAIL_FROM_ADDRESS"`
	MailFromName    string `mapstructure:"MAIL_FROM_NAME"`

	JWTSecret                string `mapstructure:"JWT_SECRET"`
	AccessTokenExpireMinutes int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	FrontendURL              string `mapstructure:"FRONTEND_URL"`

	PSERedirectURL        string `mapstructure:"PSE_REDIRECT_URL"`
	PaymentExpiryMinutes  int    `mapstructure:"PAYMENT_EXPIRY_MINUTES"`
	ExpirySweepSchedule   string `mapstructure:"EXPIRY_SWEEP_SCHEDULE"`
	RequestTimeoutSeconds int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
}

var defaults = map[string]interface{}{
	"PORT":                        "8080",
	"ENVIRONMENT":                 logging.Production,
	"DB_NAME":                     "vehicle_tax",
	"EVENTS_EXCHANGE":             "vehicle_tax.events",
	"MAIL_FROM_NAME":              "Vehicle Tax",
	"ACCESS_TOKEN_EXPIRE_MINUTES": 20,
	"PSE_REDIRECT_URL":            "https://pse.example.com/checkout?reference=%s",
	"PAYMENT_EXPIRY_MINUTES":      60,
	"EXPIRY_SWEEP_SCHEDULE":       "@every 15m",
	"REQUEST_TIMEOUT_SECONDS":     30,
}

var keys = []string{
	"DB_URI", "DB_NAME", "BASE_URL", "PORT", "ENVIRONMENT",
	"REDIS_URL", "RABBITMQ_URL", "EVENTS_EXCHANGE",
	"SENDGRID_API_KEY", "MAIL_FROM_ADDRESS", "MAIL_FROM_NAME",
	"JWT_SECRET", "ACCESS_TOKEN_EXPIRE_MINUTES", "FRONTEND_URL",
	"PSE_REDIRECT_URL", "PAYMENT_EXPIRY_MINUTES", "EXPIRY_SWEEP_SCHEDULE", "REQUEST_TIMEOUT_SECONDS",
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	// bound explicitly so Unmarshal sees keys without a default
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &conf, nil
}

// New sets up all config related services
func New() *Config {
	conf, err := Load()
	if err != nil {
		conf = &Config{}
	}

	//setup zap logger and replace default logger
	logger, lerr := setLogger(conf.Environment)
	if lerr != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)
	if err != nil {
		zap.S().Errorw("failed to load config", "error", err)
	}

	return conf
}

// Validate reports settings the server cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("DB_URI is required"))
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength))
	}
	if c.PaymentExpiryMinutes <= 0 {
		errs = append(errs, errors.New("PAYMENT_EXPIRY_MINUTES must be positive"))
	}
	return errors.Join(errs...)
}

// AccessTokenTTL is how long an issued bearer token stays valid
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// PaymentExpiry is the age at which a PENDING_PSE attempt is expired
func (c *Config) PaymentExpiry() time.Duration {
	return time.Duration(c.PaymentExpiryMinutes) * time.Minute
}

// RequestTimeout bounds each HTTP request
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func setLogger(env string) (*zap.Logger, error) {
	return logging.New(env)
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message,
		"status", httpStatusCode,
		"error", err)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	b, _ := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{Message: message, Error: detail}})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	w.Write(b)
}
