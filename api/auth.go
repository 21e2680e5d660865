package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
	"github.com/linesmerrill/vehicle-tax-api/clock"
	"github.com/linesmerrill/vehicle-tax-api/config"
	"github.com/linesmerrill/vehicle-tax-api/models"
)

const superadminGroup = "superadmin"

// UserStore is the persistence the authenticator needs
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	RecordLogin(ctx context.Context, id primitive.ObjectID, success bool, at time.Time) error
}

// Claims are the JWT claims of an access token
type Claims struct {
	Email      string `json:"email"`
	Superadmin bool   `json:"superadmin"`
	jwt.RegisteredClaims
}

// Token is the login response
type Token struct {
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	User        models.User `json:"user"`
}

// Auth issues and checks bearer tokens. Tokens are signed JWTs; verified
// tokens are kept in a go-guardian cache so repeated requests skip the
// signature check, and logout revokes them from it.
type Auth struct {
	Users  UserStore
	Clock  clock.Clock
	secret []byte
	ttl    time.Duration

	authenticator auth.Authenticator
	strategy      auth.Strategy
	revoked       store.Cache
}

// NewAuth sets up the bearer strategy with the configured secret and ttl
func NewAuth(users UserStore, secret string, ttl time.Duration) *Auth {
	a := &Auth{
		Users:  users,
		Clock:  clock.Real{},
		secret: []byte(secret),
		ttl:    ttl,
	}
	cache := store.NewFIFO(context.Background(), ttl)
	a.revoked = store.NewFIFO(context.Background(), ttl)
	a.strategy = bearer.New(a.verify, cache)
	a.authenticator = auth.New()
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, a.strategy)
	return a
}

// Login checks the credentials, records the attempt on the user and returns a
// fresh token
func (a *Auth) Login(r *http.Request, email, password string) (*Token, error) {
	ctx := r.Context()
	u, err := a.Users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		a.recordLogin(ctx, u, false)
		return nil, apperr.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, apperr.ErrInactiveUser
	}
	a.recordLogin(ctx, u, true)

	token, err := a.Issue(r, *u)
	if err != nil {
		return nil, err
	}
	zap.S().Infow("user logged in",
		"userId", u.ID.Hex())
	return token, nil
}

func (a *Auth) recordLogin(ctx context.Context, u *models.User, success bool) {
	if err := a.Users.RecordLogin(ctx, u.ID, success, a.Clock.Now()); err != nil {
		zap.S().Warnw("failed to record login attempt",
			"userId", u.ID.Hex(),
			"error", err)
	}
}

// Issue signs a token for u and caches it
func (a *Auth) Issue(r *http.Request, u models.User) (*Token, error) {
	now := a.Clock.Now()
	exp := now.Add(a.ttl)
	claims := Claims{
		Email:      u.Email,
		Superadmin: u.IsSuperadmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	auth.Append(a.strategy, signed, infoFor(claims), r)
	return &Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp, User: u}, nil
}

// verify runs on a cache miss
func (a *Auth) verify(_ context.Context, _ *http.Request, token string) (auth.Info, error) {
	if _, found, _ := a.revoked.Load(token, nil); found {
		return nil, errors.New("token revoked")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.Clock.Now))
	if err != nil {
		return nil, err
	}
	return infoFor(*claims), nil
}

// Revoke drops the request's bearer token so it is rejected from now on
func (a *Auth) Revoke(r *http.Request) error {
	token, ok := bearerToken(r)
	if !ok {
		return apperr.ErrInvalidCredentials
	}
	if err := a.revoked.Store(token, true, r); err != nil {
		return err
	}
	return auth.Revoke(a.strategy, token, r)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	if token == "" || token == h {
		return "", false
	}
	return token, true
}

func infoFor(c Claims) auth.Info {
	var groups []string
	if c.Superadmin {
		groups = []string{superadminGroup}
	}
	return auth.NewDefaultUser(c.Email, c.Subject, groups, nil)
}

// Middleware rejects requests without a valid bearer token and stores the
// caller on the request context
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := a.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Debugw("unauthorized",
				"url", r.URL.Path,
				"error", err)
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
			return
		}
		p := Principal{Email: info.UserName()}
		p.ID, _ = primitive.ObjectIDFromHex(info.ID())
		for _, g := range info.Groups() {
			if g == superadminGroup {
				p.Superadmin = true
			}
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin lets only superadmins through. It must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || !p.Superadmin {
			config.ErrorStatus("forbidden", http.StatusForbidden, w, errors.New("superadmin required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
