package handlers

import (
	"net/http"

	"github.com/linesmerrill/vehicle-tax-api/api"
)

// Auth exported for testing purposes
type Auth struct {
	Auth *api.Auth
}

// LoginRequest is the body of a login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler exchanges an email and password for a bearer token
func (a Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, err := a.Auth.Login(r, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, token)
}

// TokenInfo describes the caller of an authenticated request
type TokenInfo struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Superadmin bool   `json:"superadmin"`
}

// TestTokenHandler echoes the caller, for clients checking a token
func (a Auth) TestTokenHandler(w http.ResponseWriter, r *http.Request) {
	p, _ := api.PrincipalFrom(r.Context())
	api.WriteJSON(w, http.StatusOK, TokenInfo{UserID: p.ID.Hex(), Email: p.Email, Superadmin: p.Superadmin})
}

// LogoutHandler revokes the bearer token of the request
func (a Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.Auth.Revoke(r); err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "token revoked"})
}
