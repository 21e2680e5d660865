package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/vehicle-tax-api/api/handlers"
)

func TestAuth_LoginHandler(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, "POST", "/api/v1/auth/login", handlers.LoginRequest{Email: ta.owner.Email, Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid credentials", errorReason(t, rr))

	token := ta.login(t, ta.owner.Email)
	assert.NotEmpty(t, token)
}

func TestAuth_TestTokenAndLogout(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login(t, ta.admin.Email)

	rr := ta.do(t, "POST", "/api/v1/auth/test-token", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var info handlers.TokenInfo
	decode(t, rr, &info)
	assert.Equal(t, ta.admin.ID.Hex(), info.UserID)
	assert.True(t, info.Superadmin)

	rr = ta.do(t, "DELETE", "/api/v1/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ta.do(t, "POST", "/api/v1/auth/test-token", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
