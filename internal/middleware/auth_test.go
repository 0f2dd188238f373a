package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdesk/internal/model"
)

type stubValidator map[string]*model.AuthClaims

func (v stubValidator) ValidateToken(token string, expectedType string) (*model.AuthClaims, error) {
	claims, ok := v[token]
	if !ok || claims.Type != expectedType {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func newTestAuth() *AuthMiddleware {
	return NewAuthMiddleware(stubValidator{
		"admin-token":  {UserID: "u1", Username: "admin", Role: model.RoleAdmin, Type: "access"},
		"viewer-token": {UserID: "u2", Username: "viewer", Role: model.RoleViewer, Type: "access"},
	})
}

func claimsEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(claims.Username))
	})
}

func TestRequireAuth(t *testing.T) {
	handler := newTestAuth().RequireAuth(claimsEcho())

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic admin-token", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "bearer admin-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/lists", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireAuthOrQueryToken(t *testing.T) {
	auth := newTestAuth()

	rec := httptest.NewRecorder()
	auth.RequireAuthOrQueryToken(claimsEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=viewer-token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "viewer", rec.Body.String())

	rec = httptest.NewRecorder()
	auth.RequireAuth(claimsEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=viewer-token", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	auth := newTestAuth()
	handler := auth.RequireAuth(auth.RequireRoles(model.RoleAdmin)(claimsEcho()))

	for token, status := range map[string]int{"admin-token": http.StatusOK, "viewer-token": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/lists/agents/deletion", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, token)
	}
}
