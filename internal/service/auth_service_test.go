package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agentdesk/internal/model"
	"agentdesk/pkg/apierror"
)

func newTestAuthService(t *testing.T) (*AuthService, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state", "operators.yaml")
	svc, err := NewAuthService(path, "test-secret", time.Hour, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	return svc, path
}

func TestAuthServiceSeedsDefaultAdmin(t *testing.T) {
	t.Parallel()

	svc, path := newTestAuthService(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "username: admin")
	require.NotContains(t, string(data), defaultAdminPassword)

	pair, err := svc.Login("  ADMIN ", defaultAdminPassword)
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(3600), pair.ExpiresIn)
	require.Equal(t, model.RoleAdmin, pair.User.Role)

	claims, err := svc.ValidateToken(pair.AccessToken, "access")
	require.NoError(t, err)
	require.Equal(t, pair.User.ID, claims.UserID)
	require.NotEmpty(t, claims.TokenID)

	user, err := svc.GetUser(claims.UserID)
	require.NoError(t, err)
	require.Equal(t, "admin", user.Username)
}

func TestAuthServiceRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)

	_, err := svc.Login("admin", "wrong")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 401, apiErr.HTTPStatus)

	_, err = svc.Login("nobody", defaultAdminPassword)
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuthServiceValidateToken(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	pair, err := svc.Login("admin", defaultAdminPassword)
	require.NoError(t, err)

	t.Run("wrong type", func(t *testing.T) {
		_, err := svc.ValidateToken(pair.AccessToken, "refresh")
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("foreign secret", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": pair.User.ID, "typ": "access", "exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("other-secret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(forged, "access")
		require.ErrorIs(t, err, model.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": pair.User.ID, "typ": "access", "exp": time.Now().Add(-time.Minute).Unix(),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(expired, "access")
		require.Error(t, err)
	})

	t.Run("unknown operator", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "ghost", "typ": "access", "exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(token, "access")
		require.ErrorIs(t, err, model.ErrUserNotFound)
	})
}

func TestAuthServiceLoadsOperatorsFile(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "operators.yaml")
	content := "operators:\n" +
		"  - id: op-1\n    username: Maria\n    password_hash: " + string(hash) + "\n    role: agent\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	svc, err := NewAuthService(path, "test-secret", time.Hour)
	require.NoError(t, err)

	pair, err := svc.Login("maria", "s3cret")
	require.NoError(t, err)
	require.Equal(t, model.RoleAgent, pair.User.Role)

	_, err = svc.Login("admin", defaultAdminPassword)
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuthServiceRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "operators.yaml")
	content := "operators:\n  - id: op-1\n    username: root\n    password_hash: x\n    role: superuser\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := NewAuthService(path, "test-secret", time.Hour)
	require.ErrorContains(t, err, "unknown role")
}
