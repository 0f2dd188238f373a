package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"agentdesk/internal/model"
	"agentdesk/pkg/apierror"
)

const (
	tokenTypeAccess      = "access"
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
)

type operatorsFile struct {
	Operators []model.Operator `yaml:"operators"`
}

type AuthService struct {
	operatorsFile   string
	jwtSecret       []byte
	accessTTL       time.Duration
	bcryptCost      int
	mu              sync.RWMutex
	usersByUsername map[string]model.Operator
	usersByID       map[string]model.Operator
}

type AuthOption func(*AuthService)

// WithBcryptCost lowers the hashing cost, used by tests seeding operators.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

func NewAuthService(operatorsFile string, jwtSecret string, accessTTL time.Duration, opts ...AuthOption) (*AuthService, error) {
	service := &AuthService{
		operatorsFile:   operatorsFile,
		jwtSecret:       []byte(jwtSecret),
		accessTTL:       accessTTL,
		bcryptCost:      12,
		usersByUsername: map[string]model.Operator{},
		usersByID:       map[string]model.Operator{},
	}
	for _, opt := range opts {
		opt(service)
	}

	if err := service.loadOperators(); err != nil {
		return nil, fmt.Errorf("load operators: %w", err)
	}

	return service, nil
}

func (s *AuthService) Login(username string, password string) (model.TokenPair, error) {
	s.mu.RLock()
	operator, exists := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	s.mu.RUnlock()
	if !exists {
		return model.TokenPair{}, apierror.Wrap(model.ErrInvalidCredentials, "UNAUTHORIZED", "invalid credentials", "", http.StatusUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return model.TokenPair{}, apierror.Wrap(model.ErrInvalidCredentials, "UNAUTHORIZED", "invalid credentials", "", http.StatusUnauthorized)
	}

	return s.issueAccessToken(operator)
}

func (s *AuthService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierror.New("UNAUTHORIZED", "invalid token signing method", "", http.StatusUnauthorized)
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "invalid token", "", http.StatusUnauthorized)
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "invalid token claims", "", http.StatusUnauthorized)
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "invalid token type", "", http.StatusUnauthorized)
	}

	claims := &model.AuthClaims{Type: typ}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Username, _ = claimsMap["username"].(string)
	claims.Role, _ = claimsMap["role"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" {
		return nil, apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized)
	}

	// operators removed from the file lose access on the next request
	s.mu.RLock()
	_, exists := s.usersByID[claims.UserID]
	s.mu.RUnlock()
	if !exists {
		return nil, apierror.Wrap(model.ErrUserNotFound, "UNAUTHORIZED", "operator no longer exists", "", http.StatusUnauthorized)
	}

	return claims, nil
}

func (s *AuthService) GetUser(userID string) (model.AuthUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	operator, exists := s.usersByID[userID]
	if !exists {
		return model.AuthUser{}, apierror.Wrap(model.ErrUserNotFound, "NOT_FOUND", "operator not found", userID, http.StatusNotFound)
	}

	return authUser(operator), nil
}

func (s *AuthService) issueAccessToken(operator model.Operator) (model.TokenPair, error) {
	now := time.Now().UTC()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      operator.ID,
		"username": operator.Username,
		"role":     operator.Role,
		"typ":      tokenTypeAccess,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(s.accessTTL).Unix(),
	})
	accessToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	return model.TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		User:        authUser(operator),
	}, nil
}

func (s *AuthService) loadOperators() error {
	if strings.TrimSpace(s.operatorsFile) == "" {
		return errors.New("operators file path is required")
	}

	data, err := os.ReadFile(s.operatorsFile)
	if errors.Is(err, os.ErrNotExist) || (err == nil && strings.TrimSpace(string(data)) == "") {
		if err := s.seedDefaultAdmin(); err != nil {
			return err
		}
		data, err = os.ReadFile(s.operatorsFile)
	}
	if err != nil {
		return err
	}

	var file operatorsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", s.operatorsFile, err)
	}
	if len(file.Operators) == 0 {
		return fmt.Errorf("%s defines no operators", s.operatorsFile)
	}

	usersByUsername := map[string]model.Operator{}
	usersByID := map[string]model.Operator{}
	for _, operator := range file.Operators {
		if operator.ID == "" || operator.Username == "" || operator.PasswordHash == "" {
			return fmt.Errorf("%s: operator entries need id, username and password_hash", s.operatorsFile)
		}
		switch operator.Role {
		case model.RoleAdmin, model.RoleAgent, model.RoleViewer:
		default:
			return fmt.Errorf("%s: operator %s has unknown role %q", s.operatorsFile, operator.Username, operator.Role)
		}
		usersByUsername[strings.ToLower(operator.Username)] = operator
		usersByID[operator.ID] = operator
	}

	s.mu.Lock()
	s.usersByUsername = usersByUsername
	s.usersByID = usersByID
	s.mu.Unlock()

	return nil
}

func (s *AuthService) seedDefaultAdmin() error {
	if err := os.MkdirAll(filepath.Dir(s.operatorsFile), 0o755); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), s.bcryptCost)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(operatorsFile{Operators: []model.Operator{{
		ID:           uuid.NewString(),
		Username:     defaultAdminUsername,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}}})
	if err != nil {
		return err
	}

	slog.Warn("operators file missing; seeded default admin", "component", "auth", "path", s.operatorsFile, "username", defaultAdminUsername)
	return os.WriteFile(s.operatorsFile, data, 0o600)
}

func authUser(operator model.Operator) model.AuthUser {
	return model.AuthUser{ID: operator.ID, Username: operator.Username, Role: operator.Role}
}
