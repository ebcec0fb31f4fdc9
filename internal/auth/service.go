package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"
)

// ErrOperatorNotFound is returned when an operator is not provisioned.
var ErrOperatorNotFound = errors.New("operator not found")

// ErrInvalidCredentials is returned when a token request carries a wrong
// or missing API key. It is deliberately indistinguishable from an unknown
// operator at the HTTP boundary.
var ErrInvalidCredentials = errors.New("invalid operator credentials")

// Service provides token issuance and validation for pricing operators.
// Operators are provisioned statically at startup; there is no self-serve
// signup surface.
type Service struct {
	jwtService *JWTService
	operators  map[string]*Operator
	apiKeys    map[string]string
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService *JWTService

	// Operators is the static set of provisioned operators, keyed by ID
	// when building the lookup table.
	Operators []Operator
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	operators := make(map[string]*Operator, len(cfg.Operators))
	apiKeys := make(map[string]string, len(cfg.Operators))
	for i := range cfg.Operators {
		op := cfg.Operators[i]
		if op.CreatedAt.IsZero() {
			op.CreatedAt = time.Now()
		}
		// The key lives in its own table so the operator record can be
		// embedded in responses without leaking it.
		apiKeys[op.ID] = op.APIKey
		op.APIKey = ""
		operators[op.ID] = &op
	}

	return &Service{
		jwtService: cfg.JWTService,
		operators:  operators,
		apiKeys:    apiKeys,
	}
}

// Authenticate exchanges an operator's API key for an access token.
func (s *Service) Authenticate(operatorID, apiKey string) (*TokenResponse, error) {
	key, ok := s.apiKeys[operatorID]
	if !ok || key == "" {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return s.IssueToken(operatorID)
}

// IssueToken issues an access token for a provisioned operator.
func (s *Service) IssueToken(operatorID string) (*TokenResponse, error) {
	op, ok := s.operators[operatorID]
	if !ok {
		return nil, ErrOperatorNotFound
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(op)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		Operator:    op,
	}, nil
}

// ValidateAccessToken validates an access token and returns the operator ID.
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	claims, err := s.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.OperatorID, nil
}

// ValidateClaims validates an access token and returns the full claims,
// including the operator's role.
func (s *Service) ValidateClaims(tokenString string) (*JWTClaims, error) {
	return s.jwtService.ValidateAccessToken(tokenString)
}

// GetOperator returns a provisioned operator by ID.
func (s *Service) GetOperator(operatorID string) (*Operator, error) {
	op, ok := s.operators[operatorID]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return op, nil
}
