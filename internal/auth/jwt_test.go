package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rateboard/rateboard/internal/auth"
)

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.rateboard.io",
		Audience:   "rateboard-api",
	})

	op := &auth.Operator{
		ID:        "opr_test123",
		Email:     "test@example.com",
		Role:      auth.RoleAdmin,
		CreatedAt: time.Now(),
	}

	// Generate token
	token, expiresAt, err := svc.GenerateAccessToken(op)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	// Validate token
	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, op.ID, claims.OperatorID)
	assert.Equal(t, op.ID, claims.Subject)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, "https://api.rateboard.io", claims.Issuer)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.rateboard.io",
		Audience:   "rateboard-api",
	})

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	// Generate with one key
	svc1 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "key-one",
		Issuer:     "https://api.rateboard.io",
		Audience:   "rateboard-api",
	})

	op := &auth.Operator{ID: "opr_test123", Role: auth.RoleViewer}
	token, _, err := svc1.GenerateAccessToken(op)
	require.NoError(t, err)

	// Validate with different key
	svc2 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "key-two",
		Issuer:     "https://api.rateboard.io",
		Audience:   "rateboard-api",
	})

	_, err = svc2.ValidateAccessToken(token)
	assert.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_WrongIssuer(t *testing.T) {
	// Generate with one issuer
	svc1 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "issuer-one",
		Audience:   "rateboard-api",
	})

	op := &auth.Operator{ID: "opr_test123", Role: auth.RoleViewer}
	token, _, err := svc1.GenerateAccessToken(op)
	require.NoError(t, err)

	// Validate with different issuer
	svc2 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "issuer-two",
		Audience:   "rateboard-api",
	})

	_, err = svc2.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestJWTService_WrongAudience(t *testing.T) {
	// Generate with one audience
	svc1 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "https://api.rateboard.io",
		Audience:   "audience-one",
	})

	op := &auth.Operator{ID: "opr_test123", Role: auth.RoleViewer}
	token, _, err := svc1.GenerateAccessToken(op)
	require.NoError(t, err)

	// Validate with different audience
	svc2 := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-key",
		Issuer:     "https://api.rateboard.io",
		Audience:   "audience-two",
	})

	_, err = svc2.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestService_IssueToken(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.rateboard.io",
		Audience:   "rateboard-api",
	})

	svc := auth.NewService(auth.ServiceConfig{
		JWTService: jwtSvc,
		Operators: []auth.Operator{
			{ID: "opr_admin", Email: "admin@example.com", Role: auth.RoleAdmin},
			{ID: "opr_viewer", Email: "viewer@example.com", Role: auth.RoleViewer},
		},
	})

	resp, err := svc.IssueToken("opr_admin")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "opr_admin", resp.Operator.ID)

	// Issued token validates back to the same operator
	operatorID, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "opr_admin", operatorID)

	claims, err := svc.ValidateClaims(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)

	// Unknown operator
	_, err = svc.IssueToken("opr_unknown")
	assert.ErrorIs(t, err, auth.ErrOperatorNotFound)
}

func TestService_Authenticate(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.rateboard.io",
		Audience:   "rateboard-api",
	})

	svc := auth.NewService(auth.ServiceConfig{
		JWTService: jwtSvc,
		Operators: []auth.Operator{
			{ID: "opr_admin", Email: "admin@example.com", Role: auth.RoleAdmin, APIKey: "admin-key"},
			{ID: "opr_nokey", Email: "nokey@example.com", Role: auth.RoleViewer},
		},
	})

	resp, err := svc.Authenticate("opr_admin", "admin-key")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "opr_admin", resp.Operator.ID)

	// The provisioning credential never leaks into the token response.
	assert.Empty(t, resp.Operator.APIKey)

	operatorID, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "opr_admin", operatorID)

	_, err = svc.Authenticate("opr_admin", "wrong-key")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	// An operator provisioned without a key cannot mint tokens.
	_, err = svc.Authenticate("opr_nokey", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Authenticate("opr_unknown", "admin-key")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
