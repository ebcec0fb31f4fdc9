// Package auth provides bearer-token authentication for the admin API.
package auth

import "time"

// Operator roles.
const (
	// RoleAdmin can manage rules, approvals, scenarios, and feature flags.
	RoleAdmin = "admin"

	// RoleAnalyst can create and simulate but not approve.
	RoleAnalyst = "analyst"

	// RoleViewer has read-only access.
	RoleViewer = "viewer"
)

// Operator represents an authenticated pricing operator.
type Operator struct {
	ID        string    `json:"operatorId"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`

	// APIKey is the operator's provisioning credential. It is consumed
	// when the operator set is loaded and never serialized back out.
	APIKey string `json:"apiKey,omitempty"`
}

// TokenRequest is the credential exchange for POST /v1/auth/token.
type TokenRequest struct {
	OperatorID string `json:"operatorId"`
	APIKey     string `json:"apiKey"`
}

// Validate validates the token request.
func (r *TokenRequest) Validate() []FieldError {
	var errors []FieldError

	if r.OperatorID == "" {
		errors = append(errors, FieldError{
			Field:   "operatorId",
			Message: "operator id is required",
			Code:    "REQUIRED",
		})
	}
	if r.APIKey == "" {
		errors = append(errors, FieldError{
			Field:   "apiKey",
			Message: "api key is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// TokenResponse represents an issued access token.
type TokenResponse struct {
	// AccessToken is the JWT access token for API authentication.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the access token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// Operator contains the authenticated operator's information.
	Operator *Operator `json:"operator"`
}
