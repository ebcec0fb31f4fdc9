package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rateboard/rateboard/internal/api/models"
	"github.com/rateboard/rateboard/internal/api/response"
	"github.com/rateboard/rateboard/internal/auth"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *auth.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// IssueToken handles POST /v1/auth/token - exchange a provisioned
// operator's API key for a bearer access token.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req auth.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		fieldErrors := make([]models.FieldError, len(errs))
		for i, e := range errs {
			fieldErrors[i] = models.FieldError{
				Field:   e.Field,
				Message: e.Message,
				Code:    e.Code,
			}
		}
		response.BadRequest(w, r, "validation error", fieldErrors)
		return
	}

	tokenResp, err := h.authService.Authenticate(req.OperatorID, req.APIKey)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrOperatorNotFound) {
			response.Unauthorized(w, r, "invalid operator credentials")
			return
		}
		response.InternalError(w, r, "authentication failed")
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// GetOperator handles GET /v1/auth/operator - return the authenticated
// operator's provisioning record.
func (h *AuthHandler) GetOperator(w http.ResponseWriter, r *http.Request) {
	op, err := h.authService.GetOperator(GetOperatorID(r.Context()))
	if err != nil {
		if errors.Is(err, auth.ErrOperatorNotFound) {
			response.Unauthorized(w, r, "operator is no longer provisioned")
			return
		}
		response.InternalError(w, r, "failed to load operator")
		return
	}
	response.JSON(w, r, http.StatusOK, op)
}
