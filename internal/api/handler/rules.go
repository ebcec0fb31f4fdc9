package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/api/models"
	"github.com/rateboard/rateboard/internal/api/response"
	"github.com/rateboard/rateboard/internal/featureflags"
	"github.com/rateboard/rateboard/internal/pricing"
	"github.com/rateboard/rateboard/internal/rule"
)

// RuleHandler handles pricing rule management endpoints.
type RuleHandler struct {
	service *rule.Service
	flags   *featureflags.Service
	logger  zerolog.Logger
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(service *rule.Service, flags *featureflags.Service, logger zerolog.Logger) *RuleHandler {
	return &RuleHandler{service: service, flags: flags, logger: logger}
}

// ListRules handles GET /v1/rules - list pricing rules.
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	opts := rule.ListOptions{
		EntityID: r.URL.Query().Get("entityId"),
		Level:    pricing.Level(r.URL.Query().Get("level")),
		Cursor:   r.URL.Query().Get("cursor"),
		Limit:    50,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		opts.Limit = limit
	}
	for _, s := range r.URL.Query()["status"] {
		opts.Statuses = append(opts.Statuses, pricing.ApprovalStatus(s))
	}

	result, err := h.service.List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := models.PagedRules{
		Items: make([]models.PricingRule, 0, len(result.Items)),
		Meta:  models.PagedResponseMeta{Limit: opts.Limit},
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, models.NewPricingRule(item))
	}
	if result.NextCursor != "" {
		cursor := result.NextCursor
		resp.Meta.NextCursor = &cursor
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// CreateRule handles POST /v1/rules - create a draft pricing rule.
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var input models.RuleCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	created, err := h.service.Create(r.Context(), &rule.CreateInput{
		Name:               input.Name,
		EntityID:           input.EntityID,
		Level:              pricing.Level(input.Level),
		Priority:           input.Priority,
		Kind:               pricing.RuleKind(input.Kind),
		ConflictResolution: pricing.ConflictResolution(input.ConflictResolution),
		EffectiveFrom:      input.EffectiveFrom,
		EffectiveTo:        input.EffectiveTo,
		Windows:            models.EngineWindows(input.Windows),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/rules/%s", created.ID)
	response.Created(w, r, location, models.NewPricingRule(created))
}

// GetRule handles GET /v1/rules/{ruleId} - get a pricing rule.
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	found, err := h.service.Get(r.Context(), ruleID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewPricingRule(found))
}

// UpdateRule handles PUT /v1/rules/{ruleId} - update a draft pricing rule.
func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var input models.RuleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	updated, err := h.service.Update(r.Context(), ruleID, &rule.UpdateInput{
		Name:          input.Name,
		Priority:      input.Priority,
		EffectiveFrom: input.EffectiveFrom,
		EffectiveTo:   input.EffectiveTo,
		Windows:       models.EngineWindows(input.Windows),
		IsActive:      input.IsActive,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewPricingRule(updated))
}

// DeleteRule handles DELETE /v1/rules/{ruleId} - delete a pricing rule.
func (h *RuleHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	if err := h.service.Delete(r.Context(), ruleID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// TransitionRule handles POST /v1/rules/{ruleId}/status - move a rule
// through the approval workflow.
func (h *RuleHandler) TransitionRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var input models.RuleTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.Status == "" {
		response.BadRequest(w, r, "status is required", nil)
		return
	}

	updated, err := h.service.Transition(r.Context(), ruleID, pricing.ApprovalStatus(input.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info().
		Str("rule_id", ruleID).
		Str("status", input.Status).
		Str("operator_id", GetOperatorID(r.Context())).
		Msg("rule status changed")

	response.JSON(w, r, http.StatusOK, models.NewPricingRule(updated))
}

// ListDefaults handles GET /v1/entities/{entityId}/defaults - list an
// entity's per-level default rates.
func (h *RuleHandler) ListDefaults(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityId")

	defaults, err := h.service.ListDefaults(r.Context(), entityID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := models.DefaultRateList{Items: make([]models.DefaultRate, 0, len(defaults))}
	for _, d := range defaults {
		resp.Items = append(resp.Items, models.DefaultRate{
			Level:      string(d.Level),
			HourlyRate: d.HourlyRate,
		})
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// PutDefault handles PUT /v1/entities/{entityId}/defaults/{level} - set the
// default rate for one level.
func (h *RuleHandler) PutDefault(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityId")
	level := chi.URLParam(r, "level")

	var input models.DefaultRate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	rate := pricing.DefaultRate{
		Level:      pricing.Level(level),
		HourlyRate: input.HourlyRate,
	}
	if err := h.service.PutDefault(r.Context(), entityID, rate); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.DefaultRate{
		Level:      level,
		HourlyRate: rate.HourlyRate,
	})
}

// DeleteDefault handles DELETE /v1/entities/{entityId}/defaults/{level}.
func (h *RuleHandler) DeleteDefault(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityId")
	level := chi.URLParam(r, "level")

	if err := h.service.DeleteDefault(r.Context(), entityID, pricing.Level(level)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// ListSurgeConfigs handles GET /v1/surge-configs - list surge configurations.
func (h *RuleHandler) ListSurgeConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.ListSurgeConfigs(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := models.SurgeConfigList{Items: make([]models.SurgeConfig, 0, len(configs))}
	for _, cfg := range configs {
		resp.Items = append(resp.Items, models.NewSurgeConfig(cfg))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// GetSurgeConfig handles GET /v1/surge-configs/{surgeConfigId}.
func (h *RuleHandler) GetSurgeConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetSurgeConfig(r.Context(), chi.URLParam(r, "surgeConfigId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewSurgeConfig(cfg))
}

// MaterializeSurge handles POST /v1/surge-configs/{surgeConfigId}/materialize -
// freeze the config's current multiplier into an approved rule.
func (h *RuleHandler) MaterializeSurge(w http.ResponseWriter, r *http.Request) {
	surgeConfigID := chi.URLParam(r, "surgeConfigId")

	if h.flags != nil && h.flags.IsMaterializationDisabled(r.Context()) {
		response.ServiceUnavailable(w, r, "surge materialization is temporarily disabled")
		return
	}

	var input models.MaterializeSurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	created, err := h.service.MaterializeSurge(r.Context(), &rule.MaterializeInput{
		SurgeConfigID: surgeConfigID,
		EntityID:      input.EntityID,
		Name:          input.Name,
		EffectiveFrom: input.EffectiveFrom,
		EffectiveTo:   input.EffectiveTo,
		Windows:       models.EngineWindows(input.Windows),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info().
		Str("surge_config_id", surgeConfigID).
		Str("rule_id", created.ID).
		Str("operator_id", GetOperatorID(r.Context())).
		Msg("surge materialized via API")

	location := fmt.Sprintf("/v1/rules/%s", created.ID)
	response.Created(w, r, location, models.NewPricingRule(created))
}

// writeServiceError maps rule service errors to problem responses.
func (h *RuleHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *rule.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "validation failed", validationErr.Errors)
	case errors.Is(err, rule.ErrRuleNotFound),
		errors.Is(err, rule.ErrDefaultNotFound),
		errors.Is(err, rule.ErrSurgeConfigNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, rule.ErrInvalidTransition),
		errors.Is(err, rule.ErrRuleImmutable),
		errors.Is(err, rule.ErrSurgeInactive):
		response.Conflict(w, r, err.Error())
	default:
		h.logger.Error().Err(err).Msg("rule service error")
		response.InternalError(w, r, "internal error")
	}
}
