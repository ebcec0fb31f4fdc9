package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/api/models"
	"github.com/rateboard/rateboard/internal/api/response"
	"github.com/rateboard/rateboard/internal/featureflags"
	"github.com/rateboard/rateboard/internal/pricing"
	"github.com/rateboard/rateboard/internal/rule"
)

// PricingHandler handles price resolution endpoints.
type PricingHandler struct {
	ruleService *rule.Service
	flags       *featureflags.Service
	logger      zerolog.Logger
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(ruleService *rule.Service, flags *featureflags.Service, logger zerolog.Logger) *PricingHandler {
	return &PricingHandler{
		ruleService: ruleService,
		flags:       flags,
		logger:      logger,
	}
}

// ComputeTimeslots handles POST /v1/pricing/timeslots:compute - resolve
// per-slot prices for an entity over a time range.
func (h *PricingHandler) ComputeTimeslots(w http.ResponseWriter, r *http.Request) {
	var input models.ComputeTimeslotsRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	mode, fieldErrors := h.validateComputeRequest(&input)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid compute request", fieldErrors)
		return
	}

	if mode == pricing.ModeLive && h.flags != nil && h.flags.IsLivePricingDisabled(r.Context()) {
		response.ServiceUnavailable(w, r, "live pricing is temporarily disabled")
		return
	}

	q, err := h.buildQuery(&input)
	if err != nil {
		response.BadRequest(w, r, "unknown timezone", []models.FieldError{
			{Field: "timezone", Message: "must be a valid IANA zone name"},
		})
		return
	}

	if h.flags != nil && mode == pricing.ModeSimulation && h.flags.IsSurgeSimulationDisabled(r.Context()) {
		q.SurgeEnabled = false
	}

	rs, err := h.ruleService.RuleSet(r.Context(), rule.RuleSetQuery{
		EntityID:      input.EntityID,
		SubLocationID: input.SubLocationID,
		Mode:          h.ruleSetMode(r, mode),
		BaselinePrice: input.BaselinePrice,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("entity_id", input.EntityID).Msg("failed to assemble rule set")
		response.InternalError(w, r, "failed to load pricing rules")
		return
	}

	result, err := pricing.Resolve(*rs, q)
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	layers := pricing.Normalize(*rs, q)
	resp := models.NewComputeTimeslotsResponse(result, layers, enabledSet(layers, input.EnabledLayerIDs))
	response.JSON(w, r, http.StatusOK, resp)
}

// ListLayers handles GET /v1/pricing/layers - list the normalized layer
// stack for an entity, highest priority first.
func (h *PricingHandler) ListLayers(w http.ResponseWriter, r *http.Request) {
	entityID := r.URL.Query().Get("entityId")
	if entityID == "" {
		response.BadRequest(w, r, "entityId is required", nil)
		return
	}
	mode, ok := parseMode(r.URL.Query().Get("mode"))
	if !ok {
		response.BadRequest(w, r, "mode must be LIVE or SIMULATION", nil)
		return
	}

	rs, err := h.ruleService.RuleSet(r.Context(), rule.RuleSetQuery{
		EntityID:      entityID,
		SubLocationID: r.URL.Query().Get("subLocationId"),
		Mode:          mode,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("entity_id", entityID).Msg("failed to assemble rule set")
		response.InternalError(w, r, "failed to load pricing rules")
		return
	}

	layers := pricing.Normalize(*rs, pricing.Query{
		EntityID:     entityID,
		SurgeEnabled: true,
	})

	resp := models.LayerListResponse{Layers: make([]models.PricingLayer, 0, len(layers))}
	for _, l := range layers {
		resp.Layers = append(resp.Layers, models.NewPricingLayer(l, true))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// PreviewLayerRequest is the body for a layer toggle preview.
type PreviewLayerRequest struct {
	EntityID        string   `json:"entityId"`
	SubLocationID   string   `json:"subLocationId,omitempty"`
	EnabledLayerIDs []string `json:"enabledLayerIds"`
}

// PreviewLayerToggle handles POST /v1/pricing/layers:preview - validate a
// desired layer enablement set against the current stack. Disabling every
// level-default fallback is rejected so a simulation always has a floor.
func (h *PricingHandler) PreviewLayerToggle(w http.ResponseWriter, r *http.Request) {
	var input PreviewLayerRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.EntityID == "" {
		response.BadRequest(w, r, "entityId is required", nil)
		return
	}

	rs, err := h.ruleService.RuleSet(r.Context(), rule.RuleSetQuery{
		EntityID:      input.EntityID,
		SubLocationID: input.SubLocationID,
		Mode:          pricing.ModeSimulation,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("entity_id", input.EntityID).Msg("failed to assemble rule set")
		response.InternalError(w, r, "failed to load pricing rules")
		return
	}

	layers := pricing.Normalize(*rs, pricing.Query{
		EntityID:     input.EntityID,
		SurgeEnabled: true,
	})

	sim := pricing.NewSimulation(layers)
	wanted := make(map[string]bool, len(input.EnabledLayerIDs))
	for _, id := range input.EnabledLayerIDs {
		wanted[id] = true
	}
	for _, l := range layers {
		if wanted[l.ID] {
			continue
		}
		if err := sim.Disable(l.ID); err != nil {
			response.Conflict(w, r, err.Error())
			return
		}
	}

	resp := models.LayerListResponse{Layers: make([]models.PricingLayer, 0, len(layers))}
	for _, l := range sim.Layers() {
		resp.Layers = append(resp.Layers, models.NewPricingLayer(l, sim.IsEnabled(l.ID)))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

func (h *PricingHandler) validateComputeRequest(input *models.ComputeTimeslotsRequest) (pricing.Mode, []models.FieldError) {
	var errs []models.FieldError

	if input.EntityID == "" {
		errs = append(errs, models.FieldError{Field: "entityId", Message: "is required"})
	}
	if input.RangeStart.IsZero() {
		errs = append(errs, models.FieldError{Field: "rangeStart", Message: "is required"})
	}
	if input.RangeEnd.IsZero() {
		errs = append(errs, models.FieldError{Field: "rangeEnd", Message: "is required"})
	} else if !input.RangeEnd.After(input.RangeStart) {
		errs = append(errs, models.FieldError{Field: "rangeEnd", Message: "must be after rangeStart"})
	}
	if input.GranularityMinutes < 0 {
		errs = append(errs, models.FieldError{Field: "granularityMinutes", Message: "must be non-negative"})
	}

	mode, ok := parseMode(input.Mode)
	if !ok {
		errs = append(errs, models.FieldError{Field: "mode", Message: "must be LIVE or SIMULATION"})
	}

	return mode, errs
}

func (h *PricingHandler) buildQuery(input *models.ComputeTimeslotsRequest) (pricing.Query, error) {
	loc := time.UTC
	if input.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(input.Timezone)
		if err != nil {
			return pricing.Query{}, err
		}
	}

	granularity := time.Hour
	if input.GranularityMinutes > 0 {
		granularity = time.Duration(input.GranularityMinutes) * time.Minute
	}

	surgeEnabled := true
	if input.SurgeEnabled != nil {
		surgeEnabled = *input.SurgeEnabled
	}

	return pricing.Query{
		EntityID:        input.EntityID,
		RangeStart:      input.RangeStart,
		RangeEnd:        input.RangeEnd,
		Granularity:     granularity,
		IsEventBooking:  input.IsEventBooking,
		EnabledLayerIDs: input.EnabledLayerIDs,
		SurgeEnabled:    surgeEnabled,
		Location:        loc,
	}, nil
}

// ruleSetMode downgrades a simulation to live rule admission when draft
// preview is switched off.
func (h *PricingHandler) ruleSetMode(r *http.Request, mode pricing.Mode) pricing.Mode {
	if mode == pricing.ModeSimulation && h.flags != nil && !h.flags.IsDraftPreviewEnabled(r.Context()) {
		return pricing.ModeLive
	}
	return mode
}

// parseMode maps the wire mode to the engine mode. Empty defaults to LIVE.
func parseMode(s string) (pricing.Mode, bool) {
	switch s {
	case "", string(pricing.ModeLive):
		return pricing.ModeLive, true
	case string(pricing.ModeSimulation):
		return pricing.ModeSimulation, true
	default:
		return "", false
	}
}

// enabledSet maps each layer id to whether the request enabled it.
// A nil request set enables everything.
func enabledSet(layers []pricing.Layer, ids []string) map[string]bool {
	out := make(map[string]bool, len(layers))
	if ids == nil {
		for _, l := range layers {
			out[l.ID] = true
		}
		return out
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for _, l := range layers {
		out[l.ID] = wanted[l.ID]
	}
	return out
}
