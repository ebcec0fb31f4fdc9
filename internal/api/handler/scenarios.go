package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/api/models"
	"github.com/rateboard/rateboard/internal/api/response"
	"github.com/rateboard/rateboard/internal/pricing"
	"github.com/rateboard/rateboard/internal/rule"
	"github.com/rateboard/rateboard/internal/scenario"
)

// ScenarioHandler handles saved-scenario endpoints.
type ScenarioHandler struct {
	service     *scenario.Service
	ruleService *rule.Service
	logger      zerolog.Logger
}

// NewScenarioHandler creates a new ScenarioHandler.
func NewScenarioHandler(service *scenario.Service, ruleService *rule.Service, logger zerolog.Logger) *ScenarioHandler {
	return &ScenarioHandler{
		service:     service,
		ruleService: ruleService,
		logger:      logger,
	}
}

// newScenarioModel converts a stored scenario to its API representation.
func newScenarioModel(sc *scenario.Scenario) models.Scenario {
	return models.Scenario{
		ID:              sc.ID,
		SubLocationID:   sc.SubLocationID,
		Name:            sc.Name,
		EnabledLayerIDs: sc.EnabledLayerIDs,
		Parameters:      scenarioParamsModel(sc.Parameters),
		CreatedAt:       models.Timestamp(sc.CreatedAt),
		UpdatedAt:       models.Timestamp(sc.UpdatedAt),
	}
}

func scenarioParamsModel(p scenario.Parameters) models.ScenarioParameters {
	return models.ScenarioParameters{
		SelectedDurationHours: p.SelectedDurationHours,
		ViewWindow:            scenarioWindowModel(p.ViewWindow),
		RangeWindow:           scenarioWindowModel(p.RangeWindow),
		SurgeEnabled:          p.SurgeEnabled,
		PricingCoefficients:   p.PricingCoefficients,
		IsEventBooking:        p.IsEventBooking,
	}
}

func scenarioParamsFromModel(p models.ScenarioParameters) scenario.Parameters {
	return scenario.Parameters{
		SelectedDurationHours: p.SelectedDurationHours,
		ViewWindow:            scenarioWindowFromModel(p.ViewWindow),
		RangeWindow:           scenarioWindowFromModel(p.RangeWindow),
		SurgeEnabled:          p.SurgeEnabled,
		PricingCoefficients:   p.PricingCoefficients,
		IsEventBooking:        p.IsEventBooking,
	}
}

func scenarioWindowModel(w *scenario.Window) *models.ScenarioWindow {
	if w == nil {
		return nil
	}
	return &models.ScenarioWindow{Start: w.Start, End: w.End}
}

func scenarioWindowFromModel(w *models.ScenarioWindow) *scenario.Window {
	if w == nil {
		return nil
	}
	return &scenario.Window{Start: w.Start, End: w.End}
}

// ListScenarios handles GET /v1/scenarios - list scenarios of a sub-location.
func (h *ScenarioHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	subLocationID := r.URL.Query().Get("subLocationId")
	if subLocationID == "" {
		response.BadRequest(w, r, "subLocationId is required", nil)
		return
	}

	scenarios, err := h.service.List(r.Context(), subLocationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := models.ScenarioList{Items: make([]models.Scenario, 0, len(scenarios))}
	for _, sc := range scenarios {
		resp.Items = append(resp.Items, newScenarioModel(sc))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// SaveScenario handles POST /v1/scenarios - save the current simulation
// state as a new named scenario.
func (h *ScenarioHandler) SaveScenario(w http.ResponseWriter, r *http.Request) {
	var input models.ScenarioSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	saved, err := h.service.Save(r.Context(), &scenario.SaveInput{
		SubLocationID:   input.SubLocationID,
		Name:            input.Name,
		EnabledLayerIDs: input.EnabledLayerIDs,
		Parameters:      scenarioParamsFromModel(input.Parameters),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/scenarios/%s", saved.ID)
	response.Created(w, r, location, newScenarioModel(saved))
}

// GetScenario handles GET /v1/scenarios/{scenarioId}.
func (h *ScenarioHandler) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := h.service.Get(r.Context(), chi.URLParam(r, "scenarioId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, newScenarioModel(sc))
}

// OverwriteScenario handles PUT /v1/scenarios/{scenarioId} - overwrite a
// saved scenario with the current session state.
func (h *ScenarioHandler) OverwriteScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioId")

	var input models.ScenarioSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	updated, err := h.service.Overwrite(r.Context(), scenarioID, &scenario.SaveInput{
		SubLocationID:   input.SubLocationID,
		Name:            input.Name,
		EnabledLayerIDs: input.EnabledLayerIDs,
		Parameters:      scenarioParamsFromModel(input.Parameters),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, newScenarioModel(updated))
}

// DeleteScenario handles DELETE /v1/scenarios/{scenarioId}.
func (h *ScenarioHandler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "scenarioId")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// RestoreScenario handles POST /v1/scenarios/{scenarioId}/restore - replay a
// saved scenario against the current rule population. Saved layer ids that
// no longer exist are dropped silently.
func (h *ScenarioHandler) RestoreScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioId")

	var input models.ScenarioRestoreRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			response.BadRequest(w, r, "invalid JSON body", nil)
			return
		}
	}

	sc, err := h.service.Get(r.Context(), scenarioID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	entityID := input.EntityID
	if entityID == "" {
		entityID = sc.SubLocationID
	}

	rs, err := h.ruleService.RuleSet(r.Context(), rule.RuleSetQuery{
		EntityID:      entityID,
		SubLocationID: sc.SubLocationID,
		Mode:          pricing.ModeSimulation,
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

	_, sim, err := h.service.Restore(r.Context(), scenarioID, layers)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	known := make(map[string]bool, len(layers))
	for _, l := range layers {
		known[l.ID] = true
	}
	var dropped []string
	for _, id := range sc.EnabledLayerIDs {
		if !known[id] {
			dropped = append(dropped, id)
		}
	}

	resp := models.ScenarioRestoreResponse{
		Scenario:        newScenarioModel(sc),
		EnabledLayerIDs: sim.EnabledIDs(),
		Layers:          make([]models.PricingLayer, 0, len(layers)),
		DroppedLayerIDs: dropped,
	}
	for _, l := range sim.Layers() {
		resp.Layers = append(resp.Layers, models.NewPricingLayer(l, sim.IsEnabled(l.ID)))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// DiffScenario handles POST /v1/scenarios/{scenarioId}/diff - report whether
// the current in-session state (layer set and parameters) diverged from the
// saved one.
func (h *ScenarioHandler) DiffScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "scenarioId")

	var input models.ScenarioDiffRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	changed, err := h.service.HasUnsavedChanges(r.Context(), scenarioID, input.EnabledLayerIDs, scenarioParamsFromModel(input.Parameters))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.ScenarioDiffResponse{HasUnsavedChanges: changed})
}

// writeServiceError maps scenario service errors to problem responses.
func (h *ScenarioHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *scenario.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "validation failed", validationErr.Errors)
	case errors.Is(err, scenario.ErrScenarioNotFound):
		response.NotFound(w, r, err.Error())
	default:
		h.logger.Error().Err(err).Msg("scenario service error")
		response.InternalError(w, r, "internal error")
	}
}
