package rule

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/api/models"
	"github.com/rateboard/rateboard/internal/pricing"
)

// Service errors.
var (
	// ErrRuleImmutable is returned when editing a rule whose status no
	// longer permits changes. Approved rules are frozen; corrections go
	// through a new draft.
	ErrRuleImmutable = errors.New("rule can no longer be edited")
)

// Validation constants.
const (
	MaxNameLength = 120
)

// timeHHMMRegex validates HH:mm format.
var timeHHMMRegex = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// ServiceConfig holds configuration for the rule service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// LevelRanges are the priority bands rules are validated against.
	// Defaults to pricing.DefaultLevelRanges.
	LevelRanges map[pricing.Level]pricing.LevelRange
}

// Service provides pricing-rule lifecycle operations and rule-set assembly.
type Service struct {
	repo        Repository
	logger      zerolog.Logger
	levelRanges map[pricing.Level]pricing.LevelRange
}

// NewService creates a new rule service.
func NewService(cfg ServiceConfig) *Service {
	ranges := cfg.LevelRanges
	if ranges == nil {
		ranges = pricing.DefaultLevelRanges()
	}

	return &Service{
		repo:        cfg.Repository,
		logger:      cfg.Logger,
		levelRanges: ranges,
	}
}

// CreateInput holds the fields for a new pricing rule. New rules always
// start as drafts.
type CreateInput struct {
	Name               string
	EntityID           string
	Level              pricing.Level
	Priority           int
	Kind               pricing.RuleKind
	ConflictResolution pricing.ConflictResolution
	EffectiveFrom      time.Time
	EffectiveTo        *time.Time
	Windows            []pricing.TimeWindow
}

// UpdateInput holds the editable fields of a draft rule. Nil fields are
// left unchanged.
type UpdateInput struct {
	Name          *string
	Priority      *int
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	Windows       []pricing.TimeWindow
	IsActive      *bool
}

// Create validates and stores a new draft rule.
func (s *Service) Create(ctx context.Context, input *CreateInput) (*pricing.PricingRule, error) {
	if fieldErrors := s.validateCreateInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := time.Now()
	rule := &pricing.PricingRule{
		ID:                 "rul_" + uuid.New().String()[:22],
		Name:               input.Name,
		EntityID:           input.EntityID,
		Level:              input.Level,
		Priority:           input.Priority,
		Kind:               input.Kind,
		ConflictResolution: input.ConflictResolution,
		EffectiveFrom:      input.EffectiveFrom,
		EffectiveTo:        input.EffectiveTo,
		IsActive:           true,
		ApprovalStatus:     pricing.StatusDraft,
		Windows:            input.Windows,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if rule.ConflictResolution == "" {
		rule.ConflictResolution = pricing.ResolvePriority
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("rule_id", rule.ID).
		Str("entity_id", rule.EntityID).
		Str("level", string(rule.Level)).
		Int("priority", rule.Priority).
		Msg("pricing rule created")

	return rule, nil
}

// Get retrieves a pricing rule by ID.
func (s *Service) Get(ctx context.Context, id string) (*pricing.PricingRule, error) {
	return s.repo.GetRule(ctx, id)
}

// List retrieves pricing rules matching the options.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	return s.repo.ListRules(ctx, opts)
}

// Update edits a rule. Only drafts and rejected rules are editable;
// approved rules are frozen.
func (s *Service) Update(ctx context.Context, id string, input *UpdateInput) (*pricing.PricingRule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if rule.ApprovalStatus != pricing.StatusDraft && rule.ApprovalStatus != pricing.StatusRejected {
		return nil, ErrRuleImmutable
	}

	if fieldErrors := s.validateUpdateInput(rule, input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	if input.Name != nil {
		rule.Name = *input.Name
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.EffectiveFrom != nil {
		rule.EffectiveFrom = *input.EffectiveFrom
	}
	if input.EffectiveTo != nil {
		rule.EffectiveTo = input.EffectiveTo
	}
	if input.Windows != nil {
		rule.Windows = input.Windows
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	// Edits to a rejected rule put it back into the draft state.
	rule.ApprovalStatus = pricing.StatusDraft
	rule.UpdatedAt = time.Now()

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// Delete removes a rule. Approved rules cannot be deleted, only archived.
func (s *Service) Delete(ctx context.Context, id string) error {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return err
	}

	if rule.ApprovalStatus == pricing.StatusApproved {
		return ErrRuleImmutable
	}

	return s.repo.DeleteRule(ctx, id)
}

// Transition moves a rule through the approval workflow.
func (s *Service) Transition(ctx context.Context, id string, to pricing.ApprovalStatus) (*pricing.PricingRule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if !TransitionAllowed(rule.ApprovalStatus, to) {
		return nil, ErrInvalidTransition
	}

	from := rule.ApprovalStatus
	rule.ApprovalStatus = to
	rule.UpdatedAt = time.Now()

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("rule_id", rule.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("pricing rule status changed")

	return rule, nil
}

// MaterializeInput describes a surge materialization request: the live
// multiplier of the config is frozen as a snapshot into a new approved
// timed rule covering the given windows.
type MaterializeInput struct {
	SurgeConfigID string
	EntityID      string
	Name          string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Windows       []pricing.TimeWindow
}

// MaterializeSurge freezes the config's current multiplier into an approved
// rule. The rule carries the config id and the snapshot, so from then on the
// resolver prices those windows with the frozen multiplier and suppresses
// the live surge layer.
func (s *Service) MaterializeSurge(ctx context.Context, input *MaterializeInput) (*pricing.PricingRule, error) {
	cfg, err := s.repo.GetSurgeConfig(ctx, input.SurgeConfigID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsActive {
		return nil, ErrSurgeInactive
	}

	mult, err := pricing.SurgeMultiplier(cfg)
	if err != nil {
		return nil, ErrSurgeInactive
	}

	if fieldErrors := s.validateWindows(input.Windows, pricing.KindTimingBased); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	name := input.Name
	if name == "" {
		name = "Surge " + cfg.SubLocationID
	}

	now := time.Now()
	id := cfg.ID
	rule := &pricing.PricingRule{
		ID:                      "rul_" + uuid.New().String()[:22],
		Name:                    name,
		EntityID:                input.EntityID,
		Level:                   pricing.LevelEvent,
		Priority:                cfg.Priority,
		Kind:                    pricing.KindTimingBased,
		ConflictResolution:      pricing.ResolvePriority,
		EffectiveFrom:           input.EffectiveFrom,
		EffectiveTo:             input.EffectiveTo,
		IsActive:                true,
		ApprovalStatus:          pricing.StatusApproved,
		Windows:                 input.Windows,
		SurgeConfigID:           &id,
		SurgeMultiplierSnapshot: &mult,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("rule_id", rule.ID).
		Str("surge_config_id", cfg.ID).
		Float64("multiplier", mult).
		Msg("surge materialized")

	return rule, nil
}

// RuleSetQuery selects the snapshot to assemble for one resolution pass.
type RuleSetQuery struct {
	EntityID      string
	SubLocationID string
	Mode          pricing.Mode
	BaselinePrice *float64
}

// RuleSet assembles the immutable snapshot the pricing engine resolves:
// the entity's rules admitted by the mode, its default rates and the
// highest-priority active surge config of the sub-location, if any.
func (s *Service) RuleSet(ctx context.Context, q RuleSetQuery) (*pricing.RuleSet, error) {
	statuses := []pricing.ApprovalStatus{pricing.StatusApproved}
	if q.Mode == pricing.ModeSimulation {
		statuses = append(statuses, pricing.StatusDraft, pricing.StatusPendingApproval)
	}

	rules, err := s.repo.ListRules(ctx, ListOptions{
		EntityID: q.EntityID,
		Statuses: statuses,
		Limit:    500,
	})
	if err != nil {
		return nil, err
	}

	defaults, err := s.repo.ListDefaults(ctx, q.EntityID)
	if err != nil {
		return nil, err
	}

	rs := &pricing.RuleSet{
		Rules:         rules.Items,
		Defaults:      defaults,
		Mode:          q.Mode,
		BaselinePrice: q.BaselinePrice,
	}

	if q.SubLocationID != "" {
		cfg, err := s.repo.GetSurgeConfigForSubLocation(ctx, q.SubLocationID)
		switch {
		case err == nil:
			rs.Surge = cfg
		case errors.Is(err, ErrSurgeConfigNotFound):
			// No active surge; the snapshot is complete without it.
		default:
			return nil, err
		}
	}

	return rs, nil
}

// ListDefaults retrieves the default rates configured for an entity.
func (s *Service) ListDefaults(ctx context.Context, entityID string) ([]pricing.DefaultRate, error) {
	return s.repo.ListDefaults(ctx, entityID)
}

// PutDefault creates or replaces the default rate for one level of an
// entity's hierarchy.
func (s *Service) PutDefault(ctx context.Context, entityID string, rate pricing.DefaultRate) error {
	if _, ok := s.levelRanges[rate.Level]; !ok {
		return &ValidationError{Errors: []models.FieldError{
			{Field: "level", Message: "must be a known hierarchy level"},
		}}
	}
	if rate.HourlyRate < 0 {
		return &ValidationError{Errors: []models.FieldError{
			{Field: "hourlyRate", Message: "must be non-negative"},
		}}
	}

	if err := s.repo.PutDefault(ctx, entityID, rate); err != nil {
		return err
	}

	s.logger.Info().
		Str("entity_id", entityID).
		Str("level", string(rate.Level)).
		Float64("hourly_rate", rate.HourlyRate).
		Msg("default rate set")

	return nil
}

// DeleteDefault removes the default rate for one level.
func (s *Service) DeleteDefault(ctx context.Context, entityID string, level pricing.Level) error {
	return s.repo.DeleteDefault(ctx, entityID, level)
}

// ListSurgeConfigs retrieves every stored surge config.
func (s *Service) ListSurgeConfigs(ctx context.Context) ([]*pricing.SurgeConfig, error) {
	return s.repo.ListSurgeConfigs(ctx)
}

// GetSurgeConfig retrieves a surge config by ID.
func (s *Service) GetSurgeConfig(ctx context.Context, id string) (*pricing.SurgeConfig, error) {
	return s.repo.GetSurgeConfig(ctx, id)
}

// PutSurgeConfig creates or replaces a surge config.
func (s *Service) PutSurgeConfig(ctx context.Context, cfg *pricing.SurgeConfig) error {
	return s.repo.PutSurgeConfig(ctx, cfg)
}

// UpdateTelemetry applies a demand/supply observation and reports how many
// configs it reached.
func (s *Service) UpdateTelemetry(ctx context.Context, obs Telemetry) (int, error) {
	updated, err := s.repo.UpdateTelemetry(ctx, obs)
	if err != nil {
		return 0, err
	}

	s.logger.Debug().
		Str("sub_location_id", obs.SubLocationID).
		Float64("demand", obs.CurrentDemand).
		Float64("supply", obs.CurrentSupply).
		Int("configs", updated).
		Msg("surge telemetry updated")

	return updated, nil
}

// validateCreateInput validates the create rule input.
func (s *Service) validateCreateInput(input *CreateInput) []models.FieldError {
	var errs []models.FieldError

	if input.Name == "" {
		errs = append(errs, models.FieldError{Field: "name", Message: "is required"})
	} else if len(input.Name) > MaxNameLength {
		errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 120 characters"})
	}

	if input.EntityID == "" {
		errs = append(errs, models.FieldError{Field: "entityId", Message: "is required"})
	}

	band, ok := s.levelRanges[input.Level]
	if !ok {
		errs = append(errs, models.FieldError{Field: "level", Message: "must be a known hierarchy level"})
	} else if input.Priority < band.Min || input.Priority > band.Max {
		errs = append(errs, models.FieldError{Field: "priority", Message: "must be within the level's priority band"})
	}

	if input.Kind != pricing.KindTimingBased && input.Kind != pricing.KindDurationBased {
		errs = append(errs, models.FieldError{Field: "kind", Message: "must be TIMING_BASED or DURATION_BASED"})
	}

	if input.EffectiveFrom.IsZero() {
		errs = append(errs, models.FieldError{Field: "effectiveFrom", Message: "is required"})
	} else if input.EffectiveTo != nil && !input.EffectiveTo.After(input.EffectiveFrom) {
		errs = append(errs, models.FieldError{Field: "effectiveTo", Message: "must be after effectiveFrom"})
	}

	errs = append(errs, s.validateWindows(input.Windows, input.Kind)...)

	return errs
}

// validateUpdateInput validates the update rule input.
func (s *Service) validateUpdateInput(rule *pricing.PricingRule, input *UpdateInput) []models.FieldError {
	var errs []models.FieldError

	if input.Name != nil {
		if *input.Name == "" {
			errs = append(errs, models.FieldError{Field: "name", Message: "cannot be empty"})
		} else if len(*input.Name) > MaxNameLength {
			errs = append(errs, models.FieldError{Field: "name", Message: "must be at most 120 characters"})
		}
	}

	if input.Priority != nil {
		band := s.levelRanges[rule.Level]
		if *input.Priority < band.Min || *input.Priority > band.Max {
			errs = append(errs, models.FieldError{Field: "priority", Message: "must be within the level's priority band"})
		}
	}

	from := rule.EffectiveFrom
	if input.EffectiveFrom != nil {
		from = *input.EffectiveFrom
	}
	to := rule.EffectiveTo
	if input.EffectiveTo != nil {
		to = input.EffectiveTo
	}
	if to != nil && !to.After(from) {
		errs = append(errs, models.FieldError{Field: "effectiveTo", Message: "must be after effectiveFrom"})
	}

	if input.Windows != nil {
		errs = append(errs, s.validateWindows(input.Windows, rule.Kind)...)
	}

	return errs
}

// validateWindows validates a rule's time windows.
func (s *Service) validateWindows(windows []pricing.TimeWindow, kind pricing.RuleKind) []models.FieldError {
	if len(windows) == 0 {
		return []models.FieldError{{Field: "windows", Message: "at least one window is required"}}
	}

	var errs []models.FieldError
	for i, w := range windows {
		field := fieldAt("windows", i)

		switch w.Type {
		case pricing.WindowAbsoluteTime:
			if !timeHHMMRegex.MatchString(w.StartTime) {
				errs = append(errs, models.FieldError{Field: field + ".startTime", Message: "must be in HH:mm format"})
			}
			if !timeHHMMRegex.MatchString(w.EndTime) {
				errs = append(errs, models.FieldError{Field: field + ".endTime", Message: "must be in HH:mm format"})
			}
			for _, day := range w.DaysOfWeek {
				if day < 0 || day > 6 {
					errs = append(errs, models.FieldError{Field: field + ".daysOfWeek", Message: "must contain values between 0 and 6"})
					break
				}
			}
		case pricing.WindowDurationBased:
			if kind != pricing.KindDurationBased {
				errs = append(errs, models.FieldError{Field: field + ".type", Message: "duration windows require a DURATION_BASED rule"})
			}
			if w.StartMinute == nil || w.EndMinute == nil {
				errs = append(errs, models.FieldError{Field: field, Message: "startMinute and endMinute are required"})
			} else if *w.StartMinute < 0 || *w.EndMinute <= *w.StartMinute {
				errs = append(errs, models.FieldError{Field: field, Message: "endMinute must be after a non-negative startMinute"})
			}
		default:
			errs = append(errs, models.FieldError{Field: field + ".type", Message: "must be ABSOLUTE_TIME or DURATION_BASED"})
		}

		if w.PricePerHour < 0 {
			errs = append(errs, models.FieldError{Field: field + ".pricePerHour", Message: "must be non-negative"})
		}
	}

	return errs
}

func fieldAt(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
