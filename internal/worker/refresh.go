package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/demand"
	"github.com/rateboard/rateboard/internal/rule"
)

// RefreshJob pulls fresh demand/supply samples from the feed and writes
// them into the surge configs so the next resolution passes price against
// current telemetry.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	demandService *demand.Service
	ruleService   *rule.Service

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes  int64
	SuccessfulRuns  int64
	FailedRuns      int64
	SamplesFetched  int64
	ConfigsUpdated  int64
	OrphanedSamples int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config        RefreshConfig
	Logger        zerolog.Logger
	DemandService *demand.Service
	RuleService   *rule.Service
}

// NewRefreshJob creates a new telemetry refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultRefreshConfig().Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshConfig().Timeout
	}

	return &RefreshJob{
		config:        config,
		logger:        cfg.Logger,
		demandService: cfg.DemandService,
		ruleService:   cfg.RuleService,
		metrics:       &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
	TotalSubLocations int
	Successful        int
	Failed            int
	ConfigsUpdated    int
	Errors            []RefreshError
}

// RefreshError represents an error during refresh.
type RefreshError struct {
	SubLocationID string
	Error         string
}

// Run executes the refresh job for all configured sub-locations.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	ids, err := j.subLocations(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to discover refresh targets")
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		return result
	}
	result.TotalSubLocations = len(ids)

	j.logger.Info().
		Int("sub_locations", len(ids)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting telemetry refresh job")

	idsChan := make(chan string, len(ids))
	resultsChan := make(chan subLocationResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, idsChan, resultsChan)
		}()
	}

	for _, id := range ids {
		idsChan <- id
	}
	close(idsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for sr := range resultsChan {
		if sr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				SubLocationID: sr.subLocationID,
				Error:         sr.err.Error(),
			})
			continue
		}
		result.Successful++
		result.ConfigsUpdated += sr.configsUpdated
		if sr.configsUpdated == 0 {
			atomic.AddInt64(&j.metrics.OrphanedSamples, 1)
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("configs_updated", result.ConfigsUpdated).
		Msg("telemetry refresh job completed")

	return result
}

// subLocations resolves the sub-locations to refresh: either the
// configured targets, or every sub-location with a stored surge config.
func (j *RefreshJob) subLocations(ctx context.Context) ([]string, error) {
	if len(j.config.Targets) > 0 {
		return j.config.AllSubLocations(), nil
	}

	configs, err := j.ruleService.ListSurgeConfigs(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	for _, cfg := range configs {
		if !cfg.IsActive || seen[cfg.SubLocationID] {
			continue
		}
		seen[cfg.SubLocationID] = true
		ids = append(ids, cfg.SubLocationID)
	}
	return ids, nil
}

type subLocationResult struct {
	subLocationID  string
	configsUpdated int
	err            error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, ids <-chan string, results chan<- subLocationResult) {
	for id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.refreshSubLocation(ctx, id)
		}
	}
}

// refreshSubLocation fetches one sample and writes it through the rule
// service.
func (j *RefreshJob) refreshSubLocation(ctx context.Context, subLocationID string) subLocationResult {
	result := subLocationResult{subLocationID: subLocationID}

	refreshCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	sample, err := j.demandService.GetSample(refreshCtx, subLocationID)
	if err != nil {
		result.err = err
		return result
	}
	atomic.AddInt64(&j.metrics.SamplesFetched, 1)

	// The write is retried on transient failures; the sample was already
	// paid for.
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), refreshCtx)
	var updated int
	err = backoff.Retry(func() error {
		var writeErr error
		updated, writeErr = j.ruleService.UpdateTelemetry(refreshCtx, rule.Telemetry{
			SubLocationID:         subLocationID,
			CurrentDemand:         sample.Demand,
			CurrentSupply:         sample.Supply,
			HistoricalAvgPressure: sample.HistoricalAvgPressure,
		})
		return writeErr
	}, bo)
	if err != nil {
		result.err = err
		return result
	}

	result.configsUpdated = updated
	if updated == 0 {
		j.logger.Warn().
			Str("sub_location_id", subLocationID).
			Msg("sample fetched but no active surge config to apply it to")
	}

	return result
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulRuns += int64(result.Successful)
	j.metrics.FailedRuns += int64(result.Failed)
	j.metrics.ConfigsUpdated += int64(result.ConfigsUpdated)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRuns:      j.metrics.SuccessfulRuns,
		FailedRuns:          j.metrics.FailedRuns,
		SamplesFetched:      atomic.LoadInt64(&j.metrics.SamplesFetched),
		ConfigsUpdated:      j.metrics.ConfigsUpdated,
		OrphanedSamples:     atomic.LoadInt64(&j.metrics.OrphanedSamples),
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_runs":       m.SuccessfulRuns,
		"failed_runs":           m.FailedRuns,
		"samples_fetched":       m.SamplesFetched,
		"configs_updated":       m.ConfigsUpdated,
		"orphaned_samples":      m.OrphanedSamples,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
