package demand

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the demand service.
type ServiceConfig struct {
	// Provider is the demand feed provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache samples (default: 1 minute).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale samples on feed errors
	// (default: 10 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often to clean up expired entries (default: 5 minutes).
	CleanupInterval time.Duration

	// CachedOnly, when it reports true, suppresses feed calls and serves
	// whatever is cached regardless of age. Used as an operational kill
	// switch while the feed misbehaves.
	CachedOnly func(ctx context.Context) bool
}

// Service provides demand samples with caching. Surge pricing degrades
// gracefully when the feed is flaky: recent samples are served from cache
// and stale ones are served on error until StaleIfErrorTTL runs out.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration
	cachedOnly      func(ctx context.Context) bool

	mu          sync.RWMutex
	cache       map[string]*cachedSample
	lastCleanup time.Time
}

type cachedSample struct {
	sample    *Sample
	fetchedAt time.Time
	expiresAt time.Time
}

// NewService creates a new demand service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 1 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 10 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		cachedOnly:      cfg.CachedOnly,
		cache:           make(map[string]*cachedSample),
	}
}

// GetSample returns the current demand sample for a sub-location.
// Uses cached data if available and not expired.
func (s *Service) GetSample(ctx context.Context, subLocationID string) (*Sample, error) {
	if s.cachedOnly != nil && s.cachedOnly(ctx) {
		s.mu.RLock()
		cached, ok := s.cache[subLocationID]
		s.mu.RUnlock()
		if !ok {
			return nil, ErrProviderUnavailable
		}
		s.logger.Debug().
			Str("sub_location_id", subLocationID).
			Msg("serving cached demand sample (cached-only mode)")
		return cached.sample, nil
	}

	s.mu.RLock()
	if cached, ok := s.cache[subLocationID]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.logger.Debug().
			Str("sub_location_id", subLocationID).
			Msg("cache hit for demand sample")
		return cached.sample, nil
	}
	s.mu.RUnlock()

	return s.fetchSample(ctx, subLocationID)
}

// fetchSample fetches a sample from the provider and updates the cache.
func (s *Service) fetchSample(ctx context.Context, subLocationID string) (*Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check cache (prevents thundering herd)
	if cached, ok := s.cache[subLocationID]; ok && time.Now().Before(cached.expiresAt) {
		return cached.sample, nil
	}

	sample, err := s.provider.GetSample(ctx, subLocationID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("sub_location_id", subLocationID).
			Str("provider", s.provider.Name()).
			Msg("failed to fetch demand sample")

		// Stale-if-error: an old observation beats no observation for
		// surge purposes.
		if cached, ok := s.cache[subLocationID]; ok {
			if time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
				s.logger.Warn().
					Str("sub_location_id", subLocationID).
					Time("fetched_at", cached.fetchedAt).
					Msg("serving stale demand sample due to feed error")
				return cached.sample, nil
			}
		}

		return nil, err
	}

	now := time.Now()
	s.cache[subLocationID] = &cachedSample{
		sample:    sample,
		fetchedAt: now,
		expiresAt: now.Add(s.cacheTTL),
	}

	s.cleanupIfNeeded()

	return sample, nil
}

// cleanupIfNeeded removes expired entries if cleanup interval has passed.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.cache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired demand cache entries")
	}
}
