package demand_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rateboard/rateboard/internal/demand"
)

// fakeProvider is a scripted provider for service tests.
type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	sample *demand.Sample
	err    error
}

func (p *fakeProvider) GetSample(_ context.Context, subLocationID string) (*demand.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	s := *p.sample
	s.SubLocationID = subLocationID
	return &s, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakeProvider) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sample: &demand.Sample{
			Demand:                120,
			Supply:                60,
			HistoricalAvgPressure: 1.0,
			ObservedAt:            time.Now(),
		},
	}
}

func TestService_GetSample_CachesBySubLocation(t *testing.T) {
	provider := newFakeProvider()
	service := demand.NewService(demand.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
		CacheTTL: time.Minute,
	})
	ctx := context.Background()

	first, err := service.GetSample(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", first.SubLocationID)

	// Second call within the TTL hits the cache.
	_, err = service.GetSample(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.callCount())

	// A different sub-location is its own cache entry.
	_, err = service.GetSample(ctx, "sub_2")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.callCount())
}

func TestService_GetSample_StaleIfError(t *testing.T) {
	provider := newFakeProvider()
	service := demand.NewService(demand.ServiceConfig{
		Provider:        provider,
		Logger:          zerolog.Nop(),
		CacheTTL:        time.Nanosecond, // force expiry between calls
		StaleIfErrorTTL: time.Minute,
	})
	ctx := context.Background()

	fresh, err := service.GetSample(ctx, "sub_1")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	provider.fail(demand.ErrProviderUnavailable)

	stale, err := service.GetSample(ctx, "sub_1")
	require.NoError(t, err, "expected the stale sample to be served on feed error")
	assert.Equal(t, fresh.Demand, stale.Demand)
}

func TestService_GetSample_ErrorWithoutCache(t *testing.T) {
	provider := newFakeProvider()
	provider.fail(demand.ErrProviderUnavailable)

	service := demand.NewService(demand.ServiceConfig{
		Provider: provider,
		Logger:   zerolog.Nop(),
	})

	_, err := service.GetSample(context.Background(), "sub_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, demand.ErrProviderUnavailable))
}

func TestService_GetSample_CachedOnlyMode(t *testing.T) {
	provider := newFakeProvider()
	cachedOnly := false
	service := demand.NewService(demand.ServiceConfig{
		Provider:   provider,
		Logger:     zerolog.Nop(),
		CacheTTL:   time.Nanosecond, // force expiry between calls
		CachedOnly: func(context.Context) bool { return cachedOnly },
	})
	ctx := context.Background()

	fresh, err := service.GetSample(ctx, "sub_1")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	cachedOnly = true

	// The expired cache entry is still served and the feed is not called.
	cached, err := service.GetSample(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, fresh.Demand, cached.Demand)
	assert.Equal(t, 1, provider.callCount())

	// Sub-locations never fetched have nothing to serve.
	_, err = service.GetSample(ctx, "sub_2")
	assert.ErrorIs(t, err, demand.ErrProviderUnavailable)
}
