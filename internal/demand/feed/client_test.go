package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rateboard/rateboard/internal/demand"
	"github.com/rateboard/rateboard/internal/demand/feed"
)

func TestClient_Name(t *testing.T) {
	client := feed.NewClient(feed.ClientConfig{
		APIKey: "****",
		Logger: zerolog.Nop(),
	})

	assert.Equal(t, "utilizationfeed", client.Name())
}

func TestClient_GetSample(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sublocations/sub_1/utilization", r.URL.Path)
		assert.Equal(t, "Bearer ****", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"subLocationId": "sub_1",
			"demand": 120,
			"supply": 60,
			"historicalAvgPressure": 1.0,
			"observedAt": "2026-03-02T17:00:00Z"
		}`))
	}))
	defer server.Close()

	client := feed.NewClient(feed.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	sample, err := client.GetSample(context.Background(), "sub_1")
	require.NoError(t, err)

	assert.Equal(t, "sub_1", sample.SubLocationID)
	assert.Equal(t, 120.0, sample.Demand)
	assert.Equal(t, 60.0, sample.Supply)
	assert.Equal(t, 1.0, sample.HistoricalAvgPressure)
	assert.Equal(t, "utilizationfeed", sample.Provider)
	assert.Equal(t, 2026, sample.ObservedAt.Year())
}

func TestClient_GetSample_UnknownSubLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "UNKNOWN_SUBLOCATION", "message": "no such sub-location"}`))
	}))
	defer server.Close()

	client := feed.NewClient(feed.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	_, err := client.GetSample(context.Background(), "sub_missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, demand.ErrSubLocationUnknown)

	var ferr *demand.Error
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "UNKNOWN_SUBLOCATION", ferr.Code)
	assert.False(t, ferr.IsRetryable())
}

func TestClient_GetSample_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code": "RATE_LIMIT", "message": "slow down"}`))
	}))
	defer server.Close()

	client := feed.NewClient(feed.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	_, err := client.GetSample(context.Background(), "sub_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, demand.ErrRateLimitExceeded)

	var ferr *demand.Error
	require.ErrorAs(t, err, &ferr)
	assert.True(t, ferr.IsRetryable())
}

func TestClient_GetSample_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
	}))
	defer server.Close()

	client := feed.NewClient(feed.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	_, err := client.GetSample(context.Background(), "sub_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, demand.ErrProviderUnavailable)
}

func TestClient_GetSample_FillsMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"demand": 10, "supply": 5}`))
	}))
	defer server.Close()

	client := feed.NewClient(feed.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})

	sample, err := client.GetSample(context.Background(), "sub_1")
	require.NoError(t, err)

	assert.Equal(t, "sub_1", sample.SubLocationID)
	assert.False(t, sample.ObservedAt.IsZero())
}
