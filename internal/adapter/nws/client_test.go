package nws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newNWSServer serves a points response pointing at its own hourly endpoint.
func newNWSServer(t *testing.T, hourlyBody string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/points/39.1154,-107.6584":
			assert.Contains(t, r.Header.Get("User-Agent"), "radarcache")
			fmt.Fprintf(w, `{"properties":{"forecastHourly":"%s/gridpoints/GJT/96,87/forecast/hourly"}}`, srv.URL)
		case r.URL.Path == "/gridpoints/GJT/96,87/forecast/hourly":
			_, _ = w.Write([]byte(hourlyBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return srv
}

const hourlyJSON = `{
	"properties": {
		"periods": [
			{"startTime": "2026-08-30T10:00:00-06:00", "temperature": 72, "temperatureUnit": "F"},
			{"startTime": "2026-08-30T11:00:00-06:00", "temperature": 74, "temperatureUnit": "F"},
			{"startTime": "not-a-time", "temperature": 99, "temperatureUnit": "F"},
			{"startTime": "2026-08-30T12:00:00-06:00", "temperature": 24, "temperatureUnit": "C"}
		]
	}
}`

func TestHourlyForecast_TwoStepFetch(t *testing.T) {
	srv := newNWSServer(t, hourlyJSON)
	defer srv.Close()

	c := NewClient(srv.URL, "radarcache test", 5*time.Second, testLogger())
	periods, err := c.HourlyForecast(context.Background(), 39.1154, -107.6584)
	require.NoError(t, err)

	// The malformed period is skipped, not fatal.
	require.Len(t, periods, 3)
	assert.Equal(t, 72.0, periods[0].Temperature)
	assert.Equal(t, "F", periods[0].Unit)
	assert.Equal(t, 24.0, periods[2].Temperature)
	assert.Equal(t, "C", periods[2].Unit)

	want, _ := time.Parse(time.RFC3339, "2026-08-30T10:00:00-06:00")
	assert.True(t, periods[0].Time.Equal(want))
}

func TestHourlyForecast_PointsLookupFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "radarcache test", 5*time.Second, testLogger())
	_, err := c.HourlyForecast(context.Background(), 39.0, -107.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "points lookup")
}

func TestHourlyForecast_MissingHourlyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"properties":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "radarcache test", 5*time.Second, testLogger())
	_, err := c.HourlyForecast(context.Background(), 39.0, -107.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hourly forecast URL")
}

func TestHourlyForecast_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "radarcache test", 5*time.Second, testLogger())

	for i := 0; i < 5; i++ {
		_, err := c.HourlyForecast(context.Background(), 39.0, -107.0)
		require.Error(t, err)
	}
	hitsBefore := hits

	// Breaker is open: upstream must not be touched anymore.
	_, err := c.HourlyForecast(context.Background(), 39.0, -107.0)
	require.Error(t, err)
	assert.Equal(t, hitsBefore, hits, "open breaker must short-circuit")
}
