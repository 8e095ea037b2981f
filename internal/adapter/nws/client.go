// Package nws fetches hourly forecast data from the National Weather
// Service API. Resolving a forecast is a two-step chain: a points lookup
// keyed by coordinate returns the gridpoint's hourly forecast URL, which is
// then fetched and decoded.
//
// API docs: https://www.weather.gov/documentation/services-web-api
package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/skycast-labs/radarcache/internal/forecast"
)

// Client implements the two-step NWS hourly forecast fetch. A circuit
// breaker protects weather.gov from hammering while it is unhealthy; there
// is no retry inside the client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates an NWS client. The NWS API requires a User-Agent
// identifying the application and a contact address.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "nws",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
		logger: logger,
	}
}

// pointsResponse carries the only field we need from /points/{lat},{lon}.
type pointsResponse struct {
	Properties struct {
		ForecastHourly string `json:"forecastHourly"`
	} `json:"properties"`
}

type hourlyResponse struct {
	Properties struct {
		Periods []struct {
			StartTime       string  `json:"startTime"`
			Temperature     float64 `json:"temperature"`
			TemperatureUnit string  `json:"temperatureUnit"`
		} `json:"periods"`
	} `json:"properties"`
}

// HourlyForecast resolves the coordinate's gridpoint and returns its hourly
// forecast periods in upstream order. It implements forecast.Provider.
func (c *Client) HourlyForecast(ctx context.Context, lat, lon float64) ([]forecast.Sample, error) {
	pointsURL := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)

	var points pointsResponse
	if err := c.getJSON(ctx, pointsURL, &points); err != nil {
		return nil, fmt.Errorf("points lookup: %w", err)
	}
	if points.Properties.ForecastHourly == "" {
		return nil, fmt.Errorf("points response has no hourly forecast URL")
	}

	var hourly hourlyResponse
	if err := c.getJSON(ctx, points.Properties.ForecastHourly, &hourly); err != nil {
		return nil, fmt.Errorf("hourly forecast: %w", err)
	}

	periods := make([]forecast.Sample, 0, len(hourly.Properties.Periods))
	for _, p := range hourly.Properties.Periods {
		start, err := time.Parse(time.RFC3339, p.StartTime)
		if err != nil {
			c.logger.Warn("skipping period with bad start time",
				"start_time", p.StartTime, "error", err)
			continue
		}
		periods = append(periods, forecast.Sample{
			Time:        start,
			Temperature: p.Temperature,
			Unit:        p.TemperatureUnit,
		})
	}
	return periods, nil
}

// getJSON GETs a URL through the circuit breaker and decodes the response.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/geo+json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("NWS API error: status %d: %s", resp.StatusCode, body)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	return nil
}
