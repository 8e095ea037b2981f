// Package forecast caches per-day hourly temperature series, fetched on
// demand when a specific day is inspected.
package forecast

import (
	"context"
	"fmt"
	"time"
)

// Sample is one hourly forecast reading as delivered by a provider.
type Sample struct {
	Time        time.Time
	Temperature float64
	Unit        string // "F" or "C"
}

// Provider fetches the full hourly forecast series for a coordinate.
type Provider interface {
	HourlyForecast(ctx context.Context, lat, lon float64) ([]Sample, error)
}

// Point is one cached hourly temperature sample, normalized to Fahrenheit.
type Point struct {
	Time         time.Time `json:"time"`
	TemperatureF float64   `json:"temperature_f"`
}

// Coordinate identifies a forecast location.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Day is a calendar date without a time zone. Which wall-clock window it
// denotes depends on the coordinate's local zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDay parses a "2006-01-02" date string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// start returns midnight at the beginning of the day in loc.
func (d Day) start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// next returns midnight at the beginning of the following day in loc.
// AddDate handles DST transitions, unlike adding a flat 24h.
func (d Day) next(loc *time.Location) time.Time {
	return d.start(loc).AddDate(0, 0, 1)
}
