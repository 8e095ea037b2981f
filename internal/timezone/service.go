// Package timezone resolves coordinates to IANA time zone names.
package timezone

import (
	"fmt"
	"sync"

	"github.com/ringsaturn/tzf"
)

// Service looks up the time zone for a coordinate.
type Service interface {
	Lookup(lat, lon float64) (string, error)
}

type service struct {
	finder tzf.F
}

var (
	instance *service
	once     sync.Once
	initErr  error
)

// NewService creates or returns the shared timezone service. The tzf finder
// loads its polygon data into memory once per process, so the instance is
// shared.
func NewService() (Service, error) {
	once.Do(func() {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			initErr = fmt.Errorf("initialize timezone finder: %w", err)
			return
		}
		instance = &service{finder: finder}
	})
	if initErr != nil {
		return nil, initErr
	}
	return instance, nil
}

// Lookup returns the IANA zone name (e.g. "America/Denver") for a coordinate.
func (s *service) Lookup(lat, lon float64) (string, error) {
	name := s.finder.GetTimezoneName(lon, lat)
	if name == "" {
		return "", fmt.Errorf("no timezone for lat=%f lon=%f", lat, lon)
	}
	return name, nil
}
