// Package reference provides read-only lookup of cities and airports.
package reference

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a city or airport is absent from the store.
var ErrNotFound = errors.New("reference: not found")

// City is a known city. Ru is the localized name users type in the dialog.
type City struct {
	Name string  `db:"name" yaml:"name"`
	Ru   string  `db:"ru" yaml:"ru"`
	Code string  `db:"code" yaml:"code"`
	Lat  float64 `db:"lat" yaml:"lat"`
	Lon  float64 `db:"lon" yaml:"lon"`
}

// Airport maps an IATA code to a display name.
type Airport struct {
	Code string `db:"code" yaml:"code"`
	Name string `db:"name" yaml:"name"`
}

// Store looks up reference records. Lookups are exact and case-sensitive.
type Store interface {
	CityByName(ctx context.Context, ru string) (City, error)
	AirportByCode(ctx context.Context, code string) (Airport, error)
}

// MemoryStore is a Store over fixed slices, used in tests and without a database.
type MemoryStore struct {
	cities   map[string]City
	airports map[string]Airport
}

// NewMemoryStore indexes the given records. Later duplicates win.
func NewMemoryStore(cities []City, airports []Airport) *MemoryStore {
	s := &MemoryStore{
		cities:   make(map[string]City, len(cities)),
		airports: make(map[string]Airport, len(airports)),
	}
	for _, c := range cities {
		s.cities[c.Ru] = c
	}
	for _, a := range airports {
		s.airports[a.Code] = a
	}
	return s
}

// CityByName implements Store.
func (s *MemoryStore) CityByName(_ context.Context, ru string) (City, error) {
	c, ok := s.cities[ru]
	if !ok {
		return City{}, ErrNotFound
	}
	return c, nil
}

// AirportByCode implements Store.
func (s *MemoryStore) AirportByCode(_ context.Context, code string) (Airport, error) {
	a, ok := s.airports[code]
	if !ok {
		return Airport{}, ErrNotFound
	}
	return a, nil
}
