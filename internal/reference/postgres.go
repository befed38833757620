package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresStore reads cities and airports from the tables created by migrations.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CityByName implements Store.
func (s *PostgresStore) CityByName(ctx context.Context, ru string) (City, error) {
	var c City
	err := s.db.GetContext(ctx, &c, `SELECT name, ru, code, lat, lon FROM cities WHERE ru = $1 LIMIT 1`, ru)
	if errors.Is(err, sql.ErrNoRows) {
		return City{}, ErrNotFound
	}
	if err != nil {
		return City{}, fmt.Errorf("reference: city %q: %w", ru, err)
	}
	return c, nil
}

// AirportByCode implements Store.
func (s *PostgresStore) AirportByCode(ctx context.Context, code string) (Airport, error) {
	var a Airport
	err := s.db.GetContext(ctx, &a, `SELECT code, name FROM airports WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return Airport{}, ErrNotFound
	}
	if err != nil {
		return Airport{}, fmt.Errorf("reference: airport %q: %w", code, err)
	}
	return a, nil
}
