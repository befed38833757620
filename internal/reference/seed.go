package reference

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"
)

// Dataset is the layout of the reference seed file.
type Dataset struct {
	Cities   []City    `yaml:"cities"`
	Airports []Airport `yaml:"airports"`
}

// LoadDataset reads a YAML seed file.
func LoadDataset(path string) (Dataset, error) {
	var ds Dataset
	data, err := os.ReadFile(path)
	if err != nil {
		return ds, fmt.Errorf("reference: read seed: %w", err)
	}
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return ds, fmt.Errorf("reference: parse seed: %w", err)
	}
	return ds, nil
}

// Seeder upserts a YAML dataset into the reference tables. Running it again
// updates rows in place.
type Seeder struct {
	Path string
}

// Name identifies the seeder in bootstrap logs.
func (s Seeder) Name() string { return "reference" }

// Seed loads the dataset and writes it in one transaction.
func (s Seeder) Seed(ctx context.Context, db *sqlx.DB) error {
	ds, err := LoadDataset(s.Path)
	if err != nil {
		return err
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reference: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range ds.Cities {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO cities (name, ru, code, lat, lon)
			VALUES (:name, :ru, :code, :lat, :lon)
			ON CONFLICT (code) DO UPDATE
			SET name = EXCLUDED.name, ru = EXCLUDED.ru, lat = EXCLUDED.lat, lon = EXCLUDED.lon`, c); err != nil {
			return fmt.Errorf("reference: upsert city %s: %w", c.Code, err)
		}
	}
	for _, a := range ds.Airports {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO airports (code, name) VALUES (:code, :name)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`, a); err != nil {
			return fmt.Errorf("reference: upsert airport %s: %w", a.Code, err)
		}
	}
	return tx.Commit()
}
