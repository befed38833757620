package reference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreLookupIsExact(t *testing.T) {
	s := NewMemoryStore(
		[]City{{Name: "Moscow", Ru: "Москва", Code: "MOW", Lat: 55.75, Lon: 37.62}},
		[]Airport{{Code: "SVO", Name: "Шереметьево"}},
	)
	ctx := context.Background()

	c, err := s.CityByName(ctx, "Москва")
	if err != nil || c.Code != "MOW" {
		t.Fatalf("CityByName = %+v, %v", c, err)
	}
	for _, name := range []string{"москва", "Москва ", "Moscow"} {
		if _, err := s.CityByName(ctx, name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("CityByName(%q) err = %v, want ErrNotFound", name, err)
		}
	}
	if a, err := s.AirportByCode(ctx, "SVO"); err != nil || a.Name != "Шереметьево" {
		t.Fatalf("AirportByCode = %+v, %v", a, err)
	}
	if _, err := s.AirportByCode(ctx, "XXX"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing airport err = %v", err)
	}
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.yaml")
	data := []byte(`cities:
  - {name: Paris, ru: Париж, code: PAR, lat: 48.85, lon: 2.35}
airports:
  - {code: CDG, name: Шарль-де-Голль}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadDataset(path)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(ds.Cities) != 1 || ds.Cities[0].Ru != "Париж" || ds.Cities[0].Lat != 48.85 {
		t.Fatalf("unexpected cities: %+v", ds.Cities)
	}
	if len(ds.Airports) != 1 || ds.Airports[0].Code != "CDG" {
		t.Fatalf("unexpected airports: %+v", ds.Airports)
	}
}
