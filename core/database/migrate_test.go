package database

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSelectApplied(t *testing.T) {
	files := []string{
		"000001_reference.up.sql",
		"000002_command_history.up.sql",
		"000003_history_index.up.sql",
	}
	cases := []struct {
		name     string
		from, to uint64
		want     []string
	}{
		{"fresh", 0, 3, files},
		{"partial", 1, 2, []string{"000002_command_history.up.sql"}},
		{"no change", 3, 3, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := selectApplied(files, tc.from, tc.to)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("selectApplied(%d,%d) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestListMigrationFilesOnlyUp(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	got := listMigrationFiles(dir)
	want := []string{"000001_a.up.sql", "000002_b.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("listMigrationFiles = %v, want %v", got, want)
	}
}

func TestConfigURLEscapesCredentials(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss word", Name: "aviabot"}
	u := cfg.URL()
	if !strings.HasPrefix(u, "postgres://bot:p%40ss%20word@db:5432/aviabot") {
		t.Fatalf("unexpected url %s", u)
	}
	if !strings.HasSuffix(u, "sslmode=disable") {
		t.Fatalf("expected default sslmode in %s", u)
	}
	if !strings.Contains(cfg.DSN(), "dbname=aviabot") {
		t.Fatalf("unexpected dsn %s", cfg.DSN())
	}
}
