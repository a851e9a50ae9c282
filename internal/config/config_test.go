package config

import (
	"os"
	"path/filepath"
	"testing"

	"seni/internal/store"
)

func TestDefaultPopulatesExpectedValues(t *testing.T) {
	p := Default("myart", "main.seni")
	if p.Name != "myart" || p.Entry != "main.seni" {
		t.Fatalf("expected name/entry to be set, got %+v", p)
	}
	if p.PopulationSize != 20 || p.MutationRate != 0.1 {
		t.Fatalf("expected default population/rate, got %+v", p)
	}
	if p.StoreBackend != store.SQLite || p.StoreDSN != "seni.db" {
		t.Fatalf("expected sqlite default store, got %+v", p)
	}
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seni.toml")
	want := Default("myart", "main.seni")
	want.PopulationSize = 50
	want.MutationRate = 0.25
	want.StoreBackend = store.Postgres
	want.StoreDSN = "postgres://localhost/seni"

	if err := Write(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != want.Name || got.Entry != want.Entry {
		t.Fatalf("expected name/entry to round trip, got %+v", got)
	}
	if got.PopulationSize != want.PopulationSize || got.MutationRate != want.MutationRate {
		t.Fatalf("expected genotype settings to round trip, got %+v", got)
	}
	if got.StoreBackend != want.StoreBackend || got.StoreDSN != want.StoreDSN {
		t.Fatalf("expected store settings to round trip, got %+v", got)
	}
}

func TestLoadMissingKeysKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seni.toml")
	contents := "name = \"partial\"\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Name != "partial" {
		t.Fatalf("expected overridden name, got %q", p.Name)
	}
	if p.PopulationSize != 20 || p.MutationRate != 0.1 {
		t.Fatalf("expected defaults to survive a partial manifest, got %+v", p)
	}
}

func TestLoadMissingFileIsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml")); err == nil {
		t.Fatalf("expected an error loading a missing manifest")
	}
}
