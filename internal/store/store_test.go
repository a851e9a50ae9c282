package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"seni/internal/genetic"
	"seni/internal/value"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "seni-test.db")
	s, err := Open(SQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadGenotypeRoundTrips(t *testing.T) {
	s := openTestStore(t)
	heap := value.NewHeap(1<<12, 1<<8)

	populationID := uuid.New()
	if err := s.SavePopulation(populationID, "abc123", 2); err != nil {
		t.Fatalf("save population: %v", err)
	}

	g := &genetic.Genotype{ID: uuid.New(), Genes: []value.Value{value.Float(1.5), value.Int(7)}}
	if err := s.SaveGenotype(heap, populationID, g); err != nil {
		t.Fatalf("save genotype: %v", err)
	}

	loaded, err := s.LoadGenotype(heap, g.ID)
	if err != nil {
		t.Fatalf("load genotype: %v", err)
	}
	if loaded.ID != g.ID || len(loaded.Genes) != 2 {
		t.Fatalf("expected round trip to preserve id and gene count, got %+v", loaded)
	}
	if loaded.Genes[0].AsFloat() != 1.5 || loaded.Genes[1].AsFloat() != 7 {
		t.Fatalf("expected genes [1.5 7], got %v %v", loaded.Genes[0].AsFloat(), loaded.Genes[1].AsFloat())
	}
}

func TestLoadGenotypeMissingIsError(t *testing.T) {
	s := openTestStore(t)
	heap := value.NewHeap(1<<12, 1<<8)
	if _, err := s.LoadGenotype(heap, uuid.New()); err == nil {
		t.Fatalf("expected an error loading a genotype that was never saved")
	}
}

func TestListGenotypesReturnsEverySavedGenotype(t *testing.T) {
	s := openTestStore(t)
	heap := value.NewHeap(1<<12, 1<<8)
	populationID := uuid.New()
	if err := s.SavePopulation(populationID, "abc123", 1); err != nil {
		t.Fatalf("save population: %v", err)
	}

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		g := &genetic.Genotype{ID: uuid.New(), Genes: []value.Value{value.Float(float64(i))}}
		if err := s.SaveGenotype(heap, populationID, g); err != nil {
			t.Fatalf("save genotype %d: %v", i, err)
		}
		ids = append(ids, g.ID)
	}

	listed, err := s.ListGenotypes(populationID)
	if err != nil {
		t.Fatalf("list genotypes: %v", err)
	}
	if len(listed) != len(ids) {
		t.Fatalf("expected %d genotypes, got %d", len(ids), len(listed))
	}
}

func TestOpenUnsupportedBackendIsError(t *testing.T) {
	if _, err := Open(Backend("not-a-backend"), ""); err == nil {
		t.Fatalf("expected an error for an unsupported backend")
	}
}
