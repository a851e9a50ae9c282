package genetic

import (
	"testing"

	"seni/internal/natives"
	"seni/internal/parser"
	"seni/internal/value"
	"seni/internal/words"
)

func parseTraits(t *testing.T, src string) ([]*Trait, *words.Table) {
	t.Helper()
	tbl := words.NewStandard()
	nodes, err := parser.New(src, tbl).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	traits, err := ExtractTraits(nodes, tbl)
	if err != nil {
		t.Fatalf("extract traits: %v", err)
	}
	return traits, tbl
}

func TestExtractTraitsFindsOneAlterable(t *testing.T) {
	traits, _ := parseTraits(t, "(rotate angle: {0 (+ 1 2)})")
	if len(traits) != 1 {
		t.Fatalf("expected 1 trait, got %d", len(traits))
	}
}

func TestExtractTraitsRecursesIntoNestedLists(t *testing.T) {
	traits, _ := parseTraits(t, "(if (< 1 2) (rotate angle: {0 (+ 1 2)}) (scale [1 1]))")
	if len(traits) != 1 {
		t.Fatalf("expected 1 nested trait, got %d", len(traits))
	}
}

func TestExtractTraitsIgnoresVectorChildren(t *testing.T) {
	traits, _ := parseTraits(t, "(translate {[1 2] [3 4]})")
	if len(traits) != 1 {
		t.Fatalf("expected exactly the wrapper trait, got %d", len(traits))
	}
}

func TestBuildGenotypeProducesOneGenePerTrait(t *testing.T) {
	traits, tbl := parseTraits(t, "(rotate angle: {0 (+ 1 2)}) (scale x: {1 (+ 1 1)})")
	nt := natives.New(tbl)
	g, err := BuildGenotype(traits, nt, 1234)
	if err != nil {
		t.Fatalf("build genotype: %v", err)
	}
	if len(g.Genes) != 2 {
		t.Fatalf("expected 2 genes, got %d", len(g.Genes))
	}
}

func TestBuildGenotypeIsDeterministicForASeed(t *testing.T) {
	traits, tbl := parseTraits(t, "(rotate angle: {0 (+ 1 2)})")
	nt := natives.New(tbl)
	a, err := BuildGenotype(traits, nt, 99)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b, err := BuildGenotype(traits, nt, 99)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if a.Genes[0].AsFloat() != b.Genes[0].AsFloat() {
		t.Fatalf("expected same seed to reproduce the same gene, got %v != %v",
			a.Genes[0].AsFloat(), b.Genes[0].AsFloat())
	}
}

func TestGenotypeNextConsumesInOrder(t *testing.T) {
	g := &Genotype{Genes: []value.Value{value.Float(1), value.Float(2)}}
	v, ok := g.Next()
	if !ok || v.AsFloat() != 1 {
		t.Fatalf("expected first gene 1, got %+v, ok=%v", v, ok)
	}
	v, ok = g.Next()
	if !ok || v.AsFloat() != 2 {
		t.Fatalf("expected second gene 2, got %+v, ok=%v", v, ok)
	}
	if _, ok := g.Next(); ok {
		t.Fatalf("expected no third gene")
	}
	if !g.AtEnd() {
		t.Fatalf("expected cursor to be at end")
	}
	g.Reset()
	if g.AtEnd() {
		t.Fatalf("expected reset to rewind the cursor")
	}
}

func TestGenotypeCloneIsIndependent(t *testing.T) {
	g := &Genotype{Genes: []value.Value{value.Float(1)}}
	clone := g.Clone()
	clone.Genes[0] = value.Float(99)
	if g.Genes[0].AsFloat() != 1 {
		t.Fatalf("expected clone mutation not to affect the original")
	}
	if clone.ID == g.ID {
		t.Fatalf("expected clone to carry a fresh id")
	}
}

func TestCrossoverSwapsAtTheSplitPoint(t *testing.T) {
	a := &Genotype{Genes: []value.Value{value.Float(1), value.Float(2), value.Float(3)}}
	b := &Genotype{Genes: []value.Value{value.Float(10), value.Float(20), value.Float(30)}}
	childA, childB := Crossover(a, b, 1)
	want := []float64{1, 20, 30}
	for i, w := range want {
		if childA.Genes[i].AsFloat() != w {
			t.Fatalf("childA[%d]: expected %v, got %v", i, w, childA.Genes[i].AsFloat())
		}
	}
	want = []float64{10, 2, 3}
	for i, w := range want {
		if childB.Genes[i].AsFloat() != w {
			t.Fatalf("childB[%d]: expected %v, got %v", i, w, childB.Genes[i].AsFloat())
		}
	}
}

func TestCrossoverOutOfRangeIndexClones(t *testing.T) {
	a := &Genotype{Genes: []value.Value{value.Float(1), value.Float(2)}}
	b := &Genotype{Genes: []value.Value{value.Float(9), value.Float(8)}}
	childA, childB := Crossover(a, b, 0)
	if childA.Genes[0].AsFloat() != 1 || childB.Genes[0].AsFloat() != 9 {
		t.Fatalf("expected an out-of-range index to clone parents unchanged")
	}
}

func TestMutateSchemaMismatchIsError(t *testing.T) {
	traits, tbl := parseTraits(t, "(rotate angle: {0 (+ 1 2)})")
	nt := natives.New(tbl)
	g := &Genotype{Genes: []value.Value{value.Float(1), value.Float(2)}}
	state := uint64(1)
	if err := Mutate(g, traits, nt, 1.0, &state); err == nil {
		t.Fatalf("expected a schema-mismatch error when gene count does not match trait count")
	}
}

func TestMutateAlwaysMutatesAtRateOne(t *testing.T) {
	traits, tbl := parseTraits(t, "(rotate angle: {0 (+ 1 2)})")
	nt := natives.New(tbl)
	g := &Genotype{Genes: []value.Value{value.Float(-1)}}
	state := uint64(42)
	if err := Mutate(g, traits, nt, 1.0, &state); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if g.Genes[0].AsFloat() == -1 {
		t.Fatalf("expected the gene to be replaced at mutation rate 1.0")
	}
}

func TestNextGenerationProducesTargetSize(t *testing.T) {
	traits, tbl := parseTraits(t, "(rotate angle: {0 (+ 1 2)})")
	nt := natives.New(tbl)
	parents := make([]*Genotype, 0, 3)
	for i := 0; i < 3; i++ {
		g, err := BuildGenotype(traits, nt, uint64(100+i))
		if err != nil {
			t.Fatalf("build parent %d: %v", i, err)
		}
		parents = append(parents, g)
	}
	children, err := NextGeneration(parents, traits, nt, 5, 0.2, 7)
	if err != nil {
		t.Fatalf("next generation: %v", err)
	}
	if len(children) != 5 {
		t.Fatalf("expected 5 children, got %d", len(children))
	}
}

func TestNextGenerationRequiresTwoParents(t *testing.T) {
	traits, tbl := parseTraits(t, "(rotate angle: {0 (+ 1 2)})")
	nt := natives.New(tbl)
	g, err := BuildGenotype(traits, nt, 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := NextGeneration([]*Genotype{g}, traits, nt, 3, 0.1, 1); err == nil {
		t.Fatalf("expected an error with fewer than two parents")
	}
}

func TestSerializeGenotypeRoundTrips(t *testing.T) {
	traits, tbl := parseTraits(t, "(rotate angle: {0 (+ 1 2)}) (scale x: {1 (+ 1 1)})")
	nt := natives.New(tbl)
	g, err := BuildGenotype(traits, nt, 55)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	heap := value.NewHeap(1<<12, 1<<8)
	blob, err := SerializeGenotype(heap, g)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	round, err := DeserializeGenotype(heap, blob)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if round.ID != g.ID || len(round.Genes) != len(g.Genes) {
		t.Fatalf("expected round trip to preserve id and gene count")
	}
	for i := range g.Genes {
		if g.Genes[i].AsFloat() != round.Genes[i].AsFloat() {
			t.Fatalf("gene %d: expected %v, got %v", i, g.Genes[i].AsFloat(), round.Genes[i].AsFloat())
		}
	}
}

func TestWriteValueVoidRoundTrips(t *testing.T) {
	heap := value.NewHeap(1<<12, 1<<8)
	w := NewWriter()
	if err := WriteValue(w, heap, value.Void()); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewReader(w.String())
	v, err := ReadValue(r, heap)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v.Kind != value.KindVoid {
		t.Fatalf("expected VOID to round-trip as VOID, got %s", v.Kind)
	}
}
