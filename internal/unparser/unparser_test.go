package unparser

import (
	"strings"
	"testing"

	"seni/internal/genetic"
	"seni/internal/natives"
	"seni/internal/parser"
	"seni/internal/words"
)

func parseSrc(t *testing.T, src string) ([]*parser.Node, *words.Table) {
	t.Helper()
	tbl := words.NewStandard()
	nodes, err := parser.New(src, tbl).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return nodes, tbl
}

func TestUnparseNonAlterableRoundTripsVerbatim(t *testing.T) {
	const src = "(+ 1 2 3)"
	nodes, tbl := parseSrc(t, src)
	out, err := Unparse(nodes, &genetic.Genotype{}, tbl)
	if err != nil {
		t.Fatalf("unparse: %v", err)
	}
	if out != src {
		t.Fatalf("expected verbatim round trip %q, got %q", src, out)
	}
}

func TestUnparseSubstitutesGeneValue(t *testing.T) {
	const src = "(rotate angle: {0 (+ 1 2)})"
	nodes, tbl := parseSrc(t, src)
	traits, err := genetic.ExtractTraits(nodes, tbl)
	if err != nil {
		t.Fatalf("extract traits: %v", err)
	}
	nt := natives.New(tbl)
	g, err := genetic.BuildGenotype(traits, nt, 1)
	if err != nil {
		t.Fatalf("build genotype: %v", err)
	}
	out, err := Unparse(nodes, g, tbl)
	if err != nil {
		t.Fatalf("unparse: %v", err)
	}
	if !strings.Contains(out, "{3") {
		t.Fatalf("expected the materialised gene 3 to appear after the brace, got %q", out)
	}
	if !strings.HasPrefix(out, "(rotate angle: {") || !strings.HasSuffix(out, "})") {
		t.Fatalf("expected the surrounding call to be preserved, got %q", out)
	}
}

func TestUnparseUnconsumedGenesIsError(t *testing.T) {
	const src = "(rotate angle: {0 (+ 1 2)})"
	nodes, tbl := parseSrc(t, src)
	traits, err := genetic.ExtractTraits(nodes, tbl)
	if err != nil {
		t.Fatalf("extract traits: %v", err)
	}
	nt := natives.New(tbl)
	g, err := genetic.BuildGenotype(traits, nt, 1)
	if err != nil {
		t.Fatalf("build genotype: %v", err)
	}
	g.Reset()
	if _, err := Unparse(nil, g, tbl); err == nil {
		t.Fatalf("expected an error when genes remain unconsumed after an empty walk")
	}
}

func TestSimplifyStripsBracesAndEvaluatesDefault(t *testing.T) {
	const src = "{0 (+ 1 2)}"
	nodes, tbl := parseSrc(t, src)
	nt := natives.New(tbl)
	out, err := Simplify(nodes, tbl, nt)
	if err != nil {
		t.Fatalf("simplify: %v", err)
	}
	if out != "3" {
		t.Fatalf("expected simplified default 3, got %q", out)
	}
}

func TestSimplifyLeavesNonAlterableVerbatim(t *testing.T) {
	const src = "(scale [1 2])"
	nodes, tbl := parseSrc(t, src)
	nt := natives.New(tbl)
	out, err := Simplify(nodes, tbl, nt)
	if err != nil {
		t.Fatalf("simplify: %v", err)
	}
	if out != src {
		t.Fatalf("expected verbatim output %q, got %q", src, out)
	}
}
