package parser

import (
	"testing"

	"seni/internal/words"
)

func parseAll(t *testing.T, src string) []*Node {
	t.Helper()
	tbl := words.NewStandard()
	nodes, err := New(src, tbl).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return nodes
}

func firstValue(t *testing.T, src string) *Node {
	t.Helper()
	for _, n := range parseAll(t, src) {
		if !n.IsTrivia() {
			return n
		}
	}
	t.Fatalf("no non-trivia node in %q", src)
	return nil
}

func TestParseList(t *testing.T) {
	n := firstValue(t, "(+ 3 4 5 6)")
	if n.Kind != KindList {
		t.Fatalf("expected LIST, got %s", n.Kind)
	}
	nt := n.NonTrivia()
	if len(nt) != 5 {
		t.Fatalf("expected 5 non-trivia children, got %d", len(nt))
	}
	if nt[1].Kind != KindInt || nt[1].Int != 3 {
		t.Fatalf("expected int 3, got %+v", nt[1])
	}
}

func TestParseEmptyVector(t *testing.T) {
	n := firstValue(t, "[]")
	if n.Kind != KindVector {
		t.Fatalf("expected VECTOR, got %s", n.Kind)
	}
	if len(n.NonTrivia()) != 0 {
		t.Fatalf("expected no children, got %d", len(n.NonTrivia()))
	}
}

func TestParseFloatPreservesDecimals(t *testing.T) {
	n := firstValue(t, "3.140")
	if n.Kind != KindFloat {
		t.Fatalf("expected FLOAT, got %s", n.Kind)
	}
	if n.DecimalPlaces() != 3 {
		t.Fatalf("expected 3 decimal places, got %d", n.DecimalPlaces())
	}
}

func TestParseLabel(t *testing.T) {
	n := firstValue(t, "from: 10")
	if n.Kind != KindLabel {
		t.Fatalf("expected LABEL, got %s", n.Kind)
	}
}

func TestParseQuoteRewrite(t *testing.T) {
	n := firstValue(t, "'x")
	if n.Kind != KindList {
		t.Fatalf("expected quote to rewrite to LIST, got %s", n.Kind)
	}
	nt := n.NonTrivia()
	if len(nt) != 2 || nt[0].Kind != KindName {
		t.Fatalf("expected (quote x) shape, got %+v", nt)
	}
}

func TestAlterableWrapsValueAndCapturesParameterAST(t *testing.T) {
	n := firstValue(t, "{4 (+ 1 2)}")
	if !n.Alterable {
		t.Fatalf("expected value to be marked alterable")
	}
	if n.Kind != KindInt || n.Int != 4 {
		t.Fatalf("expected alterable value INT 4, got %+v", n)
	}
	var nonTriviaParam []*Node
	for _, c := range n.ParameterAST {
		if !c.IsTrivia() {
			nonTriviaParam = append(nonTriviaParam, c)
		}
	}
	if len(nonTriviaParam) != 1 || nonTriviaParam[0].Kind != KindList {
		t.Fatalf("expected parameter_ast to hold one LIST, got %+v", nonTriviaParam)
	}
}

func TestAlterableRejectsUnsupportedShape(t *testing.T) {
	tbl := words.NewStandard()
	_, err := New(`{"str"}`, tbl).Parse()
	if err == nil {
		t.Fatalf("expected error for alterable STRING")
	}
}

func TestMismatchedBracketIsParseError(t *testing.T) {
	tbl := words.NewStandard()
	_, err := New("(+ 1 2", tbl).Parse()
	if err == nil {
		t.Fatalf("expected parse error for unterminated list")
	}
}

func TestIname(t *testing.T) {
	tbl := words.NewStandard()
	n := firstValue(t, "hello")
	if !tbl.IsWord(n.Iname) {
		t.Fatalf("expected user word iname, got %d", n.Iname)
	}
}
