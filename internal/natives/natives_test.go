package natives

import (
	"testing"

	"seni/internal/bytecode"
	"seni/internal/compiler"
	"seni/internal/parser"
	"seni/internal/value"
	"seni/internal/vm"
	"seni/internal/words"
)

func runSrc(t *testing.T, src string) (value.Value, *vm.VM) {
	t.Helper()
	tbl := words.NewStandard()
	nt := New(tbl)
	nodes, err := parser.New(src, tbl).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	prog, err := compiler.Compile(nodes, tbl)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	m := vm.New(prog, nt)
	result, err := m.Run()
	if err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return result, m
}

func TestVectorAppendGrowsVector(t *testing.T) {
	v, m := runSrc(t, "(vector/append [1 2] 3)")
	elems := m.Heap().Elements(v)
	if len(elems) != 3 || elems[2].AsFloat() != 3 {
		t.Fatalf("expected [1 2 3], got %+v", elems)
	}
}

func TestNthIndexesAVector(t *testing.T) {
	v, _ := runSrc(t, "(nth from: [10 20 30] n: 1)")
	if v.AsFloat() != 20 {
		t.Fatalf("expected 20, got %+v", v)
	}
}

func TestNthIndexesAPair(t *testing.T) {
	v, _ := runSrc(t, "(nth from: [5 6] n: 0)")
	if v.AsFloat() != 5 {
		t.Fatalf("expected 5, got %+v", v)
	}
}

func TestNthOutOfRangeIsRuntimeError(t *testing.T) {
	tbl := words.NewStandard()
	nt := New(tbl)
	nodes, err := parser.New("(nth from: [1 2] n: 5)", tbl).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := compiler.Compile(nodes, tbl)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m := vm.New(prog, nt)
	if _, err := m.Run(); err == nil {
		t.Fatalf("expected an out-of-range runtime error")
	}
}

func TestMathDistance(t *testing.T) {
	v, _ := runSrc(t, "(math/distance vec1: [0 0] vec2: [3 4])")
	if v.AsFloat() != 5 {
		t.Fatalf("expected 5, got %+v", v)
	}
}

func TestTranslateComposesOntoMatrix(t *testing.T) {
	_, m := runSrc(t, "(translate [10 20])")
	x, y := m.Matrix().Top().TransformPoint(0, 0)
	if x != 10 || y != 20 {
		t.Fatalf("expected origin to move to (10,20), got (%v,%v)", x, y)
	}
}

func TestRotateComposesOntoMatrix(t *testing.T) {
	_, m := runSrc(t, "(rotate angle: 90)")
	x, y := m.Matrix().Top().TransformPoint(1, 0)
	const eps = 1e-9
	if x < -eps || x > eps {
		t.Fatalf("expected x to rotate to ~0, got %v", x)
	}
	if y < 1-eps || y > 1+eps {
		t.Fatalf("expected y to rotate to ~1, got %v", y)
	}
}

func TestScaleComposesOntoMatrix(t *testing.T) {
	_, m := runSrc(t, "(scale [2 3])")
	x, y := m.Matrix().Top().TransformPoint(1, 1)
	if x != 2 || y != 3 {
		t.Fatalf("expected (1,1) scaled to (2,3), got (%v,%v)", x, y)
	}
}

func TestPrngValuesIsDeterministicForAGivenSeed(t *testing.T) {
	const src = "(nth from: (prng/values num: 1 from: (prng/build min: 0 max: 1 seed: 42)) n: 0)"
	a, _ := runSrc(t, src)
	b, _ := runSrc(t, src)
	if a.AsFloat() != b.AsFloat() {
		t.Fatalf("expected same seed to reproduce the same draw, got %v != %v", a.AsFloat(), b.AsFloat())
	}
}

func TestPrngValuesStaysWithinRange(t *testing.T) {
	v, _ := runSrc(t, "(nth from: (prng/values num: 1 from: (prng/build min: 5 max: 10 seed: 7)) n: 0)")
	if v.AsFloat() < 5 || v.AsFloat() >= 10 {
		t.Fatalf("expected a draw in [5,10), got %v", v.AsFloat())
	}
}

func TestPrngValuesAdvancesStateAcrossDraws(t *testing.T) {
	v, m := runSrc(t, "(define h (prng/build min: 0 max: 1 seed: 3)) (prng/values num: 2 from: h)")
	elems := m.Heap().Elements(v)
	if len(elems) != 2 {
		t.Fatalf("expected 2 draws, got %d", len(elems))
	}
	if elems[0].AsFloat() == elems[1].AsFloat() {
		t.Fatalf("expected successive draws to differ, both were %v", elems[0].AsFloat())
	}
}

func TestCallingUnknownNativeIsRuntimeError(t *testing.T) {
	tbl := words.NewStandard()
	nt := New(tbl)
	iname := tbl.RegisterNativeParams("not-a-real-native", nil)
	m := vm.New(bytecode.NewProgram(), nt)
	if _, err := nt.Call(iname, m, vm.Args{}); err == nil {
		t.Fatalf("expected an error calling an unregistered native")
	}
}
