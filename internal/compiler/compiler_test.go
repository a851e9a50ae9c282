package compiler

import (
	"testing"

	"seni/internal/bytecode"
	"seni/internal/parser"
	"seni/internal/value"
	"seni/internal/vm"
	"seni/internal/words"
)

// nilNatives satisfies vm.NativeSet without registering anything; tests
// that don't call a native pass this in.
type nilNatives struct{}

func (nilNatives) Call(name words.Iname, m *vm.VM, args vm.Args) (value.Value, error) {
	return value.Void(), nil
}

func compileAndRun(t *testing.T, src string) value.Value {
	t.Helper()
	tbl := words.NewStandard()
	nodes, err := parser.New(src, tbl).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	prog, err := Compile(nodes, tbl)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	m := vm.New(prog, nilNatives{})
	result, err := m.Run()
	if err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return result
}

func TestCompileArithmeticChain(t *testing.T) {
	v := compileAndRun(t, "(+ 1 2 3 4)")
	if !v.IsFloat() || v.AsFloat() != 10 {
		t.Fatalf("expected 10, got %+v", v)
	}
}

func TestCompileNestedArithmetic(t *testing.T) {
	v := compileAndRun(t, "(* (+ 1 2) (- 5 2))")
	if v.AsFloat() != 9 {
		t.Fatalf("expected 9, got %+v", v)
	}
}

func TestCompileIfTrueBranch(t *testing.T) {
	v := compileAndRun(t, "(if (< 1 2) 10 20)")
	if v.AsFloat() != 10 {
		t.Fatalf("expected 10, got %+v", v)
	}
}

func TestCompileIfFalseBranch(t *testing.T) {
	v := compileAndRun(t, "(if (> 1 2) 10 20)")
	if v.AsFloat() != 20 {
		t.Fatalf("expected 20, got %+v", v)
	}
}

func TestCompileIfWithoutElseIsVoid(t *testing.T) {
	v := compileAndRun(t, "(if (> 1 2) 10)")
	if v.Kind != value.KindVoid {
		t.Fatalf("expected VOID, got %+v", v)
	}
}

func TestCompileDefineAndReference(t *testing.T) {
	v := compileAndRun(t, "(define x 5) (+ x x)")
	if v.AsFloat() != 10 {
		t.Fatalf("expected 10, got %+v", v)
	}
}

func TestCompileDestructuringDefine(t *testing.T) {
	v := compileAndRun(t, "(define [a b] [1 2]) (+ a b)")
	if v.AsFloat() != 3 {
		t.Fatalf("expected 3, got %+v", v)
	}
}

func TestCompileSetq(t *testing.T) {
	v := compileAndRun(t, "(define x 1) (setq x 9) x")
	if v.AsFloat() != 9 {
		t.Fatalf("expected 9, got %+v", v)
	}
}

func TestCompileIncrementLoopSum(t *testing.T) {
	v := compileAndRun(t, "(define total 0) (loop (i from: 0 to: 5) (setq total (+ total i))) total")
	if v.AsFloat() != 10 {
		t.Fatalf("expected 0+1+2+3+4=10, got %+v", v)
	}
}

func TestCompileUptoLoopIsInclusive(t *testing.T) {
	v := compileAndRun(t, "(define total 0) (loop (i from: 0 upto: 3) (setq total (+ total i))) total")
	if v.AsFloat() != 6 {
		t.Fatalf("expected 0+1+2+3=6, got %+v", v)
	}
}

func TestCompileSteppedLoopCountsIterations(t *testing.T) {
	v := compileAndRun(t, "(define n 0) (loop (i from: 0 to: 10 steps: 5) (setq n (+ n 1))) n")
	if v.AsFloat() != 5 {
		t.Fatalf("expected 5 iterations, got %+v", v)
	}
}

func TestCompileFenceIsAlwaysStepped(t *testing.T) {
	v := compileAndRun(t, "(define n 0) (fence (i from: 0 to: 1 steps: 4) (setq n (+ n 1))) n")
	if v.AsFloat() != 4 {
		t.Fatalf("expected 4 iterations, got %+v", v)
	}
}

func TestCompileFnCallWithDefaultArgs(t *testing.T) {
	v := compileAndRun(t, "(fn (double n: 2) (* n 2)) (double)")
	if v.AsFloat() != 4 {
		t.Fatalf("expected 4, got %+v", v)
	}
}

func TestCompileFnCallWithOverriddenArg(t *testing.T) {
	v := compileAndRun(t, "(fn (double n: 2) (* n 2)) (double n: 10)")
	if v.AsFloat() != 20 {
		t.Fatalf("expected 20, got %+v", v)
	}
}

func TestCompileIndirectFnCall(t *testing.T) {
	v := compileAndRun(t, "(fn (double n: 2) (* n 2)) (fn-call ((address-of double) n: 5))")
	if v.AsFloat() != 10 {
		t.Fatalf("expected 10, got %+v", v)
	}
}

func TestCompileAndOfTwoTrueComparisons(t *testing.T) {
	v := compileAndRun(t, "(and (< 1 2) (> 3 2))")
	if !v.IsBool() || !v.AsBool() {
		t.Fatalf("expected true, got %+v", v)
	}
}

func TestCompileNotUnary(t *testing.T) {
	v := compileAndRun(t, "(not (< 1 2))")
	if !v.IsBool() || v.AsBool() {
		t.Fatalf("expected false, got %+v", v)
	}
}

func TestCompileTruncatedIfIsCompileError(t *testing.T) {
	tbl := words.NewStandard()
	nodes, err := parser.New("(if 1)", tbl).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := Compile(nodes, tbl); err == nil {
		t.Fatalf("expected a compile error for a truncated if form")
	}
}

func TestCompilePreambleDefinesCanvasGlobals(t *testing.T) {
	v := compileAndRun(t, "canvas/width")
	if v.AsFloat() != 1000 {
		t.Fatalf("expected canvas/width preamble default 1000, got %+v", v)
	}
}

func TestCompileTraitProgramLeavesValueOnStack(t *testing.T) {
	tbl := words.NewStandard()
	nodes, err := parser.New("(+ 1 2)", tbl).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := CompileTraitProgram(nodes, tbl)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m := vm.New(prog, nilNatives{})
	v, err := m.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.AsFloat() != 3 {
		t.Fatalf("expected 3, got %+v", v)
	}
}

func TestProgramStructureHasStopOpcode(t *testing.T) {
	tbl := words.NewStandard()
	nodes, err := parser.New("1", tbl).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := Compile(nodes, tbl)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(prog.Code) == 0 || bytecode.OpCode(prog.Code[len(prog.Code)-1]) != bytecode.OpStop {
		t.Fatalf("expected program to end in OpStop")
	}
}
