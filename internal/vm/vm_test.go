package vm

import (
	"testing"

	"seni/internal/bytecode"
	"seni/internal/value"
	"seni/internal/words"
)

func simpleProgram(ops func(p *bytecode.Program)) *bytecode.Program {
	p := bytecode.NewProgram()
	ops(p)
	return p
}

func TestRunPushesConstantThenStops(t *testing.T) {
	prog := simpleProgram(func(p *bytecode.Program) {
		idx := p.AddConstant(value.Float(42))
		p.WriteOp(bytecode.OpLoad, bytecode.DebugInfo{})
		p.WriteOperand(int32(bytecode.SegConstant), bytecode.DebugInfo{})
		p.WriteOperand(int32(idx), bytecode.DebugInfo{})
		p.WriteOp(bytecode.OpStop, bytecode.DebugInfo{})
	})
	m := New(prog, nilNatives{})
	v, err := m.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.AsFloat() != 42 {
		t.Fatalf("expected 42, got %+v", v)
	}
}

func TestRunAddition(t *testing.T) {
	prog := simpleProgram(func(p *bytecode.Program) {
		loadConst := func(v value.Value) {
			idx := p.AddConstant(v)
			p.WriteOp(bytecode.OpLoad, bytecode.DebugInfo{})
			p.WriteOperand(int32(bytecode.SegConstant), bytecode.DebugInfo{})
			p.WriteOperand(int32(idx), bytecode.DebugInfo{})
		}
		loadConst(value.Float(3))
		loadConst(value.Float(4))
		p.WriteOp(bytecode.OpAdd, bytecode.DebugInfo{})
		p.WriteOp(bytecode.OpStop, bytecode.DebugInfo{})
	})
	m := New(prog, nilNatives{})
	v, err := m.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v.AsFloat() != 7 {
		t.Fatalf("expected 7, got %+v", v)
	}
}

func TestWithMaxStepsHaltsRunawayLoop(t *testing.T) {
	prog := simpleProgram(func(p *bytecode.Program) {
		here := p.Here()
		p.WriteOp(bytecode.OpJump, bytecode.DebugInfo{})
		p.WriteOperand(int32(here), bytecode.DebugInfo{})
	})
	m := New(prog, nilNatives{}, WithMaxSteps(100))
	if _, err := m.Run(); err == nil {
		t.Fatalf("expected a max-steps error for an infinite jump loop")
	}
}

func TestNextRNGSeedIsDeterministicPerSeed(t *testing.T) {
	a := New(bytecode.NewProgram(), nilNatives{}, WithSeed(1234))
	b := New(bytecode.NewProgram(), nilNatives{}, WithSeed(1234))
	for i := 0; i < 5; i++ {
		av, bv := a.NextRNGSeed(), b.NextRNGSeed()
		if av != bv {
			t.Fatalf("step %d: expected matching streams, got %d != %d", i, av, bv)
		}
	}
}

func TestNextRNGSeedDivergesAcrossSeeds(t *testing.T) {
	a := New(bytecode.NewProgram(), nilNatives{}, WithSeed(1))
	b := New(bytecode.NewProgram(), nilNatives{}, WithSeed(2))
	if a.NextRNGSeed() == b.NextRNGSeed() {
		t.Fatalf("expected different seeds to diverge on the first draw")
	}
}

// nilNatives satisfies NativeSet without registering anything.
type nilNatives struct{}

func (nilNatives) Call(name words.Iname, m *VM, args Args) (value.Value, error) {
	return value.Void(), nil
}

func TestEmitAppendsRenderCommand(t *testing.T) {
	m := New(bytecode.NewProgram(), nilNatives{})
	iname, _ := words.NewStandard().KeywordIname("translate")
	m.Emit(RenderCommand{Native: iname, Matrix: m.Matrix().Top()})
	if len(m.Commands) != 1 {
		t.Fatalf("expected 1 emitted command, got %d", len(m.Commands))
	}
}

func TestMatrixStartsAtIdentity(t *testing.T) {
	m := New(bytecode.NewProgram(), nilNatives{})
	x, y := m.Matrix().Top().TransformPoint(3, 4)
	if x != 3 || y != 4 {
		t.Fatalf("expected identity transform to preserve (3,4), got (%v,%v)", x, y)
	}
}

func TestArgsLabelLookup(t *testing.T) {
	iname, _ := words.NewStandard().KeywordIname("angle")
	args := Args{Labelled: map[words.Iname]value.Value{iname: value.Float(90)}}
	v, ok := args.Label(iname)
	if !ok || v.AsFloat() != 90 {
		t.Fatalf("expected angle=90, got %+v, ok=%v", v, ok)
	}
	if _, ok := args.Label(words.Iname(99999)); ok {
		t.Fatalf("expected missing label to report false")
	}
}

func TestRunDivideByZeroIsRuntimeError(t *testing.T) {
	prog := simpleProgram(func(p *bytecode.Program) {
		loadConst := func(v value.Value) {
			idx := p.AddConstant(v)
			p.WriteOp(bytecode.OpLoad, bytecode.DebugInfo{})
			p.WriteOperand(int32(bytecode.SegConstant), bytecode.DebugInfo{})
			p.WriteOperand(int32(idx), bytecode.DebugInfo{})
		}
		loadConst(value.Float(1))
		loadConst(value.Float(0))
		p.WriteOp(bytecode.OpDiv, bytecode.DebugInfo{})
		p.WriteOp(bytecode.OpStop, bytecode.DebugInfo{})
	})
	m := New(prog, nilNatives{})
	if _, err := m.Run(); err == nil {
		t.Fatalf("expected a division-by-zero runtime error")
	}
}
