package vm

import (
	"math"

	"seni/internal/bytecode"
	"seni/internal/errors"
	"seni/internal/matrixstack"
	"seni/internal/value"
	"seni/internal/words"
)

// Args is the actual-argument bundle a NATIVE instruction hands to a
// dispatched native: every actual argument is a label: value pair, per
// spec — there is no positional calling convention for natives.
type Args struct {
	Labelled map[words.Iname]value.Value
}

func (a Args) Label(name words.Iname) (value.Value, bool) {
	v, ok := a.Labelled[name]
	return v, ok
}

// RenderCommand records one NATIVE call a run made: the native, its
// labelled arguments and the matrix-stack top in force when it was called.
// The VM appends one per successful NATIVE instruction; the host
// (CLI/live-preview server) consumes VM.Commands after a run.
type RenderCommand struct {
	Native words.Iname
	Args   Args
	Matrix matrixstack.Matrix
}

// NativeSet dispatches a NATIVE instruction's iname to its implementation.
// internal/natives.Table implements this; kept as an interface here so vm
// doesn't import natives (natives imports vm for Args/VM instead).
type NativeSet interface {
	Call(name words.Iname, m *VM, args Args) (value.Value, error)
}

const (
	defaultMaxSteps  = 50_000_000
	defaultMaxStack  = 1 << 16
	defaultMatrixCap = 256
)

// VM runs one compiled Program to completion. A VM is single-use: build a
// fresh one per run (via New) rather than resetting an existing one, which
// keeps the host's parallel population builds (one VM per genotype per
// goroutine) free of any shared mutable state.
type VM struct {
	prog    *bytecode.Program
	natives NativeSet
	heap    *value.Heap
	matrix  *matrixstack.Stack

	stack []value.Value
	frame *Frame
	ip    int

	globals []value.Value

	Commands []RenderCommand
	steps    int
	maxSteps int

	// rngState/rngInc is the VM-level PCG32 stream mirroring seni_vm's
	// prng_state member: genotype_build seeds it once per genotype, and
	// natives needing a default seed (prng/build with no seed: argument)
	// draw from it instead of a fixed constant, so a trait's generator
	// expression varies across genes of the same genotype.
	rngState, rngInc uint64
}

type Option func(*VM)

func WithHeap(h *value.Heap) Option { return func(m *VM) { m.heap = h } }
func WithMaxSteps(n int) Option     { return func(m *VM) { m.maxSteps = n } }

// WithSeed sets the VM-level PRNG stream used as the default seed source
// for natives like prng/build when no explicit seed: is given.
func WithSeed(seed uint64) Option {
	return func(m *VM) { m.rngState, m.rngInc = seed, 1 }
}

func New(prog *bytecode.Program, natives NativeSet, opts ...Option) *VM {
	m := &VM{
		prog:     prog,
		natives:  natives,
		heap:     value.NewHeap(1<<16, 1<<12),
		matrix:   matrixstack.NewStack(defaultMatrixCap),
		globals:  make([]value.Value, prog.NumGlobals),
		maxSteps: defaultMaxSteps,
		rngInc:   1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NextRNGSeed advances the VM-level PCG32 stream one step (seni_prng.c's
// core step function) and returns the new state, for natives that need a
// fresh default seed without the caller supplying one explicitly.
func (m *VM) NextRNGSeed() uint64 {
	old := m.rngState
	m.rngState = old*6364136223846793005 + (m.rngInc | 1)
	return old
}

func (m *VM) Heap() *value.Heap               { return m.heap }
func (m *VM) Matrix() *matrixstack.Stack      { return m.matrix }
func (m *VM) Emit(cmd RenderCommand)          { m.Commands = append(m.Commands, cmd) }
func (m *VM) Program() *bytecode.Program      { return m.prog }

// Run executes from the top until STOP, returning the final value left on
// the stack (VOID if the program pushed nothing).
func (m *VM) Run() (value.Value, error) {
	if err := m.loop(); err != nil {
		return value.Value{}, m.fatal(err)
	}
	if len(m.stack) == 0 {
		return value.Void(), nil
	}
	return m.stack[len(m.stack)-1], nil
}

func (m *VM) fatal(err error) error {
	m.stack = nil
	m.frame = nil
	m.matrix.Reset()
	se, ok := err.(*errors.SeniError)
	if !ok {
		return errors.Wrap(err, "vm: fatal error")
	}
	return se.WithFrame("ip", m.ip)
}

func (m *VM) push(v value.Value) { m.stack = append(m.stack, v) }

func (m *VM) pop() (value.Value, error) {
	if len(m.stack) == 0 {
		return value.Value{}, errors.New(errors.Runtime, "stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// loop runs step repeatedly until STOP or a fatal error.
func (m *VM) loop() error {
	for {
		halted, err := m.step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// runUntilIP drives the interpreter until execution reaches ip within
// frame — used to run a synthesised frame's ArgAddress block (which ends
// in RET_0, landing ip back at frame.ReturnIP) without going through a
// real CALL instruction.
func (m *VM) runUntilIP(ip int, frame *Frame) error {
	for !(m.ip == ip && m.frame == frame) {
		halted, err := m.step()
		if err != nil {
			return err
		}
		if halted {
			return errors.New(errors.Runtime, "unexpected STOP while populating default arguments")
		}
	}
	return nil
}

// runUntilFrame drives the interpreter until the active frame unwinds back
// to target (i.e. the synthesised frame's RET has popped it).
func (m *VM) runUntilFrame(target *Frame) error {
	for m.frame != target {
		halted, err := m.step()
		if err != nil {
			return err
		}
		if halted {
			return errors.New(errors.Runtime, "unexpected STOP while invoking a function reference")
		}
	}
	return nil
}

// step executes exactly one instruction, reporting whether it was STOP.
func (m *VM) step() (bool, error) {
	m.steps++
	if m.steps > m.maxSteps {
		return false, errors.New(errors.Runtime, "exceeded maximum step count")
	}
	if m.ip < 0 || m.ip >= len(m.prog.Code) {
		return false, errors.New(errors.Runtime, "instruction pointer ran off the end of the program")
	}
	op := bytecode.OpCode(m.prog.Code[m.ip])
	m.ip++
	err := func() error {
		switch op {
		case bytecode.OpStop:
			return nil
		case bytecode.OpLoad:
			if err := m.execLoad(); err != nil {
				return err
			}
		case bytecode.OpStore:
			if err := m.execStore(); err != nil {
				return err
			}
		case bytecode.OpJump:
			m.ip = int(m.readOperand())
		case bytecode.OpJumpIf:
			target := int(m.readOperand())
			v, err := m.pop()
			if err != nil {
				return err
			}
			if !v.Truthy() {
				m.ip = target
			}
		case bytecode.OpCall:
			if err := m.execCall(); err != nil {
				return err
			}
		case bytecode.OpCall0:
			if err := m.execCall0(); err != nil {
				return err
			}
		case bytecode.OpCallF:
			if err := m.execCallF(); err != nil {
				return err
			}
		case bytecode.OpCallF0:
			if err := m.execCallF0(); err != nil {
				return err
			}
		case bytecode.OpStoreF:
			if err := m.execStoreF(); err != nil {
				return err
			}
		case bytecode.OpRet0:
			if m.frame == nil {
				return errors.New(errors.Runtime, "RET_0 with no active frame")
			}
			m.ip = m.frame.ReturnIP
		case bytecode.OpRet:
			if m.frame == nil {
				return errors.New(errors.Runtime, "RET with no active frame")
			}
			m.ip = m.frame.ReturnIP
			m.frame = m.frame.Caller
		case bytecode.OpNative:
			if err := m.execNative(); err != nil {
				return err
			}
		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
			bytecode.OpEq, bytecode.OpGt, bytecode.OpLt, bytecode.OpAnd, bytecode.OpOr:
			if err := m.execBinary(op); err != nil {
				return err
			}
		case bytecode.OpNot:
			v, err := m.pop()
			if err != nil {
				return err
			}
			m.push(value.Bool(!v.Truthy()))
		case bytecode.OpSqrt:
			v, err := m.pop()
			if err != nil {
				return err
			}
			m.push(value.Float(math.Sqrt(v.AsFloat())))
		case bytecode.OpAppend:
			val, err := m.pop()
			if err != nil {
				return err
			}
			vec, err := m.pop()
			if err != nil {
				return err
			}
			out, err := m.heap.Append(vec, val)
			if err != nil {
				return err
			}
			m.push(out)
		case bytecode.OpSquish2:
			y, err := m.pop()
			if err != nil {
				return err
			}
			x, err := m.pop()
			if err != nil {
				return err
			}
			m.push(value.Pair2D(x.AsFloat(), y.AsFloat()))
		case bytecode.OpPile:
			if err := m.execPile(); err != nil {
				return err
			}
		case bytecode.OpVecNonEmpty:
			v, err := m.pop()
			if err != nil {
				return err
			}
			m.push(value.Bool(m.heap.VectorLen(v) > 0))
		case bytecode.OpVecLoadFirst:
			v, err := m.pop()
			if err != nil {
				return err
			}
			elems := m.heap.Elements(v)
			if len(elems) == 0 {
				return errors.New(errors.Runtime, "VEC_LOAD_FIRST of an empty vector")
			}
			m.push(v)
			m.push(elems[0])
		case bytecode.OpVecHasNext, bytecode.OpVecNext:
			if err := m.execVecIterate(op); err != nil {
				return err
			}
		case bytecode.OpMtxLoad:
			if err := m.matrix.Push(matrixstack.Identity()); err != nil {
				return err
			}
		case bytecode.OpMtxStore:
			if err := m.matrix.Pop(); err != nil {
				return err
			}
		default:
			return errors.Newf(errors.Runtime, "unhandled opcode %s", op)
		}
		return nil
	}()
	return op == bytecode.OpStop, err
}

// InvokeNoArg runs a function reference to completion from inside a native,
// synthesising a frame the way vm_invoke_no_arg_function does: defaults
// populate first (the real ArgAddress block, run to its RET_0), then
// overrides are written directly into the frame's ARGUMENT slots, then the
// body runs until its RET — all without disturbing the calling frame.
func (m *VM) InvokeNoArg(ref value.Value, overrides map[words.Iname]value.Value) (value.Value, error) {
	if ref.Kind != value.KindFnRef {
		return value.Value{}, errors.New(errors.Runtime, "InvokeNoArg requires a function reference")
	}
	idx := ref.AsFnIndex()
	if idx < 0 || idx >= len(m.prog.Fns) {
		return value.Value{}, errors.New(errors.Runtime, "InvokeNoArg: invalid function reference")
	}
	fi := m.prog.Fns[idx]

	savedFrame, savedIP := m.frame, m.ip
	defer func() { m.frame, m.ip = savedFrame, savedIP }()

	nf := &Frame{
		Caller:   savedFrame,
		ReturnIP: fi.BodyAddress,
		Argument: make([]value.Value, len(fi.ArgInames)),
		ArgNames: fi.ArgInames,
		Fn:       fi,
	}
	m.frame = nf
	m.ip = fi.ArgAddress
	if err := m.runUntilIP(fi.BodyAddress, nf); err != nil {
		return value.Value{}, err
	}

	for label, v := range overrides {
		for i, n := range fi.ArgInames {
			if n == label {
				nf.storeArgument(i, v)
			}
		}
	}

	m.ip = fi.BodyAddress
	if err := m.runUntilFrame(savedFrame); err != nil {
		return value.Value{}, err
	}
	return m.pop()
}

func (m *VM) readOperand() int32 {
	v := m.prog.ReadOperand(m.ip)
	m.ip += 4
	return v
}

func (m *VM) execLoad() error {
	seg := bytecode.Segment(m.readOperand())
	slot := int(m.readOperand())
	switch seg {
	case bytecode.SegConstant:
		m.push(m.prog.Constants[slot])
	case bytecode.SegGlobal:
		m.push(m.globals[slot])
	case bytecode.SegArgument:
		if m.frame == nil {
			return errors.New(errors.Runtime, "LOAD ARGUMENT outside a function")
		}
		m.push(m.frame.loadArgument(slot))
	case bytecode.SegLocal:
		if m.frame == nil {
			return errors.New(errors.Runtime, "LOAD LOCAL outside a function")
		}
		m.push(m.frame.loadLocal(slot))
	default:
		return errors.Newf(errors.Runtime, "LOAD from unsupported segment %s", seg)
	}
	return nil
}

func (m *VM) execStore() error {
	seg := bytecode.Segment(m.readOperand())
	slot := int(m.readOperand())
	v, err := m.pop()
	if err != nil {
		return err
	}
	switch seg {
	case bytecode.SegGlobal:
		m.globals[slot] = v
	case bytecode.SegArgument:
		if m.frame == nil {
			return errors.New(errors.Runtime, "STORE ARGUMENT outside a function")
		}
		m.frame.storeArgument(slot, v)
	case bytecode.SegLocal:
		if m.frame == nil {
			return errors.New(errors.Runtime, "STORE LOCAL outside a function")
		}
		m.frame.storeLocal(slot, v)
	case bytecode.SegVoid:
		// discard
	default:
		return errors.Newf(errors.Runtime, "STORE to unsupported segment %s", seg)
	}
	return nil
}

func (m *VM) execPile() error {
	n := int(m.readOperand())
	v, err := m.pop()
	if err != nil {
		return err
	}
	elems := m.heap.Elements(v)
	if len(elems) != n {
		return errors.Newf(errors.Runtime, "PILE expected %d elements, got %d", n, len(elems))
	}
	for _, e := range elems {
		m.push(e)
	}
	return nil
}

func (m *VM) execBinary(op bytecode.OpCode) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	switch op {
	case bytecode.OpAdd:
		m.push(value.Float(a.AsFloat() + b.AsFloat()))
	case bytecode.OpSub:
		m.push(value.Float(a.AsFloat() - b.AsFloat()))
	case bytecode.OpMul:
		m.push(value.Float(a.AsFloat() * b.AsFloat()))
	case bytecode.OpDiv:
		if b.AsFloat() == 0 {
			return errors.New(errors.Runtime, "division by zero")
		}
		m.push(value.Float(a.AsFloat() / b.AsFloat()))
	case bytecode.OpMod:
		if b.AsFloat() == 0 {
			return errors.New(errors.Runtime, "modulo by zero")
		}
		m.push(value.Float(mod(a.AsFloat(), b.AsFloat())))
	case bytecode.OpEq:
		m.push(value.Bool(a.AsFloat() == b.AsFloat()))
	case bytecode.OpLt:
		m.push(value.Bool(a.AsFloat() < b.AsFloat()))
	case bytecode.OpGt:
		m.push(value.Bool(a.AsFloat() > b.AsFloat()))
	case bytecode.OpAnd:
		m.push(value.Bool(a.Truthy() && b.Truthy()))
	case bytecode.OpOr:
		m.push(value.Bool(a.Truthy() || b.Truthy()))
	}
	return nil
}

func mod(a, b float64) float64 {
	r := a - b*float64(int64(a/b))
	return r
}

func (m *VM) execVecIterate(op bytecode.OpCode) error {
	cur, err := m.pop()
	if err != nil {
		return err
	}
	vec, err := m.pop()
	if err != nil {
		return err
	}
	elems := m.heap.Elements(vec)
	idx := -1
	for i, e := range elems {
		if e == cur {
			idx = i
			break
		}
	}
	switch op {
	case bytecode.OpVecHasNext:
		m.push(vec)
		m.push(cur)
		m.push(value.Bool(idx >= 0 && idx+1 < len(elems)))
	case bytecode.OpVecNext:
		if idx < 0 || idx+1 >= len(elems) {
			return errors.New(errors.Runtime, "VEC_NEXT past end of vector")
		}
		m.push(vec)
		m.push(elems[idx+1])
	}
	return nil
}

// execCall begins the two-step call: it pushes a new Frame and jumps to
// the callee's ArgAddress block, which runs with this frame current and
// HopBack = caller.HopBack+1 so any override expression the caller emits
// before the matching CALL_0 reads the caller's own variables.
func (m *VM) execCall() error {
	idx := int(m.readOperand())
	if idx < 0 || idx >= len(m.prog.Fns) {
		return errors.New(errors.Runtime, "CALL to an unknown function index")
	}
	fi := m.prog.Fns[idx]
	hop := 1
	if m.frame != nil {
		hop = m.frame.HopBack + 1
	}
	nf := &Frame{
		Caller:   m.frame,
		ReturnIP: m.ip,
		HopBack:  hop,
		Argument: make([]value.Value, len(fi.ArgInames)),
		ArgNames: fi.ArgInames,
		Fn:       fi,
	}
	m.frame = nf
	m.ip = fi.ArgAddress
	return nil
}

func (m *VM) execCall0() error {
	idx := int(m.readOperand())
	fi := m.prog.Fns[idx]
	if m.frame == nil {
		return errors.New(errors.Runtime, "CALL_0 with no active frame")
	}
	m.frame.HopBack = 0
	m.frame.ReturnIP = m.ip
	m.ip = fi.BodyAddress
	return nil
}

func (m *VM) execCallF() error {
	ref, err := m.pop()
	if err != nil {
		return err
	}
	if ref.Kind != value.KindFnRef {
		return errors.New(errors.Runtime, "CALL_F operand is not a function reference")
	}
	idx := ref.AsFnIndex()
	if idx < 0 || idx >= len(m.prog.Fns) {
		return errors.New(errors.Runtime, "CALL_F to an unknown function index")
	}
	fi := m.prog.Fns[idx]
	hop := 1
	if m.frame != nil {
		hop = m.frame.HopBack + 1
	}
	nf := &Frame{
		Caller:   m.frame,
		ReturnIP: m.ip,
		HopBack:  hop,
		Argument: make([]value.Value, len(fi.ArgInames)),
		ArgNames: fi.ArgInames,
		Fn:       fi,
	}
	m.frame = nf
	m.ip = fi.ArgAddress
	return nil
}

func (m *VM) execCallF0() error {
	if m.frame == nil {
		return errors.New(errors.Runtime, "CALL_F_0 with no active frame")
	}
	// The callee was resolved once already, by the matching CALL_F; CALL_F_0
	// reads it straight off the frame instead of re-deriving it.
	if m.frame.Fn == nil {
		return errors.New(errors.Runtime, "CALL_F_0 could not resolve its callee")
	}
	m.frame.HopBack = 0
	m.frame.ReturnIP = m.ip
	m.ip = m.frame.Fn.BodyAddress
	return nil
}

// execStoreF is STORE's indirect counterpart: the callee wasn't known at
// compile time, so the label is carried on the stack and matched against
// the active frame's ArgNames at runtime; an unmatched label is simply
// dropped, exactly like a STORE VOID on the direct-call path.
func (m *VM) execStoreF() error {
	val, err := m.pop()
	if err != nil {
		return err
	}
	label, err := m.pop()
	if err != nil {
		return err
	}
	if m.frame == nil {
		return errors.New(errors.Runtime, "STORE_F with no active frame")
	}
	for i, n := range m.frame.ArgNames {
		if n == label.Iname {
			m.frame.storeArgument(i, val)
			return nil
		}
	}
	return nil
}

func (m *VM) execNative() error {
	name := words.Iname(m.readOperand())
	numArgs := int(m.readOperand())
	labelled := make(map[words.Iname]value.Value, numArgs)
	pairs := make([][2]value.Value, numArgs)
	for i := numArgs - 1; i >= 0; i-- {
		val, err := m.pop()
		if err != nil {
			return err
		}
		label, err := m.pop()
		if err != nil {
			return err
		}
		pairs[i] = [2]value.Value{label, val}
	}
	for _, p := range pairs {
		labelled[p[0].Iname] = p[1]
	}
	if m.natives == nil {
		return errors.Newf(errors.Runtime, "no native function table installed")
	}
	matrix := m.matrix.Top()
	result, err := m.natives.Call(name, m, Args{Labelled: labelled})
	if err != nil {
		return err
	}
	m.Emit(RenderCommand{Native: name, Args: Args{Labelled: labelled}, Matrix: matrix})
	m.push(result)
	return nil
}
