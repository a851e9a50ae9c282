// Package compiler implements Seni's two-pass compiler: pass one walks the
// top-level forms registering every fn's signature and every define's target
// slot so forward references resolve; pass two emits code in four groups —
// function bodies, the global preamble, top-level defines, then every other
// top-level form — ending in STOP.
package compiler

import (
	"seni/internal/bytecode"
	"seni/internal/errors"
	"seni/internal/parser"
	"seni/internal/value"
	"seni/internal/words"
)

// GeneSource supplies substituted gene values for ALTERABLE nodes during a
// genotype-driven compile; the genetic package's Genotype implements it.
// Kept as an interface here (rather than importing internal/genetic) to
// avoid a package cycle, since genetic in turn drives the compiler to
// materialise trait values.
type GeneSource interface {
	Next() (value.Value, bool)
}

// fnScope tracks argument and local-variable slots while compiling one
// top-level function body; nil at top level, where `define` targets GLOBAL
// instead of LOCAL.
type fnScope struct {
	info      *bytecode.FnInfo
	argSlot   map[words.Iname]int
	localSlot map[words.Iname]int
	numLocals int
}

// kw caches every reserved-form iname once, up front, so the hot compile
// loop compares Iname values instead of re-resolving strings.
type kw struct {
	define, fn, ifForm, loop, fence, onMatrixStack words.Iname
	addressOf, fnCall, quote, setq                 words.Iname
	add, sub, mul, div, eq, lt, gt, and, or, not    words.Iname
	sqrt, mod                                       words.Iname
	from, to, upto, increment, steps                words.Iname
}

func newKw(t *words.Table) kw {
	get := func(s string) words.Iname {
		i, _ := t.KeywordIname(s)
		return i
	}
	return kw{
		define: get("define"), fn: get("fn"), ifForm: get("if"),
		loop: get("loop"), fence: get("fence"), onMatrixStack: get("on-matrix-stack"),
		addressOf: get("address-of"), fnCall: get("fn-call"), quote: get("quote"), setq: get("setq"),
		add: get("+"), sub: get("-"), mul: get("*"), div: get("/"),
		eq: get("="), lt: get("<"), gt: get(">"), and: get("and"), or: get("or"),
		not: get("not"), sqrt: get("sqrt"), mod: get("mod"),
		from: get("from"), to: get("to"), upto: get("upto"),
		increment: get("increment"), steps: get("steps"),
	}
}

// Compiler lowers a parsed script into a bytecode.Program.
type Compiler struct {
	prog  *bytecode.Program
	table *words.Table
	kw    kw
	fn    *fnScope
	genes GeneSource
}

// Compile lowers nodes (as returned by parser.Parse) into a Program.
func Compile(nodes []*parser.Node, table *words.Table) (*bytecode.Program, error) {
	return CompileWithGenes(nodes, table, nil)
}

// CompileWithGenes is Compile, but every ALTERABLE node's value is replaced
// by the next value genes yields instead of its literal source value — the
// mechanism the trait engine uses to materialise one genotype's phenotype.
func CompileWithGenes(nodes []*parser.Node, table *words.Table, genes GeneSource) (*bytecode.Program, error) {
	c := &Compiler{prog: bytecode.NewProgram(), table: table, kw: newKw(table), genes: genes}
	if err := c.compileProgram(nodes); err != nil {
		return nil, err
	}
	return c.prog, nil
}

// CompileTraitProgram compiles a trait's parameter_ast — the generator
// expression chain hanging off an alterable node — in isolation. Unlike
// Compile, the forms are compiled as one body in source order (no fn/define
// grouping, no preamble), and the final form's value is left on the stack,
// since materialising a gene means reading that value once the program
// halts.
func CompileTraitProgram(nodes []*parser.Node, table *words.Table) (*bytecode.Program, error) {
	c := &Compiler{prog: bytecode.NewProgram(), table: table, kw: newKw(table)}
	if err := c.compileBodyValue(topLevelForms(nodes)); err != nil {
		return nil, err
	}
	c.emitOp(bytecode.OpStop)
	return c.prog, nil
}

func topLevelForms(nodes []*parser.Node) []*parser.Node {
	var out []*parser.Node
	for _, n := range nodes {
		if !n.IsTrivia() {
			out = append(out, n)
		}
	}
	return out
}

func (c *Compiler) compileProgram(nodes []*parser.Node) error {
	forms := topLevelForms(nodes)
	var fnForms, defineForms, otherForms []*parser.Node
	for _, f := range forms {
		nt := listHead(f)
		switch {
		case nt != nil && nt[0].Kind == parser.KindName && nt[0].Iname == c.kw.fn:
			if err := c.registerFn(nt); err != nil {
				return err
			}
			fnForms = append(fnForms, f)
		case nt != nil && nt[0].Kind == parser.KindName && nt[0].Iname == c.kw.define:
			if err := c.registerDefineTargets(nt); err != nil {
				return err
			}
			defineForms = append(defineForms, f)
		default:
			otherForms = append(otherForms, f)
		}
	}

	c.emitOp(bytecode.OpJump)
	jumpAt := c.prog.Here()
	c.prog.WriteOperand(0, bytecode.DebugInfo{})

	for _, f := range fnForms {
		if err := c.compileFn(listHead(f)); err != nil {
			return err
		}
	}

	c.prog.PatchOperand(jumpAt, int32(c.prog.Here()))
	c.emitPreamble()

	for _, f := range defineForms {
		if _, err := c.compileDefine(listHead(f)); err != nil {
			return err
		}
	}
	// Every other top-level form but the last runs for effect; the last one's
	// value (if it produces one) stays on the stack as the script's result.
	if n := len(otherForms); n > 0 {
		if err := c.compileDropAll(otherForms[:n-1]); err != nil {
			return err
		}
		d, err := c.compileExpr(otherForms[n-1])
		if err != nil {
			return err
		}
		c.dropValues(d - 1)
	}
	c.emitOp(bytecode.OpStop)
	return nil
}

// listHead returns a LIST node's non-trivia children, or nil if n isn't a
// non-empty LIST — used to recognise `(fn ...)`/`(define ...)` shape.
func listHead(n *parser.Node) []*parser.Node {
	if n.Kind != parser.KindList {
		return nil
	}
	nt := n.NonTrivia()
	if len(nt) == 0 {
		return nil
	}
	return nt
}

func (c *Compiler) registerFn(nt []*parser.Node) error {
	if len(nt) < 2 || nt[1].Kind != parser.KindList {
		return c.errf("fn requires a (name arg: default ...) header")
	}
	hnt := nt[1].NonTrivia()
	if len(hnt) == 0 || hnt[0].Kind != parser.KindName {
		return c.errf("fn header requires a function name")
	}
	if _, exists := c.prog.FnByName(hnt[0].Iname); exists {
		return c.errf("function already defined")
	}
	var argInames []words.Iname
	for i := 1; i < len(hnt); i += 2 {
		if hnt[i].Kind != parser.KindLabel {
			return c.errf("fn header expects label: default pairs")
		}
		argInames = append(argInames, hnt[i].Iname)
	}
	c.prog.AllocFn(hnt[0].Iname, argInames)
	return nil
}

func (c *Compiler) registerDefineTargets(nt []*parser.Node) error {
	if len(nt) < 3 {
		return c.errf("define requires a target and a value")
	}
	return c.forEachDefineTarget(nt[1], func(iname words.Iname) {
		c.prog.AllocGlobal(iname)
	})
}

func (c *Compiler) forEachDefineTarget(lhs *parser.Node, f func(words.Iname)) error {
	switch lhs.Kind {
	case parser.KindName:
		f(lhs.Iname)
		return nil
	case parser.KindVector:
		for _, el := range lhs.NonTrivia() {
			if el.Kind != parser.KindName {
				return c.errf("destructuring define target must be a NAME")
			}
			f(el.Iname)
		}
		return nil
	default:
		return c.errf("define target must be a NAME or a VECTOR of NAMEs")
	}
}

// compileFn emits the two-step CALL/CALL_0 entry pair: ArgAddress populates
// every default then RET_0s back to the call site, where the caller's label
// overrides (between the CALL and the matching CALL_0) overwrite them;
// BodyAddress runs the real body and RETs with its value.
func (c *Compiler) compileFn(nt []*parser.Node) error {
	hnt := nt[1].NonTrivia()
	fi, _ := c.prog.FnByName(hnt[0].Iname)
	body := nt[2:]

	prev := c.fn
	c.fn = &fnScope{info: fi, argSlot: make(map[words.Iname]int), localSlot: make(map[words.Iname]int)}
	defer func() { c.fn = prev }()

	fi.ArgAddress = c.prog.Here()
	slot := 0
	for i := 1; i < len(hnt); i += 2 {
		label := hnt[i].Iname
		def := hnt[i+1]
		c.fn.argSlot[label] = slot
		if _, err := c.compileExpr(def); err != nil {
			return err
		}
		c.emitStore(bytecode.SegArgument, slot)
		slot++
	}
	c.emitOp(bytecode.OpRet0)

	fi.BodyAddress = c.prog.Here()
	if err := c.compileBodyValue(body); err != nil {
		return err
	}
	c.emitOp(bytecode.OpRet)
	return nil
}

// compileBodyValue compiles a statement sequence, dropping every
// intermediate result and leaving exactly the last statement's value (VOID
// if the sequence is empty) on the stack — used by fn bodies and `if`
// branches, both of which must yield a single value.
func (c *Compiler) compileBodyValue(body []*parser.Node) error {
	if len(body) == 0 {
		c.emitLoadConst(value.Void())
		return nil
	}
	for i, stmt := range body {
		d, err := c.compileExpr(stmt)
		if err != nil {
			return err
		}
		if i < len(body)-1 {
			c.dropValues(d)
			continue
		}
		c.dropValues(d - 1)
		if d == 0 {
			c.emitLoadConst(value.Void())
		}
	}
	return nil
}

// compileDropAll compiles forms purely for effect: every value any of them
// leaves behind is popped with STORE VOID.
func (c *Compiler) compileDropAll(forms []*parser.Node) error {
	for _, f := range forms {
		d, err := c.compileExpr(f)
		if err != nil {
			return err
		}
		c.dropValues(d)
	}
	return nil
}

func (c *Compiler) dropValues(n int) {
	for ; n > 0; n-- {
		c.emitStoreVoid()
	}
}

// compileExpr compiles one node and returns how many values it leaves on
// the stack: 1 for every value-producing expression, 0 for the
// statement-shaped forms (define/loop/fence/on-matrix-stack/setq).
func (c *Compiler) compileExpr(n *parser.Node) (int, error) {
	if n.Alterable && c.genes != nil {
		if g, ok := c.genes.Next(); ok {
			c.emitLoadConst(g)
			return 1, nil
		}
	}
	switch n.Kind {
	case parser.KindInt:
		c.emitLoadConst(value.Float(float64(n.Int)))
		return 1, nil
	case parser.KindFloat:
		c.emitLoadConst(value.Float(n.Float))
		return 1, nil
	case parser.KindBoolean:
		c.emitLoadConst(value.Bool(n.Bool))
		return 1, nil
	case parser.KindString:
		c.emitLoadConst(value.Name(n.Iname))
		return 1, nil
	case parser.KindName:
		return c.compileNameRef(n)
	case parser.KindVector:
		return c.compileVectorLiteral(n)
	case parser.KindList:
		return c.compileList(n)
	default:
		return 0, c.errf("cannot compile a bare %s in expression position", n.Kind)
	}
}

func (c *Compiler) compileNameRef(n *parser.Node) (int, error) {
	if c.fn != nil {
		if slot, ok := c.fn.argSlot[n.Iname]; ok {
			c.emitLoad(bytecode.SegArgument, slot)
			return 1, nil
		}
		if slot, ok := c.fn.localSlot[n.Iname]; ok {
			c.emitLoad(bytecode.SegLocal, slot)
			return 1, nil
		}
	}
	if slot, ok := c.prog.GlobalNames[n.Iname]; ok {
		c.emitLoad(bytecode.SegGlobal, slot)
		return 1, nil
	}
	// Unbound word: an enum value (`linear`, `RGB`, ...) or a forward use of
	// a not-yet-defined global. Treated as an opaque NAME constant; natives
	// that expect an enum compare against these directly.
	c.emitLoadConst(value.Name(n.Iname))
	return 1, nil
}

func (c *Compiler) compileVectorLiteral(n *parser.Node) (int, error) {
	elems := n.NonTrivia()
	if len(elems) == 2 {
		for _, e := range elems {
			d, err := c.compileExpr(e)
			if err != nil {
				return 0, err
			}
			if d != 1 {
				return 0, c.errf("vector element must produce exactly one value")
			}
		}
		c.emitOp(bytecode.OpSquish2)
		return 1, nil
	}
	c.emitLoadConst(value.EmptyVector())
	for _, e := range elems {
		d, err := c.compileExpr(e)
		if err != nil {
			return 0, err
		}
		if d != 1 {
			return 0, c.errf("vector element must produce exactly one value")
		}
		c.emitOp(bytecode.OpAppend)
	}
	return 1, nil
}

func (c *Compiler) compileList(n *parser.Node) (int, error) {
	nt := n.NonTrivia()
	if len(nt) == 0 {
		c.emitLoadConst(value.EmptyVector())
		return 1, nil
	}
	head := nt[0]
	if head.Kind != parser.KindName {
		return 0, c.errf("list head must be a NAME")
	}
	switch head.Iname {
	case c.kw.define:
		return c.compileDefine(nt)
	case c.kw.ifForm:
		return c.compileIf(nt)
	case c.kw.loop:
		return c.compileLoop(nt, false)
	case c.kw.fence:
		return c.compileLoop(nt, true)
	case c.kw.onMatrixStack:
		return c.compileOnMatrixStack(nt)
	case c.kw.fn:
		return 0, c.errf("fn may only appear as a top-level form")
	case c.kw.addressOf:
		return c.compileAddressOf(nt)
	case c.kw.fnCall:
		return c.compileFnCall(nt)
	case c.kw.quote:
		return c.compileQuote(nt)
	case c.kw.setq:
		return c.compileSetq(nt)
	case c.kw.add, c.kw.sub, c.kw.mul, c.kw.div, c.kw.mod,
		c.kw.eq, c.kw.lt, c.kw.gt, c.kw.and, c.kw.or:
		return c.compileBinaryChain(nt, head.Iname)
	case c.kw.not, c.kw.sqrt:
		return c.compileUnary(nt, head.Iname)
	default:
		return c.compileCall(head.Iname, nt[1:])
	}
}

func (c *Compiler) compileDefine(nt []*parser.Node) (int, error) {
	if len(nt) < 3 {
		return 0, c.errf("define requires a target and a value")
	}
	if _, err := c.compileExpr(nt[2]); err != nil {
		return 0, err
	}
	lhs := nt[1]
	if lhs.Kind == parser.KindVector {
		names := lhs.NonTrivia()
		c.emitOp(bytecode.OpPile)
		c.prog.WriteOperand(int32(len(names)), bytecode.DebugInfo{})
		for i := len(names) - 1; i >= 0; i-- {
			if names[i].Kind != parser.KindName {
				return 0, c.errf("destructuring define target must be a NAME")
			}
			seg, slot := c.assignSlot(names[i].Iname)
			c.emitStore(seg, slot)
		}
		return 0, nil
	}
	if lhs.Kind != parser.KindName {
		return 0, c.errf("define target must be a NAME or a VECTOR of NAMEs")
	}
	seg, slot := c.assignSlot(lhs.Iname)
	c.emitStore(seg, slot)
	return 0, nil
}

// assignSlot resolves a define target to its storage slot: LOCAL inside a
// function body, GLOBAL at top level.
func (c *Compiler) assignSlot(iname words.Iname) (bytecode.Segment, int) {
	if c.fn != nil {
		if slot, ok := c.fn.localSlot[iname]; ok {
			return bytecode.SegLocal, slot
		}
		slot := c.fn.numLocals
		c.fn.localSlot[iname] = slot
		c.fn.numLocals++
		return bytecode.SegLocal, slot
	}
	return bytecode.SegGlobal, c.prog.AllocGlobal(iname)
}

func (c *Compiler) declareAnonSlot() (bytecode.Segment, int) {
	if c.fn != nil {
		slot := c.fn.numLocals
		c.fn.numLocals++
		return bytecode.SegLocal, slot
	}
	slot := c.prog.NumGlobals
	c.prog.NumGlobals++
	return bytecode.SegGlobal, slot
}

func (c *Compiler) lookupVar(iname words.Iname) (bytecode.Segment, int, bool) {
	if c.fn != nil {
		if slot, ok := c.fn.argSlot[iname]; ok {
			return bytecode.SegArgument, slot, true
		}
		if slot, ok := c.fn.localSlot[iname]; ok {
			return bytecode.SegLocal, slot, true
		}
	}
	if slot, ok := c.prog.GlobalNames[iname]; ok {
		return bytecode.SegGlobal, slot, true
	}
	return 0, 0, false
}

func (c *Compiler) compileSetq(nt []*parser.Node) (int, error) {
	if len(nt) != 3 || nt[1].Kind != parser.KindName {
		return 0, c.errf("setq requires a NAME target and a value")
	}
	if _, err := c.compileExpr(nt[2]); err != nil {
		return 0, err
	}
	seg, slot, ok := c.lookupVar(nt[1].Iname)
	if !ok {
		return 0, c.errf("setq of an undefined variable")
	}
	c.emitStore(seg, slot)
	return 0, nil
}

func (c *Compiler) compileIf(nt []*parser.Node) (int, error) {
	if len(nt) < 3 {
		return 0, c.errf("if requires a test and a then-branch")
	}
	if _, err := c.compileExpr(nt[1]); err != nil {
		return 0, err
	}
	c.emitOp(bytecode.OpJumpIf)
	jumpIfAt := c.prog.Here()
	c.prog.WriteOperand(0, bytecode.DebugInfo{})

	thenBody := []*parser.Node{nt[2]}
	if err := c.compileBodyValue(thenBody); err != nil {
		return 0, err
	}
	c.emitOp(bytecode.OpJump)
	jumpEndAt := c.prog.Here()
	c.prog.WriteOperand(0, bytecode.DebugInfo{})

	c.prog.PatchOperand(jumpIfAt, int32(c.prog.Here()))
	if len(nt) >= 4 {
		if err := c.compileBodyValue([]*parser.Node{nt[3]}); err != nil {
			return 0, err
		}
	} else {
		c.emitLoadConst(value.Void())
	}
	c.prog.PatchOperand(jumpEndAt, int32(c.prog.Here()))
	return 1, nil
}

// compileLoop handles both `loop` (integer step, default increment 1) and
// `fence` (always steps-based linear interpolation from A to B); `loop`
// also takes the steps-based path when its header gives a steps: count
// instead of an increment:.
func (c *Compiler) compileLoop(nt []*parser.Node, isFence bool) (int, error) {
	if len(nt) < 2 || nt[1].Kind != parser.KindList {
		return 0, c.errf("loop/fence requires a (var label: value ...) header")
	}
	header := nt[1].NonTrivia()
	if len(header) == 0 || header[0].Kind != parser.KindName {
		return 0, c.errf("loop/fence header needs a variable name")
	}
	varIname := header[0].Iname
	labels := make(map[words.Iname]*parser.Node)
	for i := 1; i < len(header); i += 2 {
		if header[i].Kind != parser.KindLabel || i+1 >= len(header) {
			return 0, c.errf("loop/fence header expects label: value pairs")
		}
		labels[header[i].Iname] = header[i+1]
	}
	body := nt[2:]
	seg, slot := c.assignSlot(varIname)

	_, hasSteps := labels[c.kw.steps]
	if isFence || hasSteps {
		return 0, c.compileSteppedLoop(seg, slot, labels, body)
	}
	return 0, c.compileIncrementLoop(seg, slot, labels, body)
}

func (c *Compiler) compileIncrementLoop(seg bytecode.Segment, slot int, labels map[words.Iname]*parser.Node, body []*parser.Node) error {
	if from, ok := labels[c.kw.from]; ok {
		if _, err := c.compileExpr(from); err != nil {
			return err
		}
	} else {
		c.emitLoadConst(value.Float(0))
	}
	c.emitStore(seg, slot)

	loopStart := c.prog.Here()
	bound, inclusive := labels[c.kw.to], false
	if bound == nil {
		bound, inclusive = labels[c.kw.upto], true
	}
	if bound == nil {
		return c.errf("loop requires a to: or upto: bound")
	}
	c.emitLoad(seg, slot)
	if _, err := c.compileExpr(bound); err != nil {
		return err
	}
	if inclusive {
		c.emitOp(bytecode.OpGt)
		c.emitOp(bytecode.OpNot)
	} else {
		c.emitOp(bytecode.OpLt)
	}
	c.emitOp(bytecode.OpJumpIf)
	exitAt := c.prog.Here()
	c.prog.WriteOperand(0, bytecode.DebugInfo{})

	if err := c.compileDropAll(body); err != nil {
		return err
	}
	c.emitLoad(seg, slot)
	if inc, ok := labels[c.kw.increment]; ok {
		if _, err := c.compileExpr(inc); err != nil {
			return err
		}
	} else {
		c.emitLoadConst(value.Float(1))
	}
	c.emitOp(bytecode.OpAdd)
	c.emitStore(seg, slot)
	c.emitJumpTo(loopStart)
	c.prog.PatchOperand(exitAt, int32(c.prog.Here()))
	return nil
}

// compileSteppedLoop interpolates var linearly across N = steps: evenly
// spaced points between from: and to:/upto:, inclusive iff upto: was given.
func (c *Compiler) compileSteppedLoop(seg bytecode.Segment, slot int, labels map[words.Iname]*parser.Node, body []*parser.Node) error {
	n := labels[c.kw.steps]
	if n == nil {
		return c.errf("fence (or a steps-based loop) requires steps:")
	}
	from := labels[c.kw.from]
	bound, inclusive := labels[c.kw.to], false
	if bound == nil {
		bound, inclusive = labels[c.kw.upto], true
	}
	if bound == nil {
		return c.errf("fence requires a to: or upto: bound")
	}

	counterSeg, counterSlot := c.declareAnonSlot()
	stepSeg, stepSlot := c.declareAnonSlot()

	if _, err := c.compileExpr(bound); err != nil {
		return err
	}
	if from != nil {
		if _, err := c.compileExpr(from); err != nil {
			return err
		}
	} else {
		c.emitLoadConst(value.Float(0))
	}
	c.emitOp(bytecode.OpSub)
	if _, err := c.compileExpr(n); err != nil {
		return err
	}
	if inclusive {
		c.emitLoadConst(value.Float(1))
		c.emitOp(bytecode.OpSub)
	}
	c.emitOp(bytecode.OpDiv)
	c.emitStore(stepSeg, stepSlot)

	c.emitLoadConst(value.Float(0))
	c.emitStore(counterSeg, counterSlot)

	loopStart := c.prog.Here()
	c.emitLoad(counterSeg, counterSlot)
	if _, err := c.compileExpr(n); err != nil {
		return err
	}
	c.emitOp(bytecode.OpLt)
	c.emitOp(bytecode.OpJumpIf)
	exitAt := c.prog.Here()
	c.prog.WriteOperand(0, bytecode.DebugInfo{})

	if from != nil {
		if _, err := c.compileExpr(from); err != nil {
			return err
		}
	} else {
		c.emitLoadConst(value.Float(0))
	}
	c.emitLoad(counterSeg, counterSlot)
	c.emitLoad(stepSeg, stepSlot)
	c.emitOp(bytecode.OpMul)
	c.emitOp(bytecode.OpAdd)
	c.emitStore(seg, slot)

	if err := c.compileDropAll(body); err != nil {
		return err
	}

	c.emitLoad(counterSeg, counterSlot)
	c.emitLoadConst(value.Float(1))
	c.emitOp(bytecode.OpAdd)
	c.emitStore(counterSeg, counterSlot)
	c.emitJumpTo(loopStart)
	c.prog.PatchOperand(exitAt, int32(c.prog.Here()))
	return nil
}

func (c *Compiler) compileOnMatrixStack(nt []*parser.Node) (int, error) {
	c.emitOp(bytecode.OpMtxLoad)
	if err := c.compileDropAll(nt[1:]); err != nil {
		return 0, err
	}
	c.emitOp(bytecode.OpMtxStore)
	return 0, nil
}

func (c *Compiler) compileBinaryChain(nt []*parser.Node, op words.Iname) (int, error) {
	args := nt[1:]
	if len(args) < 2 {
		return 0, c.errf("operator requires at least two operands")
	}
	if _, err := c.compileExpr(args[0]); err != nil {
		return 0, err
	}
	for _, a := range args[1:] {
		if _, err := c.compileExpr(a); err != nil {
			return 0, err
		}
		c.emitArithOp(op)
	}
	return 1, nil
}

func (c *Compiler) compileUnary(nt []*parser.Node, op words.Iname) (int, error) {
	if len(nt) != 2 {
		return 0, c.errf("unary operator requires exactly one operand")
	}
	if _, err := c.compileExpr(nt[1]); err != nil {
		return 0, err
	}
	if op == c.kw.not {
		c.emitOp(bytecode.OpNot)
	} else {
		c.emitOp(bytecode.OpSqrt)
	}
	return 1, nil
}

func (c *Compiler) emitArithOp(op words.Iname) {
	switch op {
	case c.kw.add:
		c.emitOp(bytecode.OpAdd)
	case c.kw.sub:
		c.emitOp(bytecode.OpSub)
	case c.kw.mul:
		c.emitOp(bytecode.OpMul)
	case c.kw.div:
		c.emitOp(bytecode.OpDiv)
	case c.kw.mod:
		c.emitOp(bytecode.OpMod)
	case c.kw.eq:
		c.emitOp(bytecode.OpEq)
	case c.kw.lt:
		c.emitOp(bytecode.OpLt)
	case c.kw.gt:
		c.emitOp(bytecode.OpGt)
	case c.kw.and:
		c.emitOp(bytecode.OpAnd)
	case c.kw.or:
		c.emitOp(bytecode.OpOr)
	}
}

// compileQuote supports the common 'x -> (quote x) case: the symbol itself,
// unevaluated, as a NAME constant. Any other quoted shape falls back to
// ordinary evaluation.
func (c *Compiler) compileQuote(nt []*parser.Node) (int, error) {
	if len(nt) != 2 {
		return 0, c.errf("quote requires exactly one operand")
	}
	if nt[1].Kind == parser.KindName {
		c.emitLoadConst(value.Name(nt[1].Iname))
		return 1, nil
	}
	return c.compileExpr(nt[1])
}

func (c *Compiler) compileAddressOf(nt []*parser.Node) (int, error) {
	if len(nt) != 2 || nt[1].Kind != parser.KindName {
		return 0, c.errf("address-of requires a function NAME")
	}
	fi, ok := c.prog.FnByName(nt[1].Iname)
	if !ok {
		return 0, c.errf("address-of: unknown function")
	}
	c.emitLoadConst(value.FnRef(fi.Index))
	return 1, nil
}

// compileFnCall lowers (fn-call (fn-ref-expr label: value ...)): the
// indirect counterpart of a direct call, resolved at runtime via
// CALL_F/STORE_F/CALL_F_0 since the callee isn't known until the fn_ref
// value is computed.
func (c *Compiler) compileFnCall(nt []*parser.Node) (int, error) {
	if len(nt) != 2 || nt[1].Kind != parser.KindList {
		return 0, c.errf("fn-call requires a single list operand")
	}
	inner := nt[1].NonTrivia()
	if len(inner) == 0 {
		return 0, c.errf("fn-call's list must not be empty")
	}
	if _, err := c.compileExpr(inner[0]); err != nil {
		return 0, err
	}
	c.emitOp(bytecode.OpCallF)
	for i := 1; i < len(inner); i += 2 {
		if inner[i].Kind != parser.KindLabel || i+1 >= len(inner) {
			return 0, c.errf("fn-call overrides must be label: value pairs")
		}
		c.emitLoadConst(value.Name(inner[i].Iname))
		if _, err := c.compileExpr(inner[i+1]); err != nil {
			return 0, err
		}
		c.emitOp(bytecode.OpStoreF)
	}
	c.emitOp(bytecode.OpCallF0)
	return 1, nil
}

// compileCall lowers a call whose head names either a top-level fn (known
// at compile time, so label overrides resolve to a fixed ARGUMENT slot
// right here) or a native (resolved by iname at VM dispatch time).
func (c *Compiler) compileCall(name words.Iname, args []*parser.Node) (int, error) {
	if fi, ok := c.prog.FnByName(name); ok {
		return 1, c.compileDirectCall(fi, args)
	}
	return c.compileNativeCall(name, args)
}

func (c *Compiler) compileDirectCall(fi *bytecode.FnInfo, args []*parser.Node) error {
	c.emitOp(bytecode.OpCall)
	c.prog.WriteOperand(int32(fi.Index), bytecode.DebugInfo{})

	for i := 0; i < len(args); i += 2 {
		if args[i].Kind != parser.KindLabel || i+1 >= len(args) {
			return c.errf("call argument must be a label: value pair")
		}
		if _, err := c.compileExpr(args[i+1]); err != nil {
			return err
		}
		if slot, ok := fi.HasArg(args[i].Iname); ok {
			c.emitStore(bytecode.SegArgument, slot)
		} else {
			c.emitStoreVoid()
		}
	}
	c.emitOp(bytecode.OpCall0)
	c.prog.WriteOperand(int32(fi.Index), bytecode.DebugInfo{})
	return nil
}

// compileNativeCall lowers every actual argument to a label: value pair —
// `LOAD CONST label-iname; <compile value>` — then `NATIVE iname, num_args`.
// At the bytecode level a native only ever sees labelled pairs; at the
// source level a bare (unlabelled) argument is permitted when the native
// registered positional-parameter names (RegisterNativeParams), and is
// assigned the next one in order — this is how `(vector/append v x)` lowers
// despite neither actual argument carrying an explicit label in the source.
func (c *Compiler) compileNativeCall(name words.Iname, args []*parser.Node) (int, error) {
	params, hasParams := c.table.NativeParamNames(name)
	numArgs := 0
	posIdx := 0
	for i := 0; i < len(args); {
		arg := args[i]
		if arg.Kind == parser.KindLabel {
			if i+1 >= len(args) {
				return 0, c.errf("native argument label has no value")
			}
			c.emitLoadConst(value.Name(arg.Iname))
			if _, err := c.compileExpr(args[i+1]); err != nil {
				return 0, err
			}
			numArgs++
			i += 2
			continue
		}
		if !hasParams || posIdx >= len(params) {
			return 0, c.errf("unlabelled argument to native with no positional parameter name")
		}
		labelIname, ok := c.table.KeywordIname(params[posIdx])
		if !ok {
			return 0, c.errf("native positional parameter %q is not a registered keyword", params[posIdx])
		}
		c.emitLoadConst(value.Name(labelIname))
		if _, err := c.compileExpr(arg); err != nil {
			return 0, err
		}
		numArgs++
		posIdx++
		i++
	}
	c.emitOp(bytecode.OpNative)
	c.prog.WriteOperand(int32(name), bytecode.DebugInfo{})
	c.prog.WriteOperand(int32(numArgs), bytecode.DebugInfo{})
	return 1, nil
}

// emitPreamble stores every predefined global (canvas size, named colours)
// right after the top-level entry jump, before any user define runs.
func (c *Compiler) emitPreamble() {
	set := func(name string, v value.Value) {
		iname, _ := c.table.KeywordIname(name)
		slot := c.prog.AllocGlobal(iname)
		c.emitLoadConst(v)
		c.emitStore(bytecode.SegGlobal, slot)
	}
	set("canvas/width", value.Float(1000))
	set("canvas/height", value.Float(1000))
	set("white", value.Colour(value.RGB, 1, 1, 1, 1))
	set("black", value.Colour(value.RGB, 0, 0, 0, 1))
	set("red", value.Colour(value.RGB, 1, 0, 0, 1))
	set("green", value.Colour(value.RGB, 0, 1, 0, 1))
	set("blue", value.Colour(value.RGB, 0, 0, 1, 1))
	set("yellow", value.Colour(value.RGB, 1, 1, 0, 1))
	set("magenta", value.Colour(value.RGB, 1, 0, 1, 1))
	set("cyan", value.Colour(value.RGB, 0, 1, 1, 1))
}

func (c *Compiler) emitOp(op bytecode.OpCode) {
	c.prog.WriteOp(op, bytecode.DebugInfo{})
}

func (c *Compiler) emitJumpTo(target int) {
	c.emitOp(bytecode.OpJump)
	c.prog.WriteOperand(int32(target), bytecode.DebugInfo{})
}

func (c *Compiler) emitLoadConst(v value.Value) {
	idx := c.prog.AddConstant(v)
	c.emitLoad(bytecode.SegConstant, idx)
}

func (c *Compiler) emitLoad(seg bytecode.Segment, slot int) {
	c.emitOp(bytecode.OpLoad)
	c.prog.WriteOperand(int32(seg), bytecode.DebugInfo{})
	c.prog.WriteOperand(int32(slot), bytecode.DebugInfo{})
}

func (c *Compiler) emitStore(seg bytecode.Segment, slot int) {
	c.emitOp(bytecode.OpStore)
	c.prog.WriteOperand(int32(seg), bytecode.DebugInfo{})
	c.prog.WriteOperand(int32(slot), bytecode.DebugInfo{})
}

func (c *Compiler) emitStoreVoid() {
	c.emitOp(bytecode.OpStore)
	c.prog.WriteOperand(int32(bytecode.SegVoid), bytecode.DebugInfo{})
	c.prog.WriteOperand(0, bytecode.DebugInfo{})
}

func (c *Compiler) errf(format string, args ...interface{}) error {
	return errors.Newf(errors.Compile, format, args...)
}
