// Package natives is the iname-indexed native-function façade the VM
// dispatches NATIVE instructions through, grounded on spec.md's "natives
// register through a table, not a switch" design note.
package natives

import (
	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/vm"
	"seni/internal/words"
)

// Func is one native's implementation: read its labelled arguments out of
// args, perform whatever host-side effect (geometry emission, matrix-stack
// scoping, RNG draw), and return the single value NATIVE pushes back.
type Func func(m *vm.VM, args vm.Args) (value.Value, error)

// Table is the authoritative native registry; it implements vm.NativeSet.
type Table struct {
	words *words.Table
	lbl   labels
	fns   map[words.Iname]Func
}

// New registers every native this implementation provides against tbl and
// returns the dispatch table. Call this once, before any script referencing
// a native is parsed, so bare positional arguments (e.g. `vector/append v
// x`) resolve against the positional-parameter names registered here.
func New(tbl *words.Table) *Table {
	t := &Table{words: tbl, lbl: newLabels(tbl), fns: make(map[words.Iname]Func)}
	t.registerCore()
	t.registerGeometry()
	t.registerRepeat()
	t.registerFocal()
	t.registerPath()
	t.registerUVMapper()
	return t
}

// register interns name (recording its positional-parameter labels, if
// any) and binds it to fn.
func (t *Table) register(name string, params []string, fn Func) {
	iname := t.words.RegisterNativeParams(name, params)
	t.fns[iname] = fn
}

// Call implements vm.NativeSet.
func (t *Table) Call(name words.Iname, m *vm.VM, args vm.Args) (value.Value, error) {
	fn, ok := t.fns[name]
	if !ok {
		s, _ := t.words.Reverse(name)
		return value.Value{}, errors.Newf(errors.Runtime, "no native function bound for %q", s)
	}
	return fn(m, args)
}
