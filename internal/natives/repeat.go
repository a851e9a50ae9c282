package natives

import (
	"math"

	"seni/internal/errors"
	"seni/internal/matrixstack"
	"seni/internal/value"
	"seni/internal/vm"
)

// registerRepeat binds the repeat/symmetry-* natives, grounded on
// seni_repeat.c's flip/repeat_symmetry_{vertical,horizontal,4,8}: each
// invokes the caller's no-argument draw function once per copy, under a
// scoped matrix-stack transform, using VM.InvokeNoArg the way the source
// uses vm_invoke_no_arg_function.
func (t *Table) registerRepeat() {
	t.register("repeat/symmetry-vertical", []string{"fn"}, t.repeatSymmetryVertical)
	t.register("repeat/symmetry-horizontal", []string{"fn"}, t.repeatSymmetryHorizontal)
	t.register("repeat/symmetry-4", []string{"fn"}, t.repeatSymmetry4)
	t.register("repeat/symmetry-8", []string{"fn"}, t.repeatSymmetry8)
}

func (t *Table) drawFn(args vm.Args) (value.Value, error) {
	fn, ok := fnRefArg(args, t.lbl.fn)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "repeat/symmetry-* requires fn: (address-of ...)")
	}
	return fn, nil
}

func flip(m *vm.VM, fn value.Value, sx, sy float64) error {
	if err := m.Matrix().Push(matrixstack.Identity()); err != nil {
		return err
	}
	if _, err := m.InvokeNoArg(fn, nil); err != nil {
		return err
	}
	if err := m.Matrix().Pop(); err != nil {
		return err
	}

	if err := m.Matrix().Push(matrixstack.Identity()); err != nil {
		return err
	}
	m.Matrix().ComposeTop(matrixstack.Scale(sx, sy))
	if _, err := m.InvokeNoArg(fn, nil); err != nil {
		return err
	}
	return m.Matrix().Pop()
}

func symmetry4(m *vm.VM, fn value.Value) error {
	if err := m.Matrix().Push(matrixstack.Identity()); err != nil {
		return err
	}
	if err := flip(m, fn, -1, 1); err != nil {
		return err
	}
	if err := m.Matrix().Pop(); err != nil {
		return err
	}

	if err := m.Matrix().Push(matrixstack.Identity()); err != nil {
		return err
	}
	m.Matrix().ComposeTop(matrixstack.Scale(1, -1))
	if err := flip(m, fn, -1, 1); err != nil {
		return err
	}
	return m.Matrix().Pop()
}

func (t *Table) repeatSymmetryVertical(m *vm.VM, args vm.Args) (value.Value, error) {
	fn, err := t.drawFn(args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(true), flip(m, fn, -1, 1)
}

func (t *Table) repeatSymmetryHorizontal(m *vm.VM, args vm.Args) (value.Value, error) {
	fn, err := t.drawFn(args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(true), flip(m, fn, 1, -1)
}

func (t *Table) repeatSymmetry4(m *vm.VM, args vm.Args) (value.Value, error) {
	fn, err := t.drawFn(args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(true), symmetry4(m, fn)
}

func (t *Table) repeatSymmetry8(m *vm.VM, args vm.Args) (value.Value, error) {
	fn, err := t.drawFn(args)
	if err != nil {
		return value.Value{}, err
	}
	if err := m.Matrix().Push(matrixstack.Identity()); err != nil {
		return value.Value{}, err
	}
	if err := symmetry4(m, fn); err != nil {
		return value.Value{}, err
	}
	if err := m.Matrix().Pop(); err != nil {
		return value.Value{}, err
	}

	if err := m.Matrix().Push(matrixstack.Identity()); err != nil {
		return value.Value{}, err
	}
	m.Matrix().ComposeTop(matrixstack.Rotate(math.Pi / 2))
	if err := symmetry4(m, fn); err != nil {
		return value.Value{}, err
	}
	return value.Bool(true), m.Matrix().Pop()
}
