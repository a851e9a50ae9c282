package natives

import (
	"math"

	"seni/internal/matrixstack"
	"seni/internal/value"
	"seni/internal/vm"
)

// registerGeometry binds the matrix-stack transform natives, grounded on
// bind_translate/bind_rotate/bind_scale: each composes onto the current
// top of the matrix stack rather than pushing/popping a frame, so the
// effect persists for the remainder of the enclosing on-matrix-stack scope.
func (t *Table) registerGeometry() {
	t.register("translate", []string{"vector"}, t.translate)
	t.register("rotate", []string{"angle"}, t.rotate)
	t.register("scale", []string{"vector"}, t.scale)
}

func (t *Table) translate(m *vm.VM, args vm.Args) (value.Value, error) {
	x, y := vec2Arg(m, args, t.lbl.vector, 0, 0)
	m.Matrix().ComposeTop(matrixstack.Translate(x, y))
	return value.Bool(true), nil
}

func (t *Table) rotate(m *vm.VM, args vm.Args) (value.Value, error) {
	degrees := floatArg(args, t.lbl.angle, 0)
	m.Matrix().ComposeTop(matrixstack.Rotate(degrees * math.Pi / 180))
	return value.Bool(true), nil
}

func (t *Table) scale(m *vm.VM, args vm.Args) (value.Value, error) {
	sx, sy := vec2Arg(m, args, t.lbl.vector, 1, 1)
	scalar := floatArg(args, t.lbl.scalar, 1)
	if scalar != 1 {
		sx, sy = scalar, scalar
	}
	m.Matrix().ComposeTop(matrixstack.Scale(sx, sy))
	return value.Bool(true), nil
}
