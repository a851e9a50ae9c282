package natives

import (
	"math"

	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/vm"
	"seni/internal/words"
)

// registerPath binds the path/{linear,circle,spline,bezier} natives,
// grounded on seni_path.c: each walks steps points along a curve and
// invokes the caller's fn once per point, passing n/t/position as
// overrides the way invoke_function writes them straight into the
// callee's ARGUMENT slots.
func (t *Table) registerPath() {
	t.register("path/linear", []string{"fn"}, t.pathLinear)
	t.register("path/circle", []string{"fn"}, t.pathCircle)
	t.register("path/spline", []string{"fn"}, t.pathSpline)
	t.register("path/bezier", []string{"fn"}, t.pathBezier)
}

func (t *Table) invokeStep(m *vm.VM, fn value.Value, step int, tVal, x, y float64) error {
	overrides := map[words.Iname]value.Value{
		t.lbl.n:        value.Float(float64(step)),
		t.lbl.t:        value.Float(tVal),
		t.lbl.position: value.Pair2D(x, y),
	}
	_, err := m.InvokeNoArg(fn, overrides)
	return err
}

func (t *Table) pathLinear(m *vm.VM, args vm.Args) (value.Value, error) {
	fn, ok := fnRefArg(args, t.lbl.fn)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "path/linear requires fn: (address-of ...)")
	}
	steps := intArg(args, t.lbl.steps, 10)
	ax, ay := vec2Arg(m, args, t.lbl.from, 0, 0)
	bx, by := vec2Arg(m, args, t.lbl.to, 0, 0)
	if steps < 2 {
		return value.Value{}, errors.New(errors.Runtime, "path/linear requires steps >= 2")
	}

	xUnit := (bx - ax) / float64(steps-1)
	yUnit := (by - ay) / float64(steps-1)
	for i := 0; i < steps; i++ {
		tVal := float64(i) / float64(steps)
		x := ax + float64(i)*xUnit
		y := ay + float64(i)*yUnit
		if err := t.invokeStep(m, fn, i, tVal, x, y); err != nil {
			return value.Value{}, err
		}
	}
	return value.Bool(true), nil
}

func (t *Table) pathCircle(m *vm.VM, args vm.Args) (value.Value, error) {
	fn, ok := fnRefArg(args, t.lbl.fn)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "path/circle requires fn: (address-of ...)")
	}
	steps := intArg(args, t.lbl.steps, 10)
	tStart := floatArg(args, t.lbl.tStart, 0)
	tEnd := floatArg(args, t.lbl.tEnd, 1)
	px, py := vec2Arg(m, args, t.lbl.position, 0, 0)
	radius := floatArg(args, t.lbl.radius, 1)
	if steps < 1 {
		return value.Value{}, errors.New(errors.Runtime, "path/circle requires steps >= 1")
	}

	const tau = 2 * math.Pi
	unit := (tEnd - tStart) / float64(steps)
	unitAngle := unit * tau
	for i := 0; i < steps; i++ {
		step := float64(i)
		angle := unitAngle*step + tStart*tau
		vx := math.Sin(angle)*radius + px
		vy := math.Cos(angle)*radius + py
		tVal := tStart + unit*step
		if err := t.invokeStep(m, fn, i, tVal, vx, vy); err != nil {
			return value.Value{}, err
		}
	}
	return value.Bool(true), nil
}

// curveCoords reads the 3- or 4-point control polygon (for path/spline and
// path/bezier) out
// of the coords: argument, flattened [x0,y0,x1,y1,...] the way coords
// arrives in seni_path.c.
func curveCoords(m *vm.VM, args vm.Args, label words.Iname, numPoints int) ([]float64, error) {
	v, ok := args.Label(label)
	if !ok {
		return nil, errors.New(errors.Runtime, "missing coords argument")
	}
	elems := m.Heap().Elements(v)
	if len(elems) != numPoints*2 {
		return nil, errors.Newf(errors.Runtime, "coords requires %d points, got %d values", numPoints, len(elems))
	}
	out := make([]float64, len(elems))
	for i, e := range elems {
		out[i] = e.AsFloat()
	}
	return out, nil
}

func quadraticPoint(a, b, c, tVal float64) float64 {
	r := ((b - a) - 0.5*(c-a)) / (0.5 * (0.5 - 1))
	s := c - a - r
	return r*tVal*tVal + s*tVal + a
}

func bezierPoint(a, b, c, d, tVal float64) float64 {
	t1 := 1 - tVal
	return a*t1*t1*t1 + 3*b*tVal*t1*t1 + 3*c*tVal*tVal*t1 + d*tVal*tVal*tVal
}

func (t *Table) pathSpline(m *vm.VM, args vm.Args) (value.Value, error) {
	fn, ok := fnRefArg(args, t.lbl.fn)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "path/spline requires fn: (address-of ...)")
	}
	steps := intArg(args, t.lbl.steps, 10)
	tStart := floatArg(args, t.lbl.tStart, 0)
	tEnd := floatArg(args, t.lbl.tEnd, 1)
	coords, err := curveCoords(m, args, t.lbl.coords, 3)
	if err != nil {
		return value.Value{}, err
	}
	if steps < 2 {
		return value.Value{}, errors.New(errors.Runtime, "path/spline requires steps >= 2")
	}

	unit := (tEnd - tStart) / (float64(steps) - 1)
	for i := 0; i < steps; i++ {
		tVal := tStart + float64(i)*unit
		x := quadraticPoint(coords[0], coords[2], coords[4], tVal)
		y := quadraticPoint(coords[1], coords[3], coords[5], tVal)
		if err := t.invokeStep(m, fn, i, tVal, x, y); err != nil {
			return value.Value{}, err
		}
	}
	return value.Bool(true), nil
}

func (t *Table) pathBezier(m *vm.VM, args vm.Args) (value.Value, error) {
	fn, ok := fnRefArg(args, t.lbl.fn)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "path/bezier requires fn: (address-of ...)")
	}
	steps := intArg(args, t.lbl.steps, 10)
	tStart := floatArg(args, t.lbl.tStart, 0)
	tEnd := floatArg(args, t.lbl.tEnd, 1)
	coords, err := curveCoords(m, args, t.lbl.coords, 4)
	if err != nil {
		return value.Value{}, err
	}
	if steps < 2 {
		return value.Value{}, errors.New(errors.Runtime, "path/bezier requires steps >= 2")
	}

	unit := (tEnd - tStart) / (float64(steps) - 1)
	for i := 0; i < steps; i++ {
		tVal := tStart + float64(i)*unit
		x := bezierPoint(coords[0], coords[2], coords[4], coords[6], tVal)
		y := bezierPoint(coords[1], coords[3], coords[5], coords[7], tVal)
		if err := t.invokeStep(m, fn, i, tVal, x, y); err != nil {
			return value.Value{}, err
		}
	}
	return value.Bool(true), nil
}
