package natives

import (
	"math"

	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/vm"
)

// focalKind tags which of the three descriptors a focal/build-* native
// produced, so focal/value knows which distance formula to apply.
type focalKind float64

const (
	focalKindPoint focalKind = 0
	focalKindHLine focalKind = 1
	focalKindVLine focalKind = 2
)

const tinyFloat = 0.000001

// registerFocal binds the focal/build-{point,hline,vline} and focal/value
// natives, grounded on seni_focal.c's focal_point/focal_hline/focal_vline:
// a focal/build-* call bundles its centre, distance and easing mapping
// into a descriptor VECTOR, and focal/value re-reads that descriptor
// against a query position to produce a 0..1 falloff.
func (t *Table) registerFocal() {
	t.register("focal/build-point", []string{"position", "distance"}, t.focalBuildPoint)
	t.register("focal/build-hline", []string{"position", "distance"}, t.focalBuildHLine)
	t.register("focal/build-vline", []string{"position", "distance"}, t.focalBuildVLine)
	t.register("focal/value", []string{"from", "position"}, t.focalValue)
}

func (t *Table) focalBuildPoint(m *vm.VM, args vm.Args) (value.Value, error) {
	cx, cy := vec2Arg(m, args, t.lbl.position, 0, 0)
	distance := floatArg(args, t.lbl.distance, 1)
	mapping := t.mappingArg(args, t.lbl.mapping)
	return m.Heap().BuildVector([]value.Value{
		value.Float(float64(focalKindPoint)),
		value.Float(cx), value.Float(cy),
		value.Float(distance), value.Float(float64(mapping)),
	})
}

func (t *Table) focalBuildHLine(m *vm.VM, args vm.Args) (value.Value, error) {
	_, cy := vec2Arg(m, args, t.lbl.position, 0, 0)
	distance := floatArg(args, t.lbl.distance, 1)
	mapping := t.mappingArg(args, t.lbl.mapping)
	return m.Heap().BuildVector([]value.Value{
		value.Float(float64(focalKindHLine)),
		value.Float(cy),
		value.Float(distance), value.Float(float64(mapping)),
	})
}

func (t *Table) focalBuildVLine(m *vm.VM, args vm.Args) (value.Value, error) {
	cx, _ := vec2Arg(m, args, t.lbl.position, 0, 0)
	distance := floatArg(args, t.lbl.distance, 1)
	mapping := t.mappingArg(args, t.lbl.mapping)
	return m.Heap().BuildVector([]value.Value{
		value.Float(float64(focalKindVLine)),
		value.Float(cx),
		value.Float(distance), value.Float(float64(mapping)),
	})
}

func (t *Table) focalValue(m *vm.VM, args vm.Args) (value.Value, error) {
	from, ok := args.Label(t.lbl.from)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "focal/value requires from")
	}
	x, y := vec2Arg(m, args, t.lbl.position, 0, 0)

	elems := m.Heap().Elements(from)
	if len(elems) == 0 {
		return value.Value{}, errors.New(errors.Runtime, "focal/value: from is not a focal/build-* descriptor")
	}
	kind := focalKind(elems[0].AsFloat())

	var d float64
	var distance float64
	var mapping easing
	switch kind {
	case focalKindPoint:
		if len(elems) != 5 {
			return value.Value{}, errors.New(errors.Runtime, "focal/value: malformed focal-point descriptor")
		}
		cx, cy := elems[1].AsFloat(), elems[2].AsFloat()
		dx, dy := x-cx, y-cy
		d = math.Sqrt(dx*dx + dy*dy)
		distance = elems[3].AsFloat()
		mapping = easing(elems[4].AsFloat())
	case focalKindHLine:
		if len(elems) != 4 {
			return value.Value{}, errors.New(errors.Runtime, "focal/value: malformed focal-hline descriptor")
		}
		d = math.Abs(elems[1].AsFloat() - y)
		distance = elems[2].AsFloat()
		mapping = easing(elems[3].AsFloat())
	case focalKindVLine:
		if len(elems) != 4 {
			return value.Value{}, errors.New(errors.Runtime, "focal/value: malformed focal-vline descriptor")
		}
		d = math.Abs(elems[1].AsFloat() - x)
		distance = elems[2].AsFloat()
		mapping = easing(elems[3].AsFloat())
	default:
		return value.Value{}, errors.New(errors.Runtime, "focal/value: unrecognised descriptor kind")
	}

	if d < tinyFloat {
		return value.Float(1), nil
	}
	return value.Float(seniInterp(d, 0, distance, 1, 0, mapping, true)), nil
}
