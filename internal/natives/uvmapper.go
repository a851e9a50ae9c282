package natives

import (
	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/vm"
	"seni/internal/words"
)

// textureDim is the fixed brush-texture resolution allocate_uv_mapping
// divides every pixel rectangle by (make_uv).
const textureDim = 1024.0

// uvRect is one brush sub-mapping: four corner UV pairs (max/min,min/max
// corners, matching allocate_uv_mapping's map[0..3] ordering) plus the
// stroke width-scale factor.
type uvRect struct {
	minX, minY, maxX, maxY int
	widthScale             float64
}

func (r uvRect) uvs() [8]float64 {
	u := func(px float64) float64 { return px / textureDim }
	return [8]float64{
		u(float64(r.maxX)), u(float64(r.minY)),
		u(float64(r.maxX)), u(float64(r.maxY)),
		u(float64(r.minX)), u(float64(r.minY)),
		u(float64(r.minX)), u(float64(r.maxY)),
	}
}

// registerUVMapper binds uv-mapper/value, grounded on seni_uv_mapper.c's
// get_uv_mapping: given a brush name and a sub-type index it returns the
// brush's four normalised UV corners followed by its stroke width-scale,
// as a 9-element VECTOR. The table is keyed by each brush's already
// registered enum iname rather than by its string name, so no
// iname-to-string reverse lookup is needed at native-call time.
func (t *Table) registerUVMapper() {
	t.register("uv-mapper/value", []string{"brush", "n"}, t.uvMapperValue)
}

// brushTable returns init_uv_mapper's fixed pixel-rectangle data, keyed by
// brush enum iname; built lazily since labels aren't resolved until New.
func (t *Table) brushTable() map[words.Iname][]uvRect {
	l := t.lbl
	return map[words.Iname][]uvRect{
		l.brushFlat: {{1, 1, 2, 2, 1.0}},
		l.brushA:    {{0, 781, 976, 1023, 1.2}},
		l.brushB: {
			{11, 644, 490, 782, 1.4},
			{521, 621, 1023, 783, 1.1},
			{340, 419, 666, 508, 1.2},
			{326, 519, 659, 608, 1.2},
			{680, 419, 1020, 507, 1.1},
			{677, 519, 1003, 607, 1.1},
		},
		l.brushC: {
			{0, 7, 324, 43, 1.2},
			{0, 45, 319, 114, 1.3},
			{0, 118, 328, 180, 1.1},
			{0, 186, 319, 267, 1.2},
			{0, 271, 315, 334, 1.4},
			{0, 339, 330, 394, 1.1},
			{0, 398, 331, 473, 1.2},
			{0, 478, 321, 548, 1.1},
			{0, 556, 326, 618, 1.1},
		},
		l.brushD: {{333, 165, 734, 336, 1.3}},
		l.brushE: {{737, 183, 1018, 397, 1.3}},
		l.brushF: {{717, 2, 1023, 163, 1.1}},
		l.brushG: {
			{329, 0, 652, 64, 1.2},
			{345, 75, 686, 140, 1.0},
		},
	}
}

func (t *Table) uvMapperValue(m *vm.VM, args vm.Args) (value.Value, error) {
	brush, ok := args.Label(t.lbl.brush)
	if !ok || brush.Kind != value.KindName {
		return value.Value{}, errors.New(errors.Runtime, "uv-mapper/value requires a brush: name")
	}
	rects, ok := t.brushTable()[brush.Iname]
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "uv-mapper/value: unrecognised brush")
	}
	subType := intArg(args, t.lbl.n, 0)
	if subType < 0 || subType >= len(rects) {
		return value.Value{}, errors.Newf(errors.Runtime, "uv-mapper/value: sub-type %d out of range", subType)
	}
	r := rects[subType]
	uv := r.uvs()
	out := make([]value.Value, 0, 9)
	for _, f := range uv {
		out = append(out, value.Float(f))
	}
	out = append(out, value.Float(r.widthScale))
	return m.Heap().BuildVector(out)
}
