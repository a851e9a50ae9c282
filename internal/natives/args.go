package natives

import (
	"seni/internal/value"
	"seni/internal/vm"
	"seni/internal/words"
)

// labels caches every keyword iname a native reads by label, resolved once
// at registration time against the shared word table — this is the typed
// reader spec.md's design notes ask for in place of the source's
// READ_STACK_ARG_* macros.
type labels struct {
	from, to, upto, increment, steps, quantity words.Iname
	seed, min, max, num                        words.Iname
	vec1, vec2, n                               words.Iname
	label, val                                 words.Iname
	vector, angle, scalar                      words.Iname
	fn, draw, copies                           words.Iname
	tStart, tEnd, position, radius, coords     words.Iname
	distance, mapping, centre                  words.Iname
	t, clamping, brush, width                  words.Iname

	mapLinear, mapQuick, mapSlowIn, mapSlowInOut words.Iname

	brushFlat, brushA, brushB, brushC, brushD, brushE, brushF, brushG words.Iname
}

func newLabels(tbl *words.Table) labels {
	kw := func(s string) words.Iname {
		iname, _ := tbl.KeywordIname(s)
		return iname
	}
	return labels{
		from: kw("from"), to: kw("to"), upto: kw("upto"), increment: kw("increment"),
		steps: kw("steps"), quantity: kw("quantity"),
		seed: kw("seed"), min: kw("min"), max: kw("max"), num: kw("num"),
		vec1: kw("vec1"), vec2: kw("vec2"), n: kw("n"),
		label: kw("label"), val: kw("val"),
		vector: kw("vector"), angle: kw("angle"), scalar: kw("scalar"),
		fn: kw("fn"), draw: kw("draw"), copies: kw("copies"),
		tStart: kw("t-start"), tEnd: kw("t-end"), position: kw("position"),
		radius: kw("radius"), coords: kw("coords"),
		distance: kw("distance"), mapping: kw("mapping"), centre: kw("centre"),
		t: kw("t"), clamping: kw("clamping"), brush: kw("brush"), width: kw("width"),
		mapLinear: kw("linear"), mapQuick: kw("quick"),
		mapSlowIn: kw("slow-in"), mapSlowInOut: kw("slow-in-out"),
		brushFlat: kw("brush/flat"), brushA: kw("brush/a"), brushB: kw("brush/b"),
		brushC: kw("brush/c"), brushD: kw("brush/d"), brushE: kw("brush/e"),
		brushF: kw("brush/f"), brushG: kw("brush/g"),
	}
}

// boolArg reads a boolean-ish argument, defaulting to def when absent.
func boolArg(args vm.Args, label words.Iname, def bool) bool {
	if v, ok := args.Label(label); ok {
		return v.AsFloat() != 0
	}
	return def
}

// easing mirrors seni_interp.c's mapping dispatch.
type easing int

const (
	easingLinear easing = iota
	easingQuick
	easingSlowIn
	easingSlowInOut
)

// mappingArg reads an easing-mode enum argument (linear/quick/slow-in/
// slow-in-out), defaulting to linear when absent or unrecognised.
func (t *Table) mappingArg(args vm.Args, label words.Iname) easing {
	v, ok := args.Label(label)
	if !ok || v.Kind != value.KindName {
		return easingLinear
	}
	switch v.Iname {
	case t.lbl.mapQuick:
		return easingQuick
	case t.lbl.mapSlowIn:
		return easingSlowIn
	case t.lbl.mapSlowInOut:
		return easingSlowInOut
	default:
		return easingLinear
	}
}

func floatArg(args vm.Args, label words.Iname, def float64) float64 {
	if v, ok := args.Label(label); ok {
		return v.AsFloat()
	}
	return def
}

func intArg(args vm.Args, label words.Iname, def int) int {
	if v, ok := args.Label(label); ok {
		return int(v.AsFloat())
	}
	return def
}

// vec2Arg reads a 2D point given either as an unboxed 2D pair or a
// length-2 VECTOR, matching READ_STACK_ARG_VEC2's acceptance of either
// shape.
func vec2Arg(m *vm.VM, args vm.Args, label words.Iname, defX, defY float64) (float64, float64) {
	v, ok := args.Label(label)
	if !ok {
		return defX, defY
	}
	if v.IsPair() {
		return v.F[0], v.F[1]
	}
	elems := m.Heap().Elements(v)
	if len(elems) >= 2 {
		return elems[0].AsFloat(), elems[1].AsFloat()
	}
	return defX, defY
}

func fnRefArg(args vm.Args, label words.Iname) (value.Value, bool) {
	v, ok := args.Label(label)
	if !ok || v.Kind != value.KindFnRef {
		return value.Value{}, false
	}
	return v, true
}
