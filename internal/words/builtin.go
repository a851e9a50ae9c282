package words

// specialForms are the reserved top-level/expression forms.
var specialForms = []string{
	"define", "fn", "if", "loop", "fence", "on-matrix-stack",
	"address-of", "fn-call", "quote", "setq",
	"+", "-", "*", "/", "=", "<", ">", "and", "or", "not", "sqrt", "mod",
}

// argLabels are the labels accepted by loop/fence headers and by natives.
var argLabels = []string{
	"from", "to", "upto", "increment", "steps", "quantity",
	"seed", "min", "max", "num",
	"vec1", "vec2", "n",
	"label", "val",
	"vector", "angle", "scalar",
	"fn", "draw", "copies",
	"t-start", "t-end", "position", "radius", "coords",
	"distance", "mapping", "centre", "t", "clamping", "brush", "width",
}

// enumValues are reserved value names for easing/colour-format/preset args.
var enumValues = []string{
	"linear", "quick", "slow-in", "slow-in-out",
	"RGB", "HSL", "LAB", "HSV",
	"brush/flat", "brush/a", "brush/b", "brush/c", "brush/d", "brush/e", "brush/f", "brush/g",
}

// globals are the predefined globals set by the compiler preamble.
var globals = []string{
	"canvas/width", "canvas/height",
	"white", "black", "red", "green", "blue", "yellow", "magenta", "cyan",
}

// nativeParams is the seed list of native function names and their
// positional-argument labels; the natives package registers the
// authoritative, larger native set at startup via RegisterNativeParams (a
// no-op re-registration for names already seeded here), this is only the
// minimal bootstrap set referenced by the compiler itself (e.g.
// vector/append used by destructuring desugar tests) so that compiler
// tests don't need to import internal/natives to build a working table.
type nativeSeed struct {
	name   string
	params []string
}

var nativeParams = []nativeSeed{
	{"vector/append", []string{"vec1", "val"}},
	{"nth", []string{"from", "n"}},
	{"math/distance", []string{"vec1", "vec2"}},
	{"prng/build", []string{"min", "max", "seed"}},
	{"prng/values", []string{"num", "from"}},
}

// NewStandard returns a Table with every keyword, argument label, enum
// value, predefined global and the bootstrap native set registered. Native
// packages should call RegisterNative for every additional builtin they
// expose; doing so after NewStandard is safe since the ranges never shrink.
func NewStandard() *Table {
	t := New()
	for _, s := range specialForms {
		t.RegisterKeyword(s)
	}
	for _, s := range argLabels {
		t.RegisterKeyword(s)
	}
	for _, s := range enumValues {
		t.RegisterKeyword(s)
	}
	for _, s := range globals {
		t.RegisterKeyword(s)
	}
	for _, s := range nativeParams {
		t.RegisterNativeParams(s.name, s.params)
	}
	return t
}
