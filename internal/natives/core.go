package natives

import (
	"math"

	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/vm"
)

// registerCore binds the bootstrap natives seeded in words/builtin.go:
// vector/append, nth, math/distance, prng/build, prng/values.
func (t *Table) registerCore() {
	t.register("vector/append", []string{"vec1", "val"}, t.vectorAppend)
	t.register("nth", []string{"from", "n"}, t.nth)
	t.register("math/distance", []string{"vec1", "vec2"}, t.mathDistance)
	t.register("prng/build", []string{"min", "max", "seed"}, t.prngBuild)
	t.register("prng/values", []string{"num", "from"}, t.prngValues)
}

func (t *Table) vectorAppend(m *vm.VM, args vm.Args) (value.Value, error) {
	vec, ok := args.Label(t.lbl.vec1)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "vector/append requires vec1")
	}
	val, ok := args.Label(t.lbl.val)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "vector/append requires val")
	}
	return m.Heap().Append(vec, val)
}

// nth accepts either a 2D pair (n must be 0 or 1) or a VECTOR, matching
// bind_nth's dual handling.
func (t *Table) nth(m *vm.VM, args vm.Args) (value.Value, error) {
	from, ok := args.Label(t.lbl.from)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "nth requires from")
	}
	n := intArg(args, t.lbl.n, 0)

	if from.IsPair() {
		if n < 0 || n > 1 {
			return value.Value{}, errors.Newf(errors.Runtime, "nth: index %d out of range for a 2D pair", n)
		}
		return value.Float(from.F[n]), nil
	}
	elems := m.Heap().Elements(from)
	if n < 0 || n >= len(elems) {
		return value.Value{}, errors.Newf(errors.Runtime, "nth: index %d out of range for a vector of length %d", n, len(elems))
	}
	return elems[n], nil
}

func (t *Table) mathDistance(m *vm.VM, args vm.Args) (value.Value, error) {
	x1, y1 := vec2Arg(m, args, t.lbl.vec1, 0, 0)
	x2, y2 := vec2Arg(m, args, t.lbl.vec2, 0, 0)
	dx, dy := x2-x1, y2-y1
	return value.Float(math.Sqrt(dx*dx + dy*dy)), nil
}

// prngBuild returns the RNG handle as a VECTOR [state, inc, min, max],
// grounded on bind_prng_build: seed/1 is advanced once before being handed
// back (the source's "this always returns 0 but further calls will be
// valid" comment), so the first prng/values draw never reuses the seed
// verbatim. A caller that omits seed: draws one from the VM's own PRNG
// stream instead of a fixed constant, mirroring genotype_build seeding
// vm->prng_state once per genotype so each trait's generator expression
// varies across a genotype's genes.
func (t *Table) prngBuild(m *vm.VM, args vm.Args) (value.Value, error) {
	var seed uint64
	if v, ok := args.Label(t.lbl.seed); ok {
		seed = uint64(v.AsFloat())
	} else {
		seed = m.NextRNGSeed()
	}
	min := floatArg(args, t.lbl.min, 0)
	max := floatArg(args, t.lbl.max, 1)

	rng := newPCG32(seed)
	rng.next()

	return m.Heap().BuildVector([]value.Value{
		value.Long(int64(rng.state)),
		value.Long(int64(rng.inc)),
		value.Float(min),
		value.Float(max),
	})
}

// prngValues draws num values in [min,max] from the handle built by
// prng/build, writing the advanced state back into the same handle vector
// in place (bind_prng_take's in-place state/inc update).
func (t *Table) prngValues(m *vm.VM, args vm.Args) (value.Value, error) {
	from, ok := args.Label(t.lbl.from)
	if !ok {
		return value.Value{}, errors.New(errors.Runtime, "prng/values requires from")
	}
	num := intArg(args, t.lbl.num, 1)

	elems := m.Heap().Elements(from)
	if len(elems) != 4 {
		return value.Value{}, errors.New(errors.Runtime, "prng/values: from is not a prng/build handle")
	}
	rng := &pcg32{state: uint64(elems[0].Long), inc: uint64(elems[1].Long)}
	min, max := elems[2].AsFloat(), elems[3].AsFloat()

	out := make([]value.Value, 0, num)
	for i := 0; i < num; i++ {
		out = append(out, value.Float(rng.f32Range(min, max)))
	}

	if err := m.Heap().SetAt(from, 0, value.Long(int64(rng.state))); err != nil {
		return value.Value{}, err
	}
	if err := m.Heap().SetAt(from, 1, value.Long(int64(rng.inc))); err != nil {
		return value.Value{}, err
	}

	return m.Heap().BuildVector(out)
}
