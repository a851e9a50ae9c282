package genetic

import (
	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/vm"
)

// pcg32Step is seni_prng.c's core step function, inlined here (as it is in
// internal/vm and internal/natives) so the evolutionary layer can derive a
// deterministic chain of per-gene seeds without importing either package's
// private PRNG type.
func pcg32Step(state *uint64) uint64 {
	old := *state
	*state = old*6364136223846793005 + 1
	return old
}

// pcg32F32 draws one [0,1] float from the same stream, used to decide
// whether a gene mutates.
func pcg32F32(state *uint64) float64 {
	old := pcg32Step(state)
	xorshifted := uint32(((old >> 18) ^ old) >> 27)
	rot := uint32(old >> 59)
	out := (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
	return float64(out) / float64(4294967295)
}

// MaterializeGene runs trait's program on a fresh VM seeded with seed and
// returns the single value left on the stack as a gene, grounded on
// gene_build: "run the program, read the single value on top of the
// stack". Only self-contained Value kinds (FLOAT/INT/BOOL/NAME/Pair2D/
// COLOUR) survive the VM whose heap produced them; a trait that leaves a
// heap-backed general VECTOR is rejected; the compiler's gene-splicing
// path only ever needs a single LOAD CONST, so genes are restricted to the
// same shapes a constant pool can hold, matching the source's explicit
// carve-out for single-trait 2-element VECTOR alterables over general
// n-element vectors.
func MaterializeGene(trait *Trait, natives vm.NativeSet, seed uint64) (value.Value, error) {
	m := vm.New(trait.Program, natives, vm.WithSeed(seed))
	v, err := m.Run()
	if err != nil {
		return value.Value{}, err
	}
	if v.IsVector() {
		return value.Value{}, errors.New(errors.Runtime, "trait program produced a heap vector; only scalar, 2D-pair and colour genes are supported")
	}
	return v, nil
}
