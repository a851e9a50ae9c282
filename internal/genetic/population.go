package genetic

import (
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/vm"
)

// Crossover performs a single-point swap over the gene sequence of two
// parents at index (0 < index < len(genes)), grounded on seni_ga.c's
// random_crossover stub (left unimplemented in the source; the split-swap
// shape below follows spec.md's "single-point swap" description).
func Crossover(a, b *Genotype, index int) (*Genotype, *Genotype) {
	if index <= 0 || index >= len(a.Genes) || len(a.Genes) != len(b.Genes) {
		return a.Clone(), b.Clone()
	}
	childA := make([]value.Value, 0, len(a.Genes))
	childA = append(childA, a.Genes[:index]...)
	childA = append(childA, b.Genes[index:]...)

	childB := make([]value.Value, 0, len(b.Genes))
	childB = append(childB, b.Genes[:index]...)
	childB = append(childB, a.Genes[index:]...)

	return &Genotype{ID: uuid.New(), Genes: childA}, &Genotype{ID: uuid.New(), Genes: childB}
}

// Mutate walks g's genes in order and, per gene, with probability rate
// re-runs that gene's trait program from a fresh PRNG seed — grounded on
// spec.md's "mutation, per gene, re-runs the trait's program from a fresh
// PRNG seed at a probability". state is advanced in place so repeated
// Mutate calls across a population draw from one continuous stream.
func Mutate(g *Genotype, traits []*Trait, natives vm.NativeSet, rate float64, state *uint64) error {
	if len(g.Genes) != len(traits) {
		return errors.New(errors.Runtime, "mutate: genotype does not match trait-list schema")
	}
	for i, tr := range traits {
		if pcg32F32(state) >= rate {
			continue
		}
		seed := pcg32Step(state)
		gene, err := MaterializeGene(tr, natives, seed)
		if err != nil {
			return errors.Newf(errors.Runtime, "mutating gene %d: %v", i, err)
		}
		g.Genes[i] = gene
	}
	return nil
}

// childPlan precomputes every random decision a child needs — which two
// parents, the crossover point, and the mutation PRNG sub-stream — on the
// caller's goroutine, sequentially, so fanning the actual (expensive) VM
// work out across goroutines afterwards never perturbs the result: two
// NextGeneration calls with the same parents/seed/rate always produce the
// same population regardless of how the errgroup happens to schedule it.
type childPlan struct {
	parentA, parentB int
	crossoverPoint   int
	mutationSeed     uint64
}

// NextGeneration builds a new population of size target from parents,
// grounded on spec.md's "Population building takes a parent set, a target
// size, a mutation rate, and a master PRNG seed": each parent of a pair is
// picked by a PCG32 draw modulo the parent count (deterministic given
// seed; both picks may be the same parent), bred
// by single-point crossover, then each child is independently mutated.
// Children are built concurrently via errgroup, since each only touches
// its own fresh VMs; a failure in any child aborts the whole generation.
func NextGeneration(parents []*Genotype, traits []*Trait, natives vm.NativeSet, target int, mutationRate float64, seed uint64) ([]*Genotype, error) {
	if len(parents) < 2 {
		return nil, errors.New(errors.Runtime, "next-generation requires at least two parents")
	}
	if len(traits) == 0 {
		return nil, errors.New(errors.Runtime, "next-generation requires a non-empty trait list")
	}

	state := seed
	plans := make([]childPlan, 0, target)
	for i := 0; i < target; i++ {
		a := int(pcg32Step(&state) % uint64(len(parents)))
		b := int(pcg32Step(&state) % uint64(len(parents)))
		if b == a {
			b = (b + 1) % len(parents)
		}
		point := 1
		if len(traits) > 1 {
			point = 1 + int(pcg32Step(&state)%uint64(len(traits)-1))
		}
		plans = append(plans, childPlan{
			parentA:        a,
			parentB:        b,
			crossoverPoint: point,
			mutationSeed:   pcg32Step(&state),
		})
	}

	children := make([]*Genotype, target)
	var g errgroup.Group
	for i, plan := range plans {
		i, plan := i, plan
		g.Go(func() error {
			childA, _ := Crossover(parents[plan.parentA], parents[plan.parentB], plan.crossoverPoint)
			mState := plan.mutationSeed
			if err := Mutate(childA, traits, natives, mutationRate, &mState); err != nil {
				return err
			}
			children[i] = childA
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return children, nil
}
