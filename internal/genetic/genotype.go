package genetic

import (
	"github.com/google/uuid"

	"seni/internal/errors"
	"seni/internal/value"
	"seni/internal/vm"
)

// Genotype is an ordered list of genes matching a trait list one-to-one,
// plus the current_gene cursor the unparser and compile-with-genotype
// both read through in lock-step with the AST.
type Genotype struct {
	ID     uuid.UUID
	Genes  []value.Value
	cursor int
}

// Next implements compiler.GeneSource: it hands back genes in order and
// advances the cursor, so a single Genotype can drive exactly one
// compile-with-genotype pass before Reset is needed for another.
func (g *Genotype) Next() (value.Value, bool) {
	if g.cursor >= len(g.Genes) {
		return value.Value{}, false
	}
	v := g.Genes[g.cursor]
	g.cursor++
	return v, true
}

// Reset rewinds the cursor to the start, for a second consumer (e.g. the
// unparser running after compile-with-genotype already walked it once).
func (g *Genotype) Reset() { g.cursor = 0 }

// AtEnd reports whether every gene has been consumed. Unparse signals an
// error if this is false once its walk completes; compile-with-genotype
// does not check it.
func (g *Genotype) AtEnd() bool { return g.cursor == len(g.Genes) }

// Clone deep-copies a genotype's gene list under a fresh ID, used as the
// starting point for crossover/mutation so parents are never mutated.
func (g *Genotype) Clone() *Genotype {
	genes := make([]value.Value, len(g.Genes))
	copy(genes, g.Genes)
	return &Genotype{ID: uuid.New(), Genes: genes}
}

// BuildGenotype materialises one gene per trait in order, grounded on
// genotype_build: the seed is set once per genotype, then threaded through
// every gene_build call so successive genes draw from an advancing PRNG
// stream rather than all repeating the same seed — each gene still runs on
// its own fresh VM (per spec), isolating heap/stack while preserving that
// single continuous seed sequence across the whole genotype.
func BuildGenotype(traits []*Trait, natives vm.NativeSet, seed uint64) (*Genotype, error) {
	state := seed
	genes := make([]value.Value, len(traits))
	for i, tr := range traits {
		geneSeed := pcg32Step(&state)
		g, err := MaterializeGene(tr, natives, geneSeed)
		if err != nil {
			return nil, errors.Newf(errors.Runtime, "building gene %d: %v", i, err)
		}
		genes[i] = g
	}
	return &Genotype{ID: uuid.New(), Genes: genes}, nil
}
