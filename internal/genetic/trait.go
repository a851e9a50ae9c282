// Package genetic implements Seni's trait/genotype evolutionary layer:
// alterable `{…}` sub-expressions are extracted from a parsed script as
// traits, each trait's generator program is run to materialise a gene, and
// populations of gene-vectors (genotypes) drive alternate renderings of the
// same source — grounded on seni_ga.c's trait_set/genotype machinery.
package genetic

import (
	"seni/internal/bytecode"
	"seni/internal/compiler"
	"seni/internal/parser"
	"seni/internal/words"
)

// Trait is the compiled generator program behind one alterable node, plus
// the node itself (for DecimalPlaces/default-value access by the
// unparser). The list of traits extracted from a script defines a
// genotype's schema: ordered, one gene per alterable, in pre-order.
type Trait struct {
	Node    *parser.Node
	Program *bytecode.Program
}

// ExtractTraits walks nodes in pre-order, the way ga_traverse does, and
// compiles a trait for every alterable node found. A LIST node is recursed
// into regardless of its own alterable flag (an alterable list's call can
// still contain further alterable sub-expressions); a VECTOR node is never
// recursed into, since the bracket literal's elements are never separately
// markable — only the whole `{[x y] (…)}` wrapper is, producing one gene.
func ExtractTraits(nodes []*parser.Node, table *words.Table) ([]*Trait, error) {
	var traits []*Trait
	for _, n := range nodes {
		if err := walkForTraits(n, table, &traits); err != nil {
			return nil, err
		}
	}
	return traits, nil
}

func walkForTraits(n *parser.Node, table *words.Table, traits *[]*Trait) error {
	if n.Alterable {
		prog, err := compiler.CompileTraitProgram(n.ParameterAST, table)
		if err != nil {
			return err
		}
		*traits = append(*traits, &Trait{Node: n, Program: prog})
	}
	if n.Kind == parser.KindList {
		for _, c := range n.Children {
			if err := walkForTraits(c, table, traits); err != nil {
				return err
			}
		}
	}
	return nil
}
