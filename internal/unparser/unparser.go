// Package unparser walks a parsed AST back into source text. Non-alterable
// nodes are emitted from their preserved Source slice; alterable leaves are
// substituted either with a genotype's gene values (full round-trip) or
// with their own parameter_ast's evaluated default (the simplified,
// brace-stripping variant) — grounded on seni_unparser.c's
// unparse_ast_node.
package unparser

import (
	"fmt"
	"strconv"
	"strings"

	"seni/internal/compiler"
	"seni/internal/errors"
	"seni/internal/genetic"
	"seni/internal/parser"
	"seni/internal/value"
	"seni/internal/vm"
	"seni/internal/words"
)

// GeneSource supplies substituted gene values for ALTERABLE nodes, one per
// call, in the same pre-order the compiler's genotype-driven compile and
// genetic.ExtractTraits both use. Kept as a local interface (rather than
// importing internal/genetic's Genotype type directly) for the same reason
// compiler.GeneSource is: genetic already depends on compiler, and this
// package depends on genetic only for MaterializeGene in the simplified
// path below, not for the full walk.
type GeneSource interface {
	Next() (value.Value, bool)
}

// Unparse walks nodes substituting every alterable leaf with the next gene
// pulled from genes, formatted to the leaf's own precision. At the end
// genes must be exhausted; a schema mismatch (too few or too many genes
// consumed) is a runtime error, matching the source's "genotype and AST
// walked in lock-step" invariant.
func Unparse(nodes []*parser.Node, genes GeneSource, table *words.Table) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		if err := writeNode(&b, n, genes, table); err != nil {
			return "", err
		}
	}
	if atEnder, ok := genes.(interface{ AtEnd() bool }); ok && !atEnder.AtEnd() {
		return "", errors.New(errors.Runtime, "unparse: genotype has unconsumed genes remaining")
	}
	return b.String(), nil
}

func writeNode(b *strings.Builder, n *parser.Node, genes GeneSource, table *words.Table) error {
	if n.Alterable {
		b.WriteByte('{')
		for _, p := range n.ParameterPrefix {
			if err := writeNode(b, p, genes, table); err != nil {
				return err
			}
		}
		gene, ok := genes.Next()
		if !ok {
			return errors.New(errors.Runtime, "unparse: genotype ran out of genes before an alterable leaf")
		}
		formatted, err := formatGene(n, gene, table)
		if err != nil {
			return err
		}
		b.WriteString(formatted)
		for _, p := range n.ParameterAST {
			if err := writeNode(b, p, genes, table); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil
	}

	switch n.Kind {
	case parser.KindList:
		b.WriteByte('(')
		for _, c := range n.Children {
			if err := writeNode(b, c, genes, table); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	case parser.KindVector:
		b.WriteByte('[')
		for _, c := range n.Children {
			if err := writeNode(b, c, genes, table); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		b.WriteString(n.Source)
	}
	return nil
}

// formatGene renders a gene value to match node's original shape: a
// scalar leaf formatted to its own decimal precision, a NAME leaf resolved
// back through the word table, a 2D/VECTOR leaf formatted element-wise,
// and a COLOUR leaf formatted as a constructor call tagged with its
// colour-space format.
func formatGene(n *parser.Node, g value.Value, table *words.Table) (string, error) {
	switch g.Kind {
	case value.KindFloat, value.KindInt:
		return formatFloat(g.AsFloat(), n.DecimalPlaces()), nil
	case value.KindBool:
		if g.AsBool() {
			return "true", nil
		}
		return "false", nil
	case value.KindName:
		s, ok := table.Reverse(g.Iname)
		if !ok {
			return "", errors.Newf(errors.Runtime, "unparse: gene NAME iname %d not found in word table", g.Iname)
		}
		return s, nil
	case value.KindVector:
		if !g.Pair {
			return "", errors.New(errors.Runtime, "unparse: gene is a heap-backed VECTOR; only scalar, 2D-pair and colour genes are supported")
		}
		xDec, yDec := componentDecimals(n)
		return "[" + formatFloat(g.F[0], xDec) + " " + formatFloat(g.F[1], yDec) + "]", nil
	case value.KindColour:
		return formatColour(g), nil
	default:
		return "", errors.Newf(errors.Runtime, "unparse: cannot format gene kind %s", g.Kind)
	}
}

// componentDecimals reads the decimal precision of a 2D alterable node's
// two VECTOR-literal children, falling back to the node's own (usually
// zero) precision when the shape doesn't match the common `[x y]` case.
func componentDecimals(n *parser.Node) (int, int) {
	children := n.NonTrivia()
	if len(children) == 2 {
		return children[0].DecimalPlaces(), children[1].DecimalPlaces()
	}
	return n.DecimalPlaces(), n.DecimalPlaces()
}

func formatFloat(f float64, decimals int) string {
	if decimals >= 0 && decimals <= 9 {
		return fmt.Sprintf("%.*f", decimals, f)
	}
	return fmt.Sprintf("%f", f)
}

// colourCtor names the constructor matching a colour format tag. No
// colour-producing native is wired in this build (the colour-space
// conversion library is an explicit out-of-scope collaborator), so this
// path only exists to round-trip a COLOUR gene value if one is ever
// produced by a future native — it follows the naming convention of the
// reserved RGB/HSL/LAB/HSV enum values from the word table rather than a
// concrete native this repository currently registers.
func colourCtor(f value.ColourFormat) string {
	switch f {
	case value.HSL:
		return "HSL"
	case value.LAB:
		return "LAB"
	case value.HSV:
		return "HSV"
	default:
		return "RGB"
	}
}

func formatColour(g value.Value) string {
	tag := colourCtor(g.Format)
	parts := make([]string, 4)
	for i, f := range g.F {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "(colour " + tag + " " + strings.Join(parts, " ") + ")"
}

// Simplify emits nodes without brace syntax: every alterable leaf is
// replaced by its own parameter_ast evaluated in-band (its default value)
// rather than by a supplied genotype, used to strip genotype markup from a
// script. Each alterable's parameter_ast is compiled and run in isolation,
// the same way genetic.MaterializeGene materialises a gene for population
// building — a script's alterable defaults and its genotype's genes are
// computed by running the identical generator program.
func Simplify(nodes []*parser.Node, table *words.Table, natives vm.NativeSet) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		if err := writeSimplified(&b, n, table, natives); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func writeSimplified(b *strings.Builder, n *parser.Node, table *words.Table, natives vm.NativeSet) error {
	if n.Alterable {
		prog, err := compiler.CompileTraitProgram(n.ParameterAST, table)
		if err != nil {
			return err
		}
		def, err := genetic.MaterializeGene(&genetic.Trait{Node: n, Program: prog}, natives, 0)
		if err != nil {
			return err
		}
		formatted, err := formatGene(n, def, table)
		if err != nil {
			return err
		}
		b.WriteString(formatted)
		return nil
	}

	switch n.Kind {
	case parser.KindList:
		b.WriteByte('(')
		for _, c := range n.Children {
			if err := writeSimplified(b, c, table, natives); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	case parser.KindVector:
		b.WriteByte('[')
		for _, c := range n.Children {
			if err := writeSimplified(b, c, table, natives); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		b.WriteString(n.Source)
	}
	return nil
}
