// cmd/seni/commands/repl.go
package commands

import (
	"bufio"
	"fmt"
	"os"

	"seni/internal/compiler"
	"seni/internal/errors"
	"seni/internal/natives"
	"seni/internal/parser"
	"seni/internal/value"
	"seni/internal/vm"
	"seni/internal/words"
)

// Repl runs an interactive read-compile-run loop, one script form at a
// time, the way repl.go's Start drove sentra's own lexer/parser/compiler/vm
// pipeline per line. Globals persist across lines by recompiling and
// rerunning the whole accumulated buffer each time rather than resetting a
// single VM's chunk in place: this VM is single-use per spec (see the
// VM doc comment), so there is no ResetWithChunk equivalent to swap onto.
func Repl() {
	fmt.Println("seni repl | type 'exit' to quit, 'reset' to clear accumulated state")
	scanner := bufio.NewScanner(os.Stdin)

	table := words.NewStandard()
	nt := natives.New(table)
	var buffer string

	for {
		fmt.Print("seni> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		switch line {
		case "exit", "quit":
			return
		case "reset":
			buffer = ""
			table = words.NewStandard()
			nt = natives.New(table)
			fmt.Println("state cleared")
			continue
		case "":
			continue
		}

		candidate := buffer
		if candidate != "" {
			candidate += "\n"
		}
		candidate += line

		nodes, err := parser.New(candidate, table).Parse()
		if err != nil {
			fmt.Fprintln(os.Stderr, formatReplError(err))
			continue
		}
		prog, err := compiler.Compile(nodes, table)
		if err != nil {
			fmt.Fprintln(os.Stderr, formatReplError(err))
			continue
		}

		m := vm.New(prog, nt)
		result, err := m.Run()
		if err != nil {
			fmt.Fprintln(os.Stderr, formatReplError(err))
			continue
		}

		buffer = candidate
		if result.Kind != value.KindVoid {
			fmt.Printf("=> %s\n", result.String())
		}
	}
}

func formatReplError(err error) string {
	if seniErr, ok := err.(*errors.SeniError); ok {
		return seniErr.Error()
	}
	return err.Error()
}
