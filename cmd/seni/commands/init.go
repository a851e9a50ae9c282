// cmd/seni/commands/init.go
package commands

import (
	"fmt"
	"os"

	"seni/internal/config"
)

// InitCommand scaffolds a new Seni project: a seni.toml manifest and a
// starter script, the way cmd/sentra/commands/build.go's InitCommand
// scaffolds a sentra.json/main.sn pair.
func InitCommand(args []string) error {
	name := "seni-project"
	if len(args) > 0 {
		name = args[0]
	}

	if err := os.MkdirAll(name, 0755); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	proj := config.Default(name, "main.seni")
	if err := config.Write(name+"/seni.toml", proj); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	starter := `; A starting point. {value generator} marks value as alterable: the
; genetic engine can replace it with a gene drawn by running generator.
(translate [500 500])
(rotate {0 (nth from: (prng/values num: 1 from: (prng/build min: 0 max: 360 seed: 1001)) n: 0)})
(scale {1.0 (nth from: (prng/values num: 1 from: (prng/build min: 0.5 max: 1.5 seed: 1002)) n: 0)})
`
	if err := os.WriteFile(name+"/main.seni", []byte(starter), 0644); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	fmt.Printf("Initialized %s\n", name)
	fmt.Printf("  cd %s\n  seni run main.seni\n", name)
	return nil
}
