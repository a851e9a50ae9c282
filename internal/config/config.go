// Package config reads a project's seni.toml manifest, mirroring the
// line-scanning approach internal/packages/module.go uses for sentra.mod:
// no third-party TOML library sits anywhere in the example pack, so this
// is a deliberately narrow scanner covering the handful of top-level keys
// and the one table ([store]) this project's manifest needs, not a
// general TOML parser.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"seni/internal/store"
)

// Project is a seni.toml manifest: the script entry point, the default
// population size and mutation rate for `seni genotype next`, and the
// optional store backend/DSN. `seni genotype next -store <dsn>` uses the
// backend; the DSN it connects to comes from the flag, not from StoreDSN.
type Project struct {
	Name          string
	Entry         string
	PopulationSize int
	MutationRate  float64
	StoreBackend  store.Backend
	StoreDSN      string
}

// Default returns the manifest a freshly-initialised project starts from.
func Default(name, entry string) *Project {
	return &Project{
		Name:           name,
		Entry:          entry,
		PopulationSize: 20,
		MutationRate:   0.1,
		StoreBackend:   store.SQLite,
		StoreDSN:       "seni.db",
	}
}

// Load reads and parses path. Missing keys keep Default's values, so a
// manifest only needs to mention what it overrides.
func Load(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	p := Default("", "")
	var section string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"`)

		switch section {
		case "":
			switch key {
			case "name":
				p.Name = val
			case "entry":
				p.Entry = val
			}
		case "genotype":
			switch key {
			case "population_size":
				if n, err := strconv.Atoi(val); err == nil {
					p.PopulationSize = n
				}
			case "mutation_rate":
				if f, err := strconv.ParseFloat(val, 64); err == nil {
					p.MutationRate = f
				}
			}
		case "store":
			switch key {
			case "backend":
				p.StoreBackend = store.Backend(val)
			case "dsn":
				p.StoreDSN = val
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

// Write serialises p back to path, in the same section-per-concern shape
// Load expects.
func Write(path string, p *Project) error {
	var b strings.Builder
	fmt.Fprintf(&b, "name = %q\n", p.Name)
	fmt.Fprintf(&b, "entry = %q\n\n", p.Entry)
	fmt.Fprintln(&b, "[genotype]")
	fmt.Fprintf(&b, "population_size = %d\n", p.PopulationSize)
	fmt.Fprintf(&b, "mutation_rate = %g\n\n", p.MutationRate)
	fmt.Fprintln(&b, "[store]")
	fmt.Fprintf(&b, "backend = %q\n", string(p.StoreBackend))
	fmt.Fprintf(&b, "dsn = %q\n", p.StoreDSN)
	return os.WriteFile(path, []byte(b.String()), 0644)
}
