package erg

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/twinfer/erg-plugin/internal/cel"
	"github.com/twinfer/erg-plugin/pkg/ergstruct"
	"gopkg.in/yaml.v3"
)

// Derivation defines a channel computed from the other channels of a
// measurement, one value per record.
type Derivation struct {
	Name string `yaml:"name" json:"name"`
	Unit string `yaml:"unit" json:"unit"`
	Expr string `yaml:"expr" json:"expr"`
}

type derivationFile struct {
	Derivations []Derivation `yaml:"derivations"`
}

// LoadDerivations reads derivations from a YAML file with a top level
// derivations list.
func LoadDerivations(path string) ([]Derivation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading derivations file: %w", err)
	}
	return ParseDerivations(data)
}

// ParseDerivations decodes a derivations YAML document.
func ParseDerivations(data []byte) ([]Derivation, error) {
	var file derivationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing derivations: %w", err)
	}
	for i, d := range file.Derivations {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("derivation %d: missing name", i)
		}
		if strings.TrimSpace(d.Expr) == "" {
			return nil, fmt.Errorf("derivation %q: missing expr", d.Name)
		}
	}
	return file.Derivations, nil
}

var identifierPattern = regexp.MustCompile(`[^A-Za-z0-9_]`)

// reservedIdentifiers holds the keywords of CEL and expr-lang.
var reservedIdentifiers = map[string]bool{
	"true": true, "false": true, "null": true, "in": true, "as": true,
	"break": true, "const": true, "continue": true, "else": true, "for": true,
	"function": true, "if": true, "import": true, "let": true, "loop": true,
	"package": true, "namespace": true, "return": true, "var": true,
	"void": true, "while": true,
	// expr-lang
	"and": true, "or": true, "not": true, "nil": true, "matches": true,
	"contains": true, "startsWith": true, "endsWith": true,
}

// Identifier turns a channel name into the variable name used by derivation
// and filter expressions: characters outside [A-Za-z0-9_] become '_', a
// leading digit gets a '_' prefix and reserved words get a '_' suffix.
// For example "Car.v" becomes "Car_v".
func Identifier(name string) string {
	id := identifierPattern.ReplaceAllString(name, "_")
	if id == "" || (id[0] >= '0' && id[0] <= '9') {
		id = "_" + id
	}
	if reservedIdentifiers[id] {
		id += "_"
	}
	return id
}

// Derive evaluates each derivation per record and appends the results to m
// as Double channels. Derivations run in order, so a later one may refer to
// an earlier one. Expressions see every numeric channel with as many samples
// as m has records, in physical units, under its Identifier, plus the record
// index i and timestamp t. Nothing from a failing derivation is appended.
func Derive(m *ergstruct.Measurement, defs ...Derivation) error {
	if len(defs) == 0 {
		return nil
	}

	n := m.Records()
	if n == 0 && m.Len() > 0 {
		first, err := m.Channel(m.Names()[0])
		if err != nil {
			return err
		}
		n = first.Samples().Len()
	}

	signals, err := m.Signals(false)
	if err != nil {
		return err
	}
	columns := make(map[string][]float64, len(signals)+len(defs))
	for _, sig := range signals {
		values := sig.Samples.Float64s()
		if values == nil || len(values) != n {
			continue
		}
		id := Identifier(sig.Name)
		if id == cel.IndexVariable || id == cel.TimeVariable {
			continue
		}
		columns[id] = values
	}

	derived := lo.Map(defs, func(d Derivation, _ int) string { return Identifier(d.Name) })
	variables := lo.Uniq(append(lo.Keys(columns), derived...))
	variables = lo.Without(variables, cel.IndexVariable, cel.TimeVariable)

	pool, err := cel.NewExpressionPool(variables)
	if err != nil {
		return fmt.Errorf("creating expression environment: %w", err)
	}

	timestamps := m.Timestamps(n)
	activation := make(map[string]any, len(variables)+2)
	for i, d := range defs {
		program, err := pool.GetExpression(d.Expr)
		if err != nil {
			return fmt.Errorf("derivation %q: %w", d.Name, err)
		}

		out := make([]float64, n)
		for idx := 0; idx < n; idx++ {
			for id, values := range columns {
				activation[id] = values[idx]
			}
			activation[cel.IndexVariable] = int64(idx)
			activation[cel.TimeVariable] = timestamps[idx]

			v, err := pool.EvaluateExpression(program, activation)
			if err != nil {
				return fmt.Errorf("derivation %q, record %d: %w", d.Name, idx, err)
			}
			out[idx] = v
		}

		if err := m.Append([]any{out}, []string{d.Name}, []string{d.Unit}); err != nil {
			return err
		}
		if id := derived[i]; id != cel.IndexVariable && id != cel.TimeVariable {
			columns[id] = out
		}
	}
	return nil
}
