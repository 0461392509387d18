package erg

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/expr-lang/expr"
	"github.com/samber/lo"
	"github.com/twinfer/erg-plugin/pkg/ergstruct"
)

// RowIndex is the name of the row number variable in Where predicates.
const RowIndex = "_row"

// Table is a row oriented view of a measurement with one column per channel
// and one row per record. Shorter columns are padded with nil.
type Table struct {
	Headers []string
	Rows    [][]any

	identifiers []string
	numeric     []bool
}

// NewTable lays out the selected channels of m as a table. Headers are
// "<name>_<unit>", or the bare name for channels without unit.
func NewTable(m *ergstruct.Measurement, raw bool, opts ...Option) (*Table, error) {
	return getGlobalReader().NewTable(m, raw, opts...)
}

// NewTable lays out the selected channels of m as a table.
func (r *Reader) NewTable(m *ergstruct.Measurement, raw bool, opts ...Option) (*Table, error) {
	signals, err := r.Signals(m, raw, opts...)
	if err != nil {
		return nil, err
	}

	t := &Table{
		Headers: lo.Map(signals, func(s *ergstruct.Signal, _ int) string {
			if s.Unit == "" {
				return s.Name
			}
			return s.Name + "_" + s.Unit
		}),
		identifiers: lo.Map(signals, func(s *ergstruct.Signal, _ int) string { return Identifier(s.Name) }),
		numeric:     lo.Map(signals, func(s *ergstruct.Signal, _ int) bool { return !s.Samples.Type().IsBytes() }),
	}

	columns := lo.Map(signals, func(s *ergstruct.Signal, _ int) []any { return s.Values() })
	rows := lo.Max(lo.Map(columns, func(c []any, _ int) int { return len(c) }))
	t.Rows = make([][]any, rows)
	for i := range t.Rows {
		row := make([]any, len(columns))
		for j, col := range columns {
			if i < len(col) {
				row[j] = col[i]
			}
		}
		t.Rows[i] = row
	}
	return t, nil
}

// Where returns a table with the rows for which predicate holds. The
// predicate is an expr-lang expression over the channel Identifiers, with
// numeric channels as float64 and text channels as string, and RowIndex.
func (t *Table) Where(predicate string) (*Table, error) {
	env := t.env()
	program, err := expr.Compile(predicate, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling filter %q: %w", predicate, err)
	}

	out := &Table{
		Headers:     t.Headers,
		identifiers: t.identifiers,
		numeric:     t.numeric,
	}
	for i, row := range t.Rows {
		t.fill(env, i, row)
		keep, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("evaluating filter on row %d: %w", i, err)
		}
		if keep.(bool) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func (t *Table) env() map[string]any {
	env := make(map[string]any, len(t.identifiers)+1)
	for j, id := range t.identifiers {
		if t.numeric[j] {
			env[id] = float64(0)
		} else {
			env[id] = ""
		}
	}
	env[RowIndex] = 0
	return env
}

func (t *Table) fill(env map[string]any, i int, row []any) {
	for j, id := range t.identifiers {
		switch {
		case row[j] == nil && t.numeric[j]:
			env[id] = float64(0)
		case row[j] == nil:
			env[id] = ""
		case t.numeric[j]:
			env[id] = toFloat64(row[j])
		default:
			env[id] = row[j]
		}
	}
	env[RowIndex] = i
}

// WriteCSV writes the headers and rows as CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	record := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for j, v := range row {
			record[j] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func toFloat64(v any) float64 {
	switch val := normalize(v).(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	}
	return 0
}
