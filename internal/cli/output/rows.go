package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"gopkg.in/yaml.v3"
)

// Columns returns the column order for rows: the union of their keys, sorted.
func Columns(rows []core.Row) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// Rows renders a result set in the effective mode. When cols is empty the
// order is derived from the rows.
func (r *Renderer) Rows(cols []string, rows []core.Row) error {
	if len(cols) == 0 {
		cols = Columns(rows)
	}

	switch r.EffectiveMode() {
	case ModeJSON:
		if rows == nil {
			rows = []core.Row{}
		}
		return r.JSON(rows)
	case ModeYAML:
		if rows == nil {
			rows = []core.Row{}
		}
		return r.YAML(rows)
	case ModeCSV:
		return r.csv(cols, rows)
	case ModeMarkdown:
		r.markdown(cols, rows)
		return nil
	default:
		r.table(cols, rows)
		return nil
	}
}

// Table renders pre-formatted cells. Machine modes receive one object per
// row keyed by header.
func (r *Renderer) Table(header []string, cells [][]string) error {
	rows := make([]core.Row, len(cells))
	for i, line := range cells {
		row := make(core.Row, len(header))
		for j, h := range header {
			if j < len(line) {
				row[h] = line[j]
			}
		}
		rows[i] = row
	}
	return r.Rows(header, rows)
}

func (r *Renderer) table(cols []string, rows []core.Row) {
	if len(rows) == 0 {
		r.Println(r.Muted("(0 rows)"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		line := make(table.Row, len(cols))
		for i, col := range cols {
			line[i] = FormatValue(row[col])
		}
		t.AppendRow(line)
	}

	t.Render()
	r.Println(r.Muted(fmt.Sprintf("(%d rows)", len(rows))))
}

func (r *Renderer) markdown(cols []string, rows []core.Row) {
	if len(rows) == 0 {
		r.Println("(0 rows)")
		return
	}

	r.Printf("| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	r.Printf("| %s |\n", strings.Join(seps, " | "))

	for _, row := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeMarkdownCell(FormatValue(row[col]))
		}
		r.Printf("| %s |\n", strings.Join(values, " | "))
	}
}

func (r *Renderer) csv(cols []string, rows []core.Row) error {
	w := csv.NewWriter(r.out)
	if err := w.Write(cols); err != nil {
		return err
	}
	for _, row := range rows {
		values := make([]string, len(cols))
		for i, col := range cols {
			if v := row[col]; v != nil {
				values[i] = FormatValue(v)
			}
		}
		if err := w.Write(values); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as YAML.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Value renders an arbitrary query result: row sets as rows, maps as a
// single row, and anything else as a scalar.
func (r *Renderer) Value(v any) error {
	switch x := v.(type) {
	case []core.Row:
		return r.Rows(nil, x)
	case map[string]any:
		return r.Rows(Columns([]core.Row{x}), []core.Row{x})
	}

	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(v)
	case ModeYAML:
		return r.YAML(v)
	default:
		r.Println(FormatValue(v))
		return nil
	}
}
