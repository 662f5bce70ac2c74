package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/shelf/internal/admin"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// maxCell truncates long values in table output.
const maxCell = 40

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes records as aligned columns: the identifier followed by
// the schema's fields in declaration order.
func printTable(w io.Writer, s types.Schema, records []types.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := columns(s)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(cols, "\t")))
	for _, r := range records {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cell(types.FormatValue(r[c]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// printRecord writes one record as "field: value" lines. Fields outside the
// schema follow in name order.
func printRecord(w io.Writer, s types.Schema, r types.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	seen := map[string]bool{}
	for _, c := range columns(s) {
		seen[c] = true
		fmt.Fprintf(tw, "%s:\t%s\n", c, types.FormatValue(r[c]))
	}
	for _, k := range sortedKeys(map[string]any(r)) {
		if !seen[k] {
			fmt.Fprintf(tw, "%s:\t%s\n", k, types.FormatValue(r[k]))
		}
	}
	return tw.Flush()
}

// printNotice writes the page's success notification, if any.
func printNotice(w io.Writer, s admin.State) {
	if s.Notice != nil && s.Notice.Level == admin.LevelSuccess {
		fmt.Fprintln(w, s.Notice.Title)
	}
}

func columns(s types.Schema) []string {
	cols := []string{s.Key()}
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return cols
}

func cell(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	if r := []rune(v); len(r) > maxCell {
		return string(r[:maxCell-1]) + "…"
	}
	return v
}
