// Package export writes a resource collection as JSON, CSV or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// Formats lists the supported format names.
var Formats = []string{FormatJSON, FormatCSV, FormatYAML}

// ErrUnknownFormat is returned for a format not in Formats.
var ErrUnknownFormat = errors.New("unknown export format")

// Write encodes records to w in format. idKey names the column written first
// in CSV output.
func Write(w io.Writer, format string, records []types.Record, idKey string) error {
	if records == nil {
		records = []types.Record{}
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, records, idKey)
	default:
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

// Columns returns the union of keys across records, sorted, with idKey first
// when any record has it.
func Columns(records []types.Record, idKey string) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	if i := slices.Index(cols, idKey); i > 0 {
		cols = append([]string{idKey}, slices.Delete(cols, i, i+1)...)
	}
	return cols
}

func writeCSV(w io.Writer, records []types.Record, idKey string) error {
	cols := Columns(records, idKey)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := make([]string, len(cols))
	for _, r := range records {
		for i, c := range cols {
			row[i] = types.FormatValue(r[c])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
