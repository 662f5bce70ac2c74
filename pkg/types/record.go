package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultIDKey is the identifier field assigned by the backend on creation.
const DefaultIDKey = "id"

// Record is one entity instance: a mapping from field name to value.
// The only field this layer interprets is the identifier.
type Record map[string]any

// ID returns the string form of the identifier stored under key.
// Returns "" when the record has no identifier.
func (r Record) ID(key string) string {
	if key == "" {
		key = DefaultIDKey
	}
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// Clone returns a deep copy of the record. Nested maps and slices are copied
// so that edits to the clone never reach the original.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a copy of r with every field of fields written over it.
func (r Record) Merge(fields Record) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(fields))
	}
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// FormatValue renders a field value as display text. Numbers use the shortest
// decimal form, lists are joined with commas, nested objects become JSON and
// nil renders as the empty string.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ",")
	case map[string]any, Record:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
