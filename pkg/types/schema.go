package types

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Field kinds.
const (
	KindText   = "text"
	KindInt    = "int"
	KindNumber = "number"
	KindEnum   = "enum"
	KindList   = "list"
	KindBool   = "bool"
)

// Field describes one form field of an entity: its kind, whether it is
// required, numeric bounds and the allowed values of an enum.
type Field struct {
	Name     string   `json:"name" yaml:"name"`
	Kind     string   `json:"kind" yaml:"kind"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Default  any      `json:"default,omitempty" yaml:"default,omitempty"`
}

// Schema parametrises the generic store and form for one entity type.
type Schema struct {
	Name      string  `json:"name" yaml:"name"`
	Singular  string  `json:"singular" yaml:"singular"`
	Plural    string  `json:"plural" yaml:"plural"`
	IDKey     string  `json:"id_key" yaml:"id_key"`
	Fields    []Field `json:"fields" yaml:"fields"`
	Creatable bool    `json:"creatable" yaml:"creatable"`
	Editable  bool    `json:"editable" yaml:"editable"`
	Deletable bool    `json:"deletable" yaml:"deletable"`
}

// Key returns the identifier field name, defaulting to DefaultIDKey.
func (s Schema) Key() string {
	if s.IDKey == "" {
		return DefaultIDKey
	}
	return s.IDKey
}

// Field returns the field definition with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults returns a fresh draft holding every field's default value.
// Fields without a default start empty for their kind.
func (s Schema) Defaults() Record {
	d := make(Record, len(s.Fields))
	for _, f := range s.Fields {
		if f.Default != nil {
			d[f.Name] = cloneValue(f.Default)
			continue
		}
		switch f.Kind {
		case KindList:
			d[f.Name] = []any{}
		case KindBool:
			d[f.Name] = false
		case KindInt, KindNumber:
			d[f.Name] = nil
		default:
			d[f.Name] = ""
		}
	}
	return d
}

// Normalize returns a copy of draft with string values coerced to the kind of
// their field: "3" becomes 3 for int fields, "a,b" becomes a list, "true" a
// bool. Values that cannot be coerced are left as they are so that Validate
// reports them.
func (s Schema) Normalize(draft Record) Record {
	out := draft.Clone()
	if out == nil {
		out = Record{}
	}
	for _, f := range s.Fields {
		raw, ok := out[f.Name].(string)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		switch f.Kind {
		case KindInt:
			if raw == "" {
				out[f.Name] = nil
			} else if n, err := strconv.Atoi(raw); err == nil {
				out[f.Name] = n
			}
		case KindNumber:
			if raw == "" {
				out[f.Name] = nil
			} else if n, err := strconv.ParseFloat(raw, 64); err == nil {
				out[f.Name] = n
			}
		case KindBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				out[f.Name] = b
			}
		case KindList:
			list := []any{}
			for _, part := range strings.Split(raw, ",") {
				if part = strings.TrimSpace(part); part != "" {
					list = append(list, part)
				}
			}
			out[f.Name] = list
		}
	}
	return out
}

// Validate checks draft against the field constraints and returns a
// *ValidationError naming every violation, or nil.
func (s Schema) Validate(draft Record) error {
	var errs []FieldError
	add := func(field, reason string) {
		errs = append(errs, FieldError{Field: field, Reason: reason})
	}

	for _, f := range s.Fields {
		v, present := draft[f.Name]
		if !present || isEmpty(v) {
			if f.Required {
				add(f.Name, "is required")
			}
			continue
		}

		switch f.Kind {
		case KindInt, KindNumber:
			n, ok := numericValue(v)
			if !ok {
				add(f.Name, "must be a number")
				continue
			}
			if f.Kind == KindInt && n != math.Trunc(n) {
				add(f.Name, "must be a whole number")
				continue
			}
			if f.Min != nil && n < *f.Min {
				add(f.Name, fmt.Sprintf("must be at least %s", FormatValue(*f.Min)))
			}
			if f.Max != nil && n > *f.Max {
				add(f.Name, fmt.Sprintf("must be at most %s", FormatValue(*f.Max)))
			}
		case KindBool:
			if _, ok := v.(bool); !ok {
				add(f.Name, "must be true or false")
			}
		case KindList:
			switch v.(type) {
			case []any, []string:
			default:
				add(f.Name, "must be a list")
			}
		case KindEnum:
			str, ok := v.(string)
			if !ok {
				add(f.Name, "must be text")
				continue
			}
			if len(f.Options) > 0 && !slices.Contains(f.Options, str) {
				add(f.Name, "must be one of "+strings.Join(f.Options, ", "))
			}
		default:
			if _, ok := v.(string); !ok {
				add(f.Name, "must be text")
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// NumericValue exposes the numeric reading used by Validate.
func NumericValue(v any) (float64, bool) {
	return numericValue(v)
}
