package docstore

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// CreateTimeField orders a query by the server-assigned create time.
const CreateTimeField = "__create_time__"

// Op is a filter operator.
type Op string

const (
	OpEqual Op = "=="
	OpIn    Op = "in"
)

// Filter matches a top-level string-compatible field.
type Filter struct {
	Field  string
	Op     Op
	Values []string
}

// Where matches documents whose field equals value.
func Where(field, value string) Filter {
	return Filter{Field: field, Op: OpEqual, Values: []string{value}}
}

// WhereIn matches documents whose field equals any of values.
func WhereIn(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Values: values}
}

// Query selects documents of one collection.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (q Query) validate() error {
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return ErrInvalidField
		}
	}
	if q.OrderBy != "" && q.OrderBy != CreateTimeField && !fieldPattern.MatchString(q.OrderBy) {
		return ErrInvalidField
	}
	return nil
}

// fieldString renders a raw JSON value the way filters compare it: strings
// unquoted, everything else as its JSON text.
func fieldString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func (f Filter) matches(fields map[string]json.RawMessage) bool {
	raw, ok := fields[f.Field]
	if !ok {
		return false
	}
	value := fieldString(raw)
	for _, v := range f.Values {
		if v == value {
			return true
		}
	}
	return false
}

// compareRaw orders two JSON field values, treating RFC 3339 strings as times
// and numbers numerically.
func compareRaw(a, b json.RawMessage) int {
	sa, sb := fieldString(a), fieldString(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	var na, nb float64
	if json.Unmarshal(a, &na) == nil && json.Unmarshal(b, &nb) == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}
	return strings.Compare(sa, sb)
}
