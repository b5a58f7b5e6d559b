package remote

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Cond is a single field equality predicate.
type Cond struct {
	Field string
	Value any
}

// Filter is a conjunction of equality predicates. The empty filter matches
// every record.
type Filter []Cond

// Eq returns a filter matching records whose field equals value.
func Eq(field string, value any) Filter {
	return Filter{{Field: field, Value: value}}
}

// And returns a copy of f extended with field = value. An existing predicate
// on the same field is replaced.
func (f Filter) And(field string, value any) Filter {
	out := make(Filter, 0, len(f)+1)
	for _, c := range f {
		if c.Field != field {
			out = append(out, c)
		}
	}
	return append(out, Cond{Field: field, Value: value})
}

// Value returns the value required for field, if any.
func (f Filter) Value(field string) (any, bool) {
	for _, c := range f {
		if c.Field == field {
			return c.Value, true
		}
	}
	return nil, false
}

// Match reports whether d satisfies every predicate. Values are compared in
// their JSON form so 1 and 1.0 are equal.
func (f Filter) Match(d Data) bool {
	for _, c := range f {
		v, ok := d[c.Field]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(jsonValue(v), jsonValue(c.Value)) {
			return false
		}
	}
	return true
}

// String renders the filter as `a="x" && b=1`, fields in sorted order.
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, c := range f.sorted() {
		b, _ := json.Marshal(c.Value)
		parts = append(parts, c.Field+"="+string(b))
	}
	return strings.Join(parts, " && ")
}

// MarshalJSON encodes the filter as an object of field → value.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(f))
	for _, c := range f {
		m[c.Field] = c.Value
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object of field → value.
func (f *Filter) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	out := make(Filter, 0, len(m))
	for k, v := range m {
		out = append(out, Cond{Field: k, Value: v})
	}
	*f = out.sorted()
	return nil
}

// ParseFilter decodes the JSON object form produced by MarshalJSON. An empty
// string yields the empty filter.
func ParseFilter(s string) (Filter, error) {
	if strings.TrimSpace(s) == "" {
		return Filter{}, nil
	}
	var f Filter
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	for _, c := range f {
		if !validField(c.Field) {
			return nil, fmt.Errorf("invalid filter field %q", c.Field)
		}
	}
	return f, nil
}

func (f Filter) sorted() Filter {
	out := append(Filter(nil), f...)
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func jsonValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func validField(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
