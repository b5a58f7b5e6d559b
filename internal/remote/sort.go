package remote

import (
	"fmt"
	"strings"
)

// Sort orders a listing by one field. The zero value leaves store order.
type Sort struct {
	Field string
	Desc  bool
}

// ByNewest sorts newest-created first.
var ByNewest = Sort{Field: "created_at", Desc: true}

// ParseSort reads the "-field" / "field" notation.
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Sort{}, nil
	}
	desc := strings.HasPrefix(s, "-")
	field := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if !validField(field) {
		return Sort{}, fmt.Errorf("invalid sort field %q", field)
	}
	return Sort{Field: field, Desc: desc}, nil
}

func (s Sort) String() string {
	if s.Field == "" {
		return ""
	}
	if s.Desc {
		return "-" + s.Field
	}
	return s.Field
}

// IsZero reports whether no ordering is requested.
func (s Sort) IsZero() bool { return s.Field == "" }

// Less orders a before b on the sort field. Numbers compare numerically,
// everything else by its string form; missing values sort first.
func (s Sort) Less(a, b Data) bool {
	av, aok := a[s.Field]
	bv, bok := b[s.Field]
	var less bool
	switch {
	case !aok || !bok:
		less = !aok && bok
	default:
		af, aNum := number(av)
		bf, bNum := number(bv)
		if aNum && bNum {
			less = af < bf
		} else {
			less = fmt.Sprint(av) < fmt.Sprint(bv)
		}
	}
	if s.Desc {
		return !less && !s.equal(a, b)
	}
	return less
}

func (s Sort) equal(a, b Data) bool {
	return fmt.Sprint(a[s.Field]) == fmt.Sprint(b[s.Field])
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
