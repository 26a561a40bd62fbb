package syscfg

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/samber/lo"
)

// FilterMode selects how a Filter's constraints are combined.
type FilterMode int

const (
	// MatchValuesAll requires every constrained property to be present and
	// equal to its value.
	MatchValuesAll FilterMode = iota
	// MatchValuesAny requires at least one constrained property to match.
	MatchValuesAny
	// AllPropertiesExist requires every named property to be present. Values
	// are ignored.
	AllPropertiesExist
)

var filterModeNames = map[FilterMode]string{
	MatchValuesAll:     "all",
	MatchValuesAny:     "any",
	AllPropertiesExist: "exist",
}

func (m FilterMode) String() string {
	if name, ok := filterModeNames[m]; ok {
		return name
	}
	return "FilterMode(" + strconv.Itoa(int(m)) + ")"
}

// ParseFilterMode converts the wire name of a mode. An empty string is
// MatchValuesAll.
func ParseFilterMode(s string) (FilterMode, error) {
	if s == "" {
		return MatchValuesAll, nil
	}
	for mode, name := range filterModeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown filter mode %q", s)
}

// Filter constrains hardware enumeration. A filter with no constraints
// matches every resource.
type Filter struct {
	mode   FilterMode
	values map[Property]string
}

// NewFilter returns an empty filter in the given mode.
func NewFilter(mode FilterMode) *Filter {
	return &Filter{mode: mode, values: make(map[Property]string)}
}

// Set adds a constraint. Values are compared in their string form, so ints
// and bools may be passed directly. For AllPropertiesExist the value is
// ignored and may be nil.
func (f *Filter) Set(p Property, value any) *Filter {
	switch v := value.(type) {
	case nil:
		f.values[p] = ""
	case string:
		f.values[p] = v
	case ProgramMode:
		f.values[p] = string(v)
	default:
		f.values[p] = fmt.Sprint(v)
	}
	return f
}

// Mode returns the filter's match mode.
func (f *Filter) Mode() FilterMode {
	return f.mode
}

// Properties returns the constrained properties in sorted order.
func (f *Filter) Properties() []Property {
	props := lo.Keys(f.values)
	sort.Slice(props, func(i, j int) bool { return props[i] < props[j] })
	return props
}

// Value returns the constraint value for p.
func (f *Filter) Value(p Property) (string, bool) {
	v, ok := f.values[p]
	return v, ok
}

// Matches reports whether the resource satisfies the filter.
func (f *Filter) Matches(r ResourceInfo) bool {
	if f == nil || len(f.values) == 0 {
		return true
	}
	props := f.Properties()
	switch f.mode {
	case AllPropertiesExist:
		return lo.EveryBy(props, func(p Property) bool {
			_, ok := r.Property(p)
			return ok
		})
	case MatchValuesAny:
		return lo.SomeBy(props, func(p Property) bool { return f.valueMatches(r, p) })
	default:
		return lo.EveryBy(props, func(p Property) bool { return f.valueMatches(r, p) })
	}
}

func (f *Filter) valueMatches(r ResourceInfo, p Property) bool {
	got, ok := r.Property(p)
	return ok && got == f.values[p]
}

// Encode renders the filter as query parameters.
func (f *Filter) Encode() url.Values {
	q := url.Values{}
	if f == nil {
		return q
	}
	q.Set("mode", f.mode.String())
	for p, v := range f.values {
		q.Set(string(p), v)
	}
	return q
}

// DecodeFilter parses query parameters produced by Encode. Unknown property
// names are rejected with StatusInvalidArg.
func DecodeFilter(q url.Values) (*Filter, error) {
	mode, err := ParseFilterMode(q.Get("mode"))
	if err != nil {
		return nil, Errorf(StatusInvalidArg, "decode filter", "%v", err)
	}
	f := NewFilter(mode)
	for key, vals := range q {
		if key == "mode" {
			continue
		}
		p := Property(key)
		if !FilterProperties[p] {
			return nil, Errorf(StatusInvalidArg, "decode filter", "unknown property %q", key)
		}
		if len(vals) > 0 {
			f.values[p] = vals[0]
		} else {
			f.values[p] = ""
		}
	}
	return f, nil
}
