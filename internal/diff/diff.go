// Package diff computes field-level before/after deltas between two record
// snapshots.
//
// Values are normalised by kind before they are compared: times become UTC
// instants, integer kinds widen to int64, floats to float64 and pointers are
// dereferenced. A time and a string holding the same instant, or a number
// and a string holding the same number, compare equal so that values that
// crossed a workbook round trip do not produce spurious changes.
package diff

import (
	"encoding/json"
	"sort"
)

// Fields is a record snapshot: field name to value.
type Fields map[string]any

// Value is an optional value. Present is false when the key was absent from
// the snapshot, which is different from a present nil.
type Value struct {
	V       any
	Present bool
}

// Some wraps a present value.
func Some(v any) Value { return Value{V: v, Present: true} }

// Change is the before/after pair of one field.
type Change struct {
	Before Value
	After  Value
}

// MarshalJSON omits the side that was absent.
func (c Change) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 2)
	if c.Before.Present {
		m["before"] = c.Before.V
	}
	if c.After.Present {
		m["after"] = c.After.V
	}
	return json.Marshal(m)
}

func (c *Change) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*c = Change{}
	if raw, ok := m["before"]; ok {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		c.Before = Some(v)
	}
	if raw, ok := m["after"]; ok {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		c.After = Some(v)
	}
	return nil
}

// Changes maps a field name to its change.
type Changes map[string]Change

// Keys returns the changed field names in sorted order.
func (c Changes) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Diff returns one Change for every key of before ∪ after whose values are
// not equal. A nil map is treated as empty, which covers the create and
// delete edges. The result is empty, never nil, when nothing changed.
func Diff(before, after Fields) Changes {
	out := Changes{}
	for k, bv := range before {
		av, ok := after[k]
		if ok && Equal(bv, av) {
			continue
		}
		ch := Change{Before: Some(bv)}
		if ok {
			ch.After = Some(av)
		}
		out[k] = ch
	}
	for k, av := range after {
		if _, ok := before[k]; ok {
			continue
		}
		out[k] = Change{After: Some(av)}
	}
	return out
}
