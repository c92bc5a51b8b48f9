package domain

import (
	"encoding/json"
	"fmt"
)

// ChangeKind classifies a single diff entry.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeModified ChangeKind = "modified"
)

// Change is one field-level difference between two snapshots.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Field    string     `json:"field"`
	OldValue any        `json:"old_value,omitempty"`
	NewValue any        `json:"new_value,omitempty"`
}

// ChangeSet is the ordered result of diffing two snapshots.
type ChangeSet struct {
	Changes []Change `json:"changes"`
}

// Empty reports whether the two snapshots were field-equal.
func (cs ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}

// Conflict records a field on which two or more merge inputs disagreed.
// Values holds the disagreeing values in input order.
type Conflict struct {
	Field  string `json:"field"`
	Values []any  `json:"values"`
}

// FieldKeySettings, FieldKeyLocal, and FieldKeyRule build namespaced change
// and conflict field names, except that resource settings keep their bare key
// so callers can address them directly.
func FieldKeySettings(key string) string { return key }

func FieldKeyLocal(key string) string { return "local." + key }

func FieldKeyRule(r FirewallRule) string {
	return fmt.Sprintf("firewall[%s]", r.Identity())
}

// EqualValues compares two setting values structurally. Values arrive from
// JSON decoding, so canonical re-encoding gives order-insensitive equality
// for nested objects. Strings are encoded too: the string "true" must not
// compare equal to the bool true.
func EqualValues(a, b any) bool {
	return equalityKey(a) == equalityKey(b)
}

// equalityKey renders a value as compact JSON with sorted keys
// (encoding/json sorts map keys). Unlike CanonicalValue, strings keep
// their quotes so the key carries the type.
func equalityKey(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(raw)
}

// CanonicalValue renders a setting value for display. Plain strings render
// bare; everything else renders as compact JSON. Display only: two values
// with the same rendering are not necessarily equal, use EqualValues for
// comparisons.
func CanonicalValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
