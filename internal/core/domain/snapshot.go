package domain

import (
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Category classifies how a snapshot came to exist.
type Category string

const (
	CategoryManual    Category = "manual"
	CategoryAutomatic Category = "automatic"
	CategoryDaily     Category = "daily"
	CategoryWeekly    Category = "weekly"
	CategoryScheduled Category = "scheduled"
	CategoryMerged    Category = "merged"
)

// Categories lists all recognized snapshot categories in listing order.
var Categories = []Category{
	CategoryManual,
	CategoryAutomatic,
	CategoryDaily,
	CategoryWeekly,
	CategoryScheduled,
	CategoryMerged,
}

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// SchemaVersion is the wire schema version written by this engine.
const SchemaVersion = "2"

// RecognizedSchemaVersions are versions this engine can load. Anything
// outside this set parses with a warning, not an error.
var RecognizedSchemaVersions = map[string]bool{
	"1": true,
	"2": true,
}

// SnapshotIDPrefix prefixes every snapshot identifier.
// Format: snap-{ulid_lowercase}, 31 characters total.
const SnapshotIDPrefix = "snap-"

// RedactedValue replaces secret-bearing values when a snapshot is built
// without secrets. The original value is never retained once redacted.
const RedactedValue = "[REDACTED]"

// Resource identifies the externally managed entity (a zone) whose
// configuration is snapshotted.
type Resource struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// FirewallRule is one entry of a zone's locally tracked firewall
// configuration. Identity for diff/merge purposes is (Expression, Action).
type FirewallRule struct {
	Expression  string `json:"expression"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

// Identity returns the comparison identity of a rule.
func (r FirewallRule) Identity() string {
	return r.Action + " " + r.Expression
}

// LocalConfig is the locally tracked configuration bundle of a resource:
// a flat field mapping plus the nested firewall rule list.
type LocalConfig struct {
	Fields        map[string]any `json:"fields"`
	FirewallRules []FirewallRule `json:"firewall_rules,omitempty"`
}

// SettingsBundle is the set of key/value settings fetched from or applied to
// the settings provider, together with the resource identity it describes.
type SettingsBundle struct {
	Resource Resource
	Settings map[string]any
}

// Snapshot is the immutable point-in-time copy of a resource's settings and
// local configuration. Once persisted its fields are never mutated;
// corrections produce a new Snapshot.
type Snapshot struct {
	ID            string
	ResourceID    string
	ResourceName  string
	Status        string
	Category      Category
	CreatedAt     time.Time
	CreatedBy     string // empty for system-triggered snapshots
	Description   string
	SchemaVersion string

	ResourceSettings map[string]any
	LocalConfig      map[string]any
	FirewallRules    []FirewallRule

	// Merge provenance, set only for Category == CategoryMerged.
	MergedFrom []string
	Conflicts  []Conflict
}

// NewSnapshotID generates a new snapshot identifier. IDs are ULIDs: a random
// 80-bit payload prefixed with the creation time, so ids sort
// lexicographically by creation order and are never reused.
func NewSnapshotID(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", ErrValidation.WithDetails("generate snapshot id").WithCause(err)
	}
	return SnapshotIDPrefix + strings.ToLower(id.String()), nil
}

// ParseSnapshotID validates a snapshot identifier.
func ParseSnapshotID(s string) error {
	if !strings.HasPrefix(s, SnapshotIDPrefix) {
		return ErrValidation.WithDetails("snapshot id must start with " + SnapshotIDPrefix)
	}
	if _, err := ulid.Parse(strings.ToUpper(strings.TrimPrefix(s, SnapshotIDPrefix))); err != nil {
		return ErrValidation.WithDetails("malformed snapshot id").WithCause(err)
	}
	return nil
}

// Validate checks the structural invariants a snapshot must satisfy before it
// may be persisted or restored. Unknown setting keys are not an error here;
// see UnknownKeys.
func (s *Snapshot) Validate() error {
	var violations []string

	if err := ParseSnapshotID(s.ID); err != nil {
		violations = append(violations, "id: "+err.Error())
	}
	if s.ResourceID == "" {
		violations = append(violations, "resource id is required")
	}
	if !s.Category.Valid() {
		violations = append(violations, fmt.Sprintf("unknown category %q", s.Category))
	}
	if s.CreatedAt.IsZero() {
		violations = append(violations, "created_at is required")
	}
	if len(s.ResourceSettings) == 0 && len(s.LocalConfig) == 0 {
		violations = append(violations, "snapshot carries neither settings nor local config")
	}
	if s.Category == CategoryMerged && len(s.MergedFrom) < 2 {
		violations = append(violations, "merged snapshot must reference its inputs")
	}
	if s.Category != CategoryMerged && (len(s.MergedFrom) > 0 || len(s.Conflicts) > 0) {
		violations = append(violations, "merge provenance on non-merged snapshot")
	}

	if len(violations) > 0 {
		return ErrValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// UnknownKeys returns the setting and local-config keys outside the
// recognized profile, sorted. Unknown keys are tolerated (forward
// compatibility); callers surface them as warnings.
func (s *Snapshot) UnknownKeys() []string {
	var unknown []string
	for k := range s.ResourceSettings {
		if !RecognizedZoneSettings[k] {
			unknown = append(unknown, "settings."+k)
		}
	}
	for k := range s.LocalConfig {
		if !RecognizedLocalFields[k] {
			unknown = append(unknown, "local."+k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// Restorable reports whether the snapshot may be fed to the restore executor.
// Merged snapshots with unresolved conflicts are not restorable.
func (s *Snapshot) Restorable() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if len(s.Conflicts) > 0 {
		return ErrConflictUnresolved.WithDetails(
			fmt.Sprintf("%d unresolved conflicts", len(s.Conflicts)))
	}
	return nil
}

// Clone returns a deep copy. Merge and restore work on copies so stored
// snapshots stay immutable.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.ResourceSettings = cloneMap(s.ResourceSettings)
	out.LocalConfig = cloneMap(s.LocalConfig)
	out.FirewallRules = append([]FirewallRule(nil), s.FirewallRules...)
	out.MergedFrom = append([]string(nil), s.MergedFrom...)
	out.Conflicts = nil
	for _, c := range s.Conflicts {
		out.Conflicts = append(out.Conflicts, Conflict{Field: c.Field, Values: append([]any(nil), c.Values...)})
	}
	return &out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// SettingKeys returns the resource setting keys in sorted order.
func (s *Snapshot) SettingKeys() []string {
	return sortedKeys(s.ResourceSettings)
}

// LocalKeys returns the local config field keys in sorted order.
func (s *Snapshot) LocalKeys() []string {
	return sortedKeys(s.LocalConfig)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
