// Package audit provides the append-only activity trail.
//
// The engine emits exactly one entry per successful mutating operation
// (snapshot create, restore, prune, delete). Failures are reported to the
// caller, not recorded here.
package audit

import (
	"context"
	"time"
)

// Entry is one audit record.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	ResourceID string         `json:"resourceId,omitempty"`
	SnapshotID string         `json:"snapshotId,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Well-known actions.
const (
	ActionSnapshotCreate = "snapshot.create"
	ActionSnapshotDelete = "snapshot.delete"
	ActionSnapshotMerge  = "snapshot.merge"
	ActionRestore        = "snapshot.restore"
	ActionPrune          = "retention.prune"
)

// Recorder is the append-only audit sink.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop discards all entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }
