package service

import (
	"context"
	"sort"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
)

// Strategy selects how merge disagreements are resolved.
type Strategy string

const (
	// LatestWins resolves each conflict with the value from the later
	// snapshot in input order. Conflicts are still reported.
	LatestWins Strategy = "latest_wins"

	// ManualOnly retains the base value and surfaces the conflict to the
	// caller; the result is not restorable until its conflicts are empty.
	ManualOnly Strategy = "manual_only"
)

// Valid reports whether the strategy is recognized.
func (s Strategy) Valid() bool {
	return s == LatestWins || s == ManualOnly
}

// MergeService combines stored snapshots into a new merged snapshot.
type MergeService struct {
	store    snapstore.Store
	recorder audit.Recorder
	logger   logger.Logger
	now      func() time.Time
}

// NewMergeService creates a MergeService.
func NewMergeService(store snapstore.Store, recorder audit.Recorder, log logger.Logger) *MergeService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &MergeService{
		store:    store,
		recorder: recorder,
		logger:   log.With("component", "merger"),
		now:      time.Now,
	}
}

// Merge loads the named snapshots, merges them in order, and persists the
// result. The merged snapshot is stored even when conflicts remain under
// ManualOnly; restore refuses it until the conflicts are resolved.
func (s *MergeService) Merge(ctx context.Context, ids []string, strategy Strategy, description, createdBy string) (*domain.Snapshot, []domain.Conflict, error) {
	if len(ids) < 2 {
		return nil, nil, domain.ErrInsufficientInput
	}
	if !strategy.Valid() {
		return nil, nil, domain.ErrValidation.WithDetails("unknown merge strategy " + string(strategy))
	}

	inputs := make([]*domain.Snapshot, len(ids))
	for i, id := range ids {
		snap, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		inputs[i] = snap
	}

	merged, conflicts, err := Merge(inputs, strategy)
	if err != nil {
		return nil, nil, err
	}

	createdAt := s.now().UTC()
	id, err := domain.NewSnapshotID(createdAt)
	if err != nil {
		return nil, nil, err
	}
	merged.ID = id
	merged.CreatedAt = createdAt
	merged.CreatedBy = createdBy
	merged.Description = description

	if err := s.store.Put(ctx, merged); err != nil {
		return nil, nil, err
	}

	if err := s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionSnapshotMerge,
		ResourceID: merged.ResourceID,
		SnapshotID: merged.ID,
		Actor:      createdBy,
		Details: map[string]any{
			"merged_from": ids,
			"strategy":    string(strategy),
			"conflicts":   len(conflicts),
		},
	}); err != nil {
		s.logger.Warn("audit record failed", "snapshot_id", merged.ID, "error", err)
	}

	s.logger.Info("snapshots merged",
		"snapshot_id", merged.ID,
		"inputs", len(ids),
		"strategy", strategy,
		"conflicts", len(conflicts))
	return merged, conflicts, nil
}

// Merge combines the inputs in order without touching storage. The base is
// a deep copy of the first snapshot; each later snapshot is folded in
// key by key. Firewall rules are unioned by (expression, action) identity;
// rules sharing an identity with differing content are a conflict resolved
// like scalar fields.
func Merge(inputs []*domain.Snapshot, strategy Strategy) (*domain.Snapshot, []domain.Conflict, error) {
	if len(inputs) < 2 {
		return nil, nil, domain.ErrInsufficientInput
	}

	merged := inputs[0].Clone()
	if merged.ResourceSettings == nil {
		merged.ResourceSettings = make(map[string]any)
	}
	if merged.LocalConfig == nil {
		merged.LocalConfig = make(map[string]any)
	}
	tracker := newConflictTracker()

	for _, in := range inputs[1:] {
		mergeMap(merged.ResourceSettings, in.ResourceSettings, domain.FieldKeySettings, strategy, tracker)
		mergeMap(merged.LocalConfig, in.LocalConfig, domain.FieldKeyLocal, strategy, tracker)
		merged.FirewallRules = mergeRules(merged.FirewallRules, in.FirewallRules, strategy, tracker)
	}

	merged.Category = domain.CategoryMerged
	merged.MergedFrom = make([]string, len(inputs))
	for i, in := range inputs {
		merged.MergedFrom[i] = in.ID
	}

	// LatestWins resolves every disagreement, so the result stays
	// restorable; the conflicts are still reported to the caller. Under
	// ManualOnly they travel with the snapshot and block restore. Conflicts
	// inherited from a conflicted base are superseded either way: merging
	// is how a conflicted snapshot gets resolved.
	conflicts := tracker.list()
	merged.Conflicts = nil
	if strategy == ManualOnly {
		merged.Conflicts = conflicts
	}

	return merged, conflicts, nil
}

func mergeMap(base, incoming map[string]any, fieldKey func(string) string, strategy Strategy, tracker *conflictTracker) {
	for _, k := range sortedMapKeys(incoming) {
		v := incoming[k]
		current, ok := base[k]
		switch {
		case !ok:
			base[k] = v
		case domain.EqualValues(current, v):
			// agreement, nothing to do
		default:
			tracker.add(fieldKey(k), current, v)
			if strategy == LatestWins {
				base[k] = v
			}
		}
	}
}

func mergeRules(base, incoming []domain.FirewallRule, strategy Strategy, tracker *conflictTracker) []domain.FirewallRule {
	index := make(map[string]int, len(base))
	for i, r := range base {
		index[r.Identity()] = i
	}

	for _, r := range incoming {
		i, ok := index[r.Identity()]
		switch {
		case !ok:
			index[r.Identity()] = len(base)
			base = append(base, r)
		case base[i] == r:
			// identical rule on both sides
		default:
			tracker.add(domain.FieldKeyRule(r), base[i], r)
			if strategy == LatestWins {
				base[i] = r
			}
		}
	}
	return base
}

// conflictTracker accumulates one conflict per field, with the disagreeing
// values in input order.
type conflictTracker struct {
	fields map[string][]any
	order  []string
}

func newConflictTracker() *conflictTracker {
	return &conflictTracker{fields: make(map[string][]any)}
}

func (t *conflictTracker) add(field string, current, incoming any) {
	if _, ok := t.fields[field]; !ok {
		t.order = append(t.order, field)
		t.fields[field] = []any{current}
	}
	t.fields[field] = append(t.fields[field], incoming)
}

func (t *conflictTracker) list() []domain.Conflict {
	if len(t.order) == 0 {
		return nil
	}
	out := make([]domain.Conflict, len(t.order))
	for i, f := range t.order {
		out[i] = domain.Conflict{Field: f, Values: t.fields[f]}
	}
	return out
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
