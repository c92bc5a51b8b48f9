package service

import (
	"context"
	"sync"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/export"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/metric"
)

// DefaultParallelism bounds concurrent per-resource work in bulk
// operations. Calls to the same resource stay sequential.
const DefaultParallelism = 5

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Store    snapstore.Store
	Provider SettingsProvider
	Local    LocalConfigStore
	Recorder audit.Recorder
	Logger   logger.Logger
	Metrics  *metric.Registry

	// PacingInterval is the restore executor's inter-write delay.
	PacingInterval time.Duration

	// Parallelism bounds concurrent resources in bulk operations.
	Parallelism int
}

// Engine bundles the snapshot services behind one operations surface for
// the CLI and the agent.
type Engine struct {
	builder   *BuilderService
	merger    *MergeService
	restorer  *RestoreService
	retention *RetentionService

	store       snapstore.Store
	recorder    audit.Recorder
	logger      logger.Logger
	metrics     *metric.Registry
	parallelism int
}

// NewEngine creates the engine and its services.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Recorder == nil {
		cfg.Recorder = audit.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = DefaultParallelism
	}
	return &Engine{
		builder:     NewBuilderService(cfg.Provider, cfg.Local, cfg.Store, cfg.Recorder, cfg.Logger),
		merger:      NewMergeService(cfg.Store, cfg.Recorder, cfg.Logger),
		restorer:    NewRestoreService(cfg.Store, cfg.Provider, cfg.Local, cfg.Recorder, cfg.Logger, cfg.PacingInterval),
		retention:   NewRetentionService(cfg.Store, cfg.Recorder, cfg.Logger),
		store:       cfg.Store,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger.With("component", "engine"),
		metrics:     cfg.Metrics,
		parallelism: cfg.Parallelism,
	}
}

// CreateSnapshot captures one resource into a new snapshot.
func (e *Engine) CreateSnapshot(ctx context.Context, req BuildRequest) (*domain.Snapshot, error) {
	snap, err := e.builder.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.SnapshotsCreated.WithLabelValues(string(snap.Category)).Inc()
	}
	return snap, nil
}

// ListSnapshots returns metadata for matching snapshots, newest first.
func (e *Engine) ListSnapshots(ctx context.Context, f snapstore.Filter) ([]snapstore.Meta, error) {
	return e.store.List(ctx, f)
}

// GetSnapshot loads a full snapshot.
func (e *Engine) GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error) {
	return e.store.Get(ctx, id)
}

// DeleteSnapshot removes one snapshot by operator request.
func (e *Engine) DeleteSnapshot(ctx context.Context, id, actor string) error {
	snap, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.SnapshotsDeleted.WithLabelValues("manual").Inc()
	}
	if err := e.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionSnapshotDelete,
		ResourceID: snap.ResourceID,
		SnapshotID: id,
		Actor:      actor,
	}); err != nil {
		e.logger.Warn("audit record failed", "snapshot_id", id, "error", err)
	}
	return nil
}

// DiffSnapshots compares two stored snapshots.
func (e *Engine) DiffSnapshots(ctx context.Context, idA, idB string) (domain.ChangeSet, error) {
	a, err := e.store.Get(ctx, idA)
	if err != nil {
		return domain.ChangeSet{}, err
	}
	b, err := e.store.Get(ctx, idB)
	if err != nil {
		return domain.ChangeSet{}, err
	}
	return Diff(a, b), nil
}

// MergeSnapshots combines stored snapshots into a new merged snapshot.
func (e *Engine) MergeSnapshots(ctx context.Context, ids []string, strategy Strategy, description, createdBy string) (*domain.Snapshot, []domain.Conflict, error) {
	snap, conflicts, err := e.merger.Merge(ctx, ids, strategy, description, createdBy)
	if err != nil {
		return nil, nil, err
	}
	if e.metrics != nil {
		e.metrics.SnapshotsCreated.WithLabelValues(string(domain.CategoryMerged)).Inc()
	}
	return snap, conflicts, nil
}

// RestoreSnapshot applies a stored snapshot back to a resource.
func (e *Engine) RestoreSnapshot(ctx context.Context, snapshotID, resourceID string, dryRun bool) (RestoreReport, error) {
	report, err := e.restorer.Restore(ctx, snapshotID, resourceID, dryRun)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RestoreRuns.WithLabelValues("failed").Inc()
		}
		return report, err
	}
	if e.metrics != nil {
		e.metrics.RestoreRuns.WithLabelValues(restoreOutcome(report)).Inc()
		for _, c := range report.Changes {
			if c.Status == StatusApplied {
				e.metrics.RestoreFieldsApplied.Inc()
			}
		}
		e.metrics.RestoreFieldsFailed.Add(float64(len(report.Errors)))
	}
	return report, nil
}

// PruneSnapshots enforces a retention policy on one resource.
func (e *Engine) PruneSnapshots(ctx context.Context, resourceID string, policy domain.RetentionPolicy, dryRun bool) (PruneReport, error) {
	report, err := e.retention.Prune(ctx, resourceID, policy, dryRun)
	if err != nil {
		return report, err
	}
	if e.metrics != nil && !dryRun {
		e.metrics.PruneRuns.Inc()
		e.metrics.PruneDeletions.Add(float64(len(report.Deleted)))
		e.metrics.SnapshotsDeleted.WithLabelValues("retention").Add(float64(len(report.Deleted)))
	}
	return report, nil
}

// ExportSnapshot renders a stored snapshot in the requested format.
func (e *Engine) ExportSnapshot(ctx context.Context, id string, format export.Format) ([]byte, error) {
	snap, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return export.Export(snap, format)
}

// VerifySnapshot runs the integrity verifier against the stored bytes.
func (e *Engine) VerifySnapshot(ctx context.Context, id string) (snapstore.VerificationResult, error) {
	raw, err := e.store.GetRaw(ctx, id)
	if err != nil {
		return snapstore.VerificationResult{}, err
	}
	result := snapstore.Verify(raw)
	if e.metrics != nil && !result.Valid {
		e.metrics.VerifyFailures.Inc()
	}
	return result, nil
}

// ============================================================================
// Bulk operations
// ============================================================================

// BulkResult is the per-resource breakdown of a bulk operation. Bulk calls
// never fail all-or-nothing; precondition failures aside, every resource
// gets an entry.
type BulkResult struct {
	ResourceID string `json:"resourceId"`
	SnapshotID string `json:"snapshotId,omitempty"`
	Deleted    int    `json:"deleted,omitempty"`
	Err        string `json:"error,omitempty"`
}

// BackupAll snapshots every listed resource, up to the parallelism bound
// concurrently. Results arrive in input order.
func (e *Engine) BackupAll(ctx context.Context, resourceIDs []string, req BuildRequest) []BulkResult {
	results := make([]BulkResult, len(resourceIDs))
	e.forEachResource(resourceIDs, func(i int, resourceID string) {
		r := req
		r.ResourceID = resourceID
		snap, err := e.CreateSnapshot(ctx, r)
		results[i] = BulkResult{ResourceID: resourceID}
		if err != nil {
			results[i].Err = err.Error()
			return
		}
		results[i].SnapshotID = snap.ID
	})
	return results
}

// PruneAll applies the policy to every listed resource.
func (e *Engine) PruneAll(ctx context.Context, resourceIDs []string, policy domain.RetentionPolicy, dryRun bool) []BulkResult {
	results := make([]BulkResult, len(resourceIDs))
	e.forEachResource(resourceIDs, func(i int, resourceID string) {
		report, err := e.PruneSnapshots(ctx, resourceID, policy, dryRun)
		results[i] = BulkResult{ResourceID: resourceID}
		if err != nil {
			results[i].Err = err.Error()
			return
		}
		results[i].Deleted = len(report.Deleted)
	})
	return results
}

// forEachResource fans work out over the resources under the parallelism
// bound. Per-resource work stays sequential inside fn.
func (e *Engine) forEachResource(resourceIDs []string, fn func(i int, resourceID string)) {
	sem := make(chan struct{}, e.parallelism)
	var wg sync.WaitGroup
	for i, id := range resourceIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i, id)
		}(i, id)
	}
	wg.Wait()
}

func restoreOutcome(report RestoreReport) string {
	switch {
	case report.DryRun:
		return "dry_run"
	case len(report.Errors) > 0:
		return "partial"
	default:
		return "success"
	}
}
