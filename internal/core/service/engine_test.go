package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/export"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/memory"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/metric"
)

func newEngine(t *testing.T) (*Engine, *fakeProvider, *memory.Store, *captureRecorder) {
	t.Helper()
	provider := newFakeProvider()
	store := memory.NewStore()
	rec := &captureRecorder{}
	e := NewEngine(EngineConfig{
		Store:       store,
		Provider:    provider,
		Local:       newFakeLocal(),
		Recorder:    rec,
		Metrics:     metric.NewRegistry(),
		Parallelism: 3,
	})
	return e, provider, store, rec
}

func TestEngineLifecycle(t *testing.T) {
	e, _, _, _ := newEngine(t)
	ctx := context.Background()

	snap, err := e.CreateSnapshot(ctx, BuildRequest{ResourceID: "zone-1", IncludeSecrets: true})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	metas, err := e.ListSnapshots(ctx, snapstore.Filter{ResourceID: "zone-1"})
	if err != nil || len(metas) != 1 {
		t.Fatalf("ListSnapshots = %v, %v", metas, err)
	}

	got, err := e.GetSnapshot(ctx, snap.ID)
	if err != nil || got.ID != snap.ID {
		t.Fatalf("GetSnapshot = %v, %v", got, err)
	}

	if err := e.DeleteSnapshot(ctx, snap.ID, "alice"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, err := e.GetSnapshot(ctx, snap.ID); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("after delete: %v", err)
	}
}

func TestEngineDiffSnapshots(t *testing.T) {
	e, provider, _, _ := newEngine(t)
	ctx := context.Background()

	a, err := e.CreateSnapshot(ctx, BuildRequest{ResourceID: "zone-1", IncludeSecrets: true})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	provider.settings["ssl"] = "strict"
	b, err := e.CreateSnapshot(ctx, BuildRequest{ResourceID: "zone-1", IncludeSecrets: true})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	cs, err := e.DiffSnapshots(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("DiffSnapshots: %v", err)
	}
	if len(cs.Changes) != 1 || cs.Changes[0].Field != "ssl" {
		t.Fatalf("changes = %+v", cs.Changes)
	}
}

func TestEngineMergeAndRestore(t *testing.T) {
	e, provider, _, _ := newEngine(t)
	ctx := context.Background()

	a, _ := e.CreateSnapshot(ctx, BuildRequest{ResourceID: "zone-1", IncludeSecrets: true})
	provider.settings["ssl"] = "strict"
	b, _ := e.CreateSnapshot(ctx, BuildRequest{ResourceID: "zone-1", IncludeSecrets: true})

	merged, conflicts, err := e.MergeSnapshots(ctx, []string{a.ID, b.ID}, LatestWins, "combined", "alice")
	if err != nil {
		t.Fatalf("MergeSnapshots: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %+v", conflicts)
	}

	// LatestWins resolves the conflicts, so the result is restorable.
	report, err := e.RestoreSnapshot(ctx, merged.ID, "zone-1", false)
	if err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}
	if !report.Succeeded() {
		t.Fatalf("errors = %+v", report.Errors)
	}

	// A ManualOnly merge keeps its conflicts and is refused.
	stuck, _, err := e.MergeSnapshots(ctx, []string{a.ID, b.ID}, ManualOnly, "", "")
	if err != nil {
		t.Fatalf("MergeSnapshots: %v", err)
	}
	if _, err := e.RestoreSnapshot(ctx, stuck.ID, "zone-1", false); !errors.Is(err, domain.ErrConflictUnresolved) {
		t.Fatalf("restore of conflicted merge: %v", err)
	}
}

func TestEngineExportAndVerify(t *testing.T) {
	e, _, _, _ := newEngine(t)
	ctx := context.Background()

	snap, _ := e.CreateSnapshot(ctx, BuildRequest{ResourceID: "zone-1", IncludeSecrets: true})

	raw, err := e.ExportSnapshot(ctx, snap.ID, export.FormatJSON)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("empty export")
	}

	result, err := e.VerifySnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("VerifySnapshot: %v", err)
	}
	if !result.Valid {
		t.Fatalf("verify errors = %v", result.Errors)
	}
}

func TestEngineBackupAll(t *testing.T) {
	e, _, store, _ := newEngine(t)
	resources := []string{"zone-1", "zone-2", "zone-3", "zone-4"}

	results := e.BackupAll(context.Background(), resources, BuildRequest{
		Category:       domain.CategoryAutomatic,
		IncludeSecrets: false,
	})

	if len(results) != len(resources) {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if r.ResourceID != resources[i] {
			t.Errorf("result %d out of order: %s", i, r.ResourceID)
		}
		if r.Err != "" {
			t.Errorf("resource %s failed: %s", r.ResourceID, r.Err)
		}
		if r.SnapshotID == "" {
			t.Errorf("resource %s missing snapshot id", r.ResourceID)
		}
	}
	if store.Len() != len(resources) {
		t.Fatalf("stored = %d", store.Len())
	}
}

func TestEngineBulkBreakdownOnFailure(t *testing.T) {
	provider := newFakeProvider()
	store := memory.NewStore()
	e := NewEngine(EngineConfig{
		Store:    store,
		Provider: provider,
		Local:    newFakeLocal(),
	})

	// One resource's settings read always fails.
	provider.failGets = readAttempts
	provider.failWith = domain.ErrProviderTransient

	results := e.BackupAll(context.Background(), []string{"zone-1"}, BuildRequest{})
	if results[0].Err == "" {
		t.Fatal("expected per-resource failure, not a panic or partial success")
	}
}

func TestEnginePruneAll(t *testing.T) {
	e, _, store, _ := newEngine(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		snap := testSnapshot(t, "zone-1",
			time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i)*time.Hour), nil)
		if err := store.Put(ctx, snap); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	results := e.PruneAll(ctx, []string{"zone-1", "zone-empty"}, domain.RetentionPolicy{MaxCountPerResource: 1}, false)
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Deleted != 3 {
		t.Errorf("zone-1 deleted = %d, want 3", results[0].Deleted)
	}
	if results[1].Err != "" || results[1].Deleted != 0 {
		t.Errorf("empty resource should prune nothing, got %+v", results[1])
	}
}
