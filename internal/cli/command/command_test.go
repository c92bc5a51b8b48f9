package command

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
)

func TestSnapshotCreateAndList(t *testing.T) {
	a := newTestApp(t)
	a.mustRun(t, "snapshot", "create", "--description", "before change", "zone-1")

	got := a.mustRun(t, "snapshot", "list")
	if !strings.Contains(got, "zone-1") || !strings.Contains(got, "manual") {
		t.Errorf("listing missing created snapshot:\n%s", got)
	}
	if !strings.Contains(got, "before change") {
		t.Errorf("listing missing description:\n%s", got)
	}
}

func TestSnapshotCreateRequiresZone(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.run(t, "snapshot", "create"); err == nil {
		t.Fatal("expected error without zone argument")
	}
}

func TestSnapshotCreateBulk(t *testing.T) {
	a := newTestApp(t)
	got := a.mustRun(t, "snapshot", "create", "zone-1", "zone-2")
	if !strings.Contains(got, "zone-1") || !strings.Contains(got, "zone-2") {
		t.Errorf("bulk output missing zones:\n%s", got)
	}

	metas, err := a.engine.ListSnapshots(context.Background(), snapstore.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(metas))
	}
}

func TestSnapshotCreateBulkPartialFailureExitsNonZero(t *testing.T) {
	a := newTestApp(t)
	_, err := a.run(t, "snapshot", "create", "zone-1", "zone-missing")
	if err == nil {
		t.Fatal("expected exit error for failed zone")
	}
	// The healthy zone must still have been captured.
	metas, err := a.engine.ListSnapshots(context.Background(), snapstore.Filter{ResourceID: "zone-1"})
	if err != nil || len(metas) != 1 {
		t.Fatalf("healthy zone not captured: %v (%d metas)", err, len(metas))
	}
}

func TestSnapshotGetJSON(t *testing.T) {
	a := newTestApp(t)
	id := a.createSnapshot(t, "zone-1")

	got := a.mustRun(t, "-o", "json", "snapshot", "get", id)
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(got), &snap); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, got)
	}
	if snap.ID != id || snap.ResourceID != "zone-1" {
		t.Errorf("got snapshot %s/%s", snap.ID, snap.ResourceID)
	}
}

func TestSnapshotDelete(t *testing.T) {
	a := newTestApp(t)
	id := a.createSnapshot(t, "zone-1")

	got := a.mustRun(t, "snapshot", "delete", id)
	if !strings.Contains(got, "deleted "+id) {
		t.Errorf("delete output = %q", got)
	}
	if _, err := a.engine.GetSnapshot(context.Background(), id); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("snapshot still loadable after delete: %v", err)
	}
}

func TestSnapshotVerify(t *testing.T) {
	a := newTestApp(t)
	id := a.createSnapshot(t, "zone-1")

	got := a.mustRun(t, "snapshot", "verify", id)
	if !strings.Contains(got, `"valid": true`) {
		t.Errorf("verify output = %q", got)
	}
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	a := newTestApp(t)
	idA := a.createSnapshot(t, "zone-1")
	idB := a.createSnapshot(t, "zone-1")

	got := a.mustRun(t, "diff", idA, idB)
	if !strings.Contains(got, "identical") {
		t.Errorf("diff output = %q", got)
	}
}

func TestDiffShowsModifiedSetting(t *testing.T) {
	a := newTestApp(t)
	idA := a.createSnapshot(t, "zone-1")
	a.provider.settings["zone-1"]["ssl"] = "strict"
	idB := a.createSnapshot(t, "zone-1")

	got := a.mustRun(t, "diff", idA, idB)
	if !strings.Contains(got, "modified") || !strings.Contains(got, "ssl") {
		t.Errorf("diff output missing modification:\n%s", got)
	}
	if !strings.Contains(got, "full") || !strings.Contains(got, "strict") {
		t.Errorf("diff output missing values:\n%s", got)
	}
}

func TestMergeReportsConflicts(t *testing.T) {
	a := newTestApp(t)
	idA := a.createSnapshot(t, "zone-1")
	a.provider.settings["zone-1"]["ssl"] = "strict"
	idB := a.createSnapshot(t, "zone-1")

	got := a.mustRun(t, "merge", "--strategy", "manual_only", idA, idB)
	if !strings.Contains(got, "1 conflicting fields") {
		t.Errorf("merge output missing conflicts:\n%s", got)
	}
	if !strings.Contains(got, "cannot be restored") {
		t.Errorf("merge output missing manual-only warning:\n%s", got)
	}
}

func TestMergeJSONResult(t *testing.T) {
	a := newTestApp(t)
	idA := a.createSnapshot(t, "zone-1")
	idB := a.createSnapshot(t, "zone-1")

	got := a.mustRun(t, "-o", "json", "merge", idA, idB)
	var result struct {
		SnapshotID string   `json:"snapshotId"`
		MergedFrom []string `json:"mergedFrom"`
	}
	if err := json.Unmarshal([]byte(got), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, got)
	}
	if len(result.MergedFrom) != 2 || result.SnapshotID == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestRestoreDryRun(t *testing.T) {
	a := newTestApp(t)
	id := a.createSnapshot(t, "zone-1")
	a.provider.settings["zone-1"]["ssl"] = "off"

	got := a.mustRun(t, "restore", "--dry-run", id)
	if !strings.Contains(got, "would_apply") {
		t.Errorf("dry-run output = %q", got)
	}
	if a.provider.applied != 0 {
		t.Errorf("dry run wrote %d settings", a.provider.applied)
	}
}

func TestRestoreAppliesSettings(t *testing.T) {
	a := newTestApp(t)
	id := a.createSnapshot(t, "zone-1")
	a.provider.settings["zone-1"]["ssl"] = "off"

	a.mustRun(t, "restore", id)
	if got := a.provider.settings["zone-1"]["ssl"]; got != "full" {
		t.Errorf("ssl after restore = %v, want full", got)
	}
}

func TestPruneDryRun(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < 3; i++ {
		a.createSnapshot(t, "zone-1")
	}

	got := a.mustRun(t, "prune", "--max-count", "1", "--dry-run", "zone-1")
	if !strings.Contains(got, "would delete 2") {
		t.Errorf("prune dry-run output = %q", got)
	}
	metas, _ := a.engine.ListSnapshots(context.Background(), snapstore.Filter{ResourceID: "zone-1"})
	if len(metas) != 3 {
		t.Errorf("dry run deleted snapshots: %d left", len(metas))
	}
}

func TestPruneDeletes(t *testing.T) {
	a := newTestApp(t)
	for i := 0; i < 3; i++ {
		a.createSnapshot(t, "zone-1")
	}

	a.mustRun(t, "prune", "--max-count", "1", "zone-1")
	metas, _ := a.engine.ListSnapshots(context.Background(), snapstore.Filter{ResourceID: "zone-1"})
	if len(metas) != 1 {
		t.Errorf("got %d snapshots after prune, want 1", len(metas))
	}
}

func TestExportToFile(t *testing.T) {
	a := newTestApp(t)
	id := a.createSnapshot(t, "zone-1")
	path := filepath.Join(t.TempDir(), "snap.yaml")

	a.mustRun(t, "export", "--format", "yaml", "--out", path, id)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "resourceSettings") {
		t.Errorf("export missing settings section:\n%s", data)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	a := newTestApp(t)
	id := a.createSnapshot(t, "zone-1")
	if _, err := a.run(t, "export", "--format", "toml", id); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	a := newTestApp(t)
	a.rt.Config.Provider.APIToken = "super-secret-token"

	got := a.mustRun(t, "config", "show")
	if strings.Contains(got, "super-secret-token") {
		t.Errorf("config show leaked the API token:\n%s", got)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	a := newTestApp(t)
	a.createSnapshot(t, "zone-1")
	if _, err := a.run(t, "-o", "tsv", "snapshot", "list"); err == nil {
		t.Fatal("expected unknown output format error")
	}
}
