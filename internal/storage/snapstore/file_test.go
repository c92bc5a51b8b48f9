package snapstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/pkg/crypto/sealbox"
)

func newSnapshot(t *testing.T, resourceID string, c domain.Category, at time.Time) *domain.Snapshot {
	t.Helper()
	id, err := domain.NewSnapshotID(at)
	if err != nil {
		t.Fatalf("NewSnapshotID: %v", err)
	}
	return &domain.Snapshot{
		ID:            id,
		ResourceID:    resourceID,
		ResourceName:  "example.com",
		Status:        "active",
		Category:      c,
		CreatedAt:     at.UTC(),
		CreatedBy:     "ops@example.com",
		Description:   "pre-change backup",
		SchemaVersion: domain.SchemaVersion,
		ResourceSettings: map[string]any{
			"ssl_mode":       "full",
			"security_level": "medium",
			"minify":         map[string]any{"css": "on", "js": "off"},
		},
		LocalConfig: map[string]any{"bot_fight_mode": true},
		FirewallRules: []domain.FirewallRule{
			{Expression: `ip.src eq 203.0.113.9`, Action: "block", Description: "bad actor", Priority: 1},
		},
	}
}

func newFileStore(t *testing.T, cipher sealbox.Cipher) *FileStore {
	t.Helper()
	fs, err := NewFileStore(FileStoreConfig{Root: t.TempDir(), Cipher: cipher})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return fs
}

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t, nil)
	s := newSnapshot(t, "zone-1", domain.CategoryManual, time.Now())

	if err := fs.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := fs.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != s.ID || got.ResourceID != s.ResourceID || got.Category != s.Category {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if !domain.EqualValues(got.ResourceSettings["minify"], s.ResourceSettings["minify"]) {
		t.Fatalf("nested setting lost: %v", got.ResourceSettings["minify"])
	}
	if len(got.FirewallRules) != 1 || got.FirewallRules[0].Action != "block" {
		t.Fatalf("firewall rules lost: %+v", got.FirewallRules)
	}
}

func TestFileStore_PutIsImmutable(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t, nil)
	s := newSnapshot(t, "zone-1", domain.CategoryManual, time.Now())

	if err := fs.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Put(ctx, s); !errors.Is(err, domain.ErrSnapshotImmutable) {
		t.Fatalf("second Put = %v, want ErrSnapshotImmutable", err)
	}
}

func TestFileStore_PutRejectsInvalid(t *testing.T) {
	fs := newFileStore(t, nil)
	s := newSnapshot(t, "zone-1", domain.CategoryManual, time.Now())
	s.ResourceID = ""
	if err := fs.Put(context.Background(), s); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Put = %v, want ErrValidation", err)
	}
}

func TestFileStore_FileLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFileStore(FileStoreConfig{Root: root})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s := newSnapshot(t, "zone-1", domain.CategoryDaily, time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC))
	s.ResourceName = "shop.example.com/evil"

	if err := fs.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "daily"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 record in daily/, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "shop.example.com-evil_20260310T143000Z_") {
		t.Fatalf("unexpected record name %q", name)
	}
	if !strings.HasSuffix(name, "_"+s.ID+".json") {
		t.Fatalf("record name %q missing id suffix", name)
	}
}

func TestFileStore_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t, nil)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	oldest := newSnapshot(t, "zone-1", domain.CategoryDaily, base)
	middle := newSnapshot(t, "zone-1", domain.CategoryManual, base.Add(time.Hour))
	newest := newSnapshot(t, "zone-1", domain.CategoryDaily, base.Add(2*time.Hour))
	other := newSnapshot(t, "zone-2", domain.CategoryDaily, base.Add(3*time.Hour))

	for _, s := range []*domain.Snapshot{oldest, middle, newest, other} {
		if err := fs.Put(ctx, s); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	metas, err := fs.List(ctx, Filter{ResourceID: "zone-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("len(metas) = %d, want 3", len(metas))
	}
	if metas[0].ID != newest.ID || metas[2].ID != oldest.ID {
		t.Fatalf("listing not newest-first: %v", []string{metas[0].ID, metas[1].ID, metas[2].ID})
	}
	if metas[0].Description != "pre-change backup" || metas[0].Size == 0 {
		t.Fatalf("meta incomplete: %+v", metas[0])
	}

	daily, err := fs.List(ctx, Filter{ResourceID: "zone-1", Category: domain.CategoryDaily})
	if err != nil {
		t.Fatalf("List daily: %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("len(daily) = %d, want 2", len(daily))
	}

	limited, err := fs.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != other.ID {
		t.Fatalf("limit ignored: %+v", limited)
	}

	if _, err := fs.List(ctx, Filter{Category: "nightly"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown category = %v, want ErrValidation", err)
	}
}

func TestFileStore_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t, nil)
	s := newSnapshot(t, "zone-1", domain.CategoryManual, time.Now())

	if err := fs.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := fs.Delete(ctx, s.ID); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("second Delete = %v, want ErrSnapshotNotFound", err)
	}
	if _, err := fs.Get(ctx, s.ID); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("Get after delete = %v, want ErrSnapshotNotFound", err)
	}
}

func TestFileStore_SealedRoundTrip(t *testing.T) {
	ctx := context.Background()
	key := make([]byte, sealbox.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := sealbox.New(key)
	if err != nil {
		t.Fatalf("sealbox.New: %v", err)
	}

	root := t.TempDir()
	fs, err := NewFileStore(FileStoreConfig{Root: root, Cipher: cipher})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	s := newSnapshot(t, "zone-1", domain.CategoryManual, time.Now())
	if err := fs.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// On-disk record must not leak setting values.
	entries, _ := os.ReadDir(filepath.Join(root, "manual"))
	if len(entries) != 1 {
		t.Fatalf("expected 1 sealed record, got %d", len(entries))
	}
	rawDisk, _ := os.ReadFile(filepath.Join(root, "manual", entries[0].Name()))
	if strings.Contains(string(rawDisk), "ssl_mode") {
		t.Fatal("sealed record leaks settings")
	}
	if !strings.Contains(string(rawDisk), s.ID) {
		t.Fatal("sealed record hides metadata")
	}

	got, err := fs.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ResourceSettings["ssl_mode"] != "full" {
		t.Fatalf("unsealed settings wrong: %v", got.ResourceSettings)
	}

	// GetRaw yields verifiable plaintext even for sealed records.
	raw, err := fs.GetRaw(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetRaw: %v", err)
	}
	if res := Verify(raw); !res.Valid {
		t.Fatalf("Verify(unsealed) invalid: %v", res.Errors)
	}

	// Listings work without touching the sealed payload.
	metas, err := fs.List(ctx, Filter{ResourceID: "zone-1"})
	if err != nil || len(metas) != 1 {
		t.Fatalf("List sealed = %v, %v", metas, err)
	}
}

func TestFileStore_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	fs := newFileStore(t, nil)

	const n = 8
	snaps := make([]*domain.Snapshot, n)
	for i := range snaps {
		snaps[i] = newSnapshot(t, "zone-1", domain.CategoryAutomatic, time.Now().Add(time.Duration(i)*time.Millisecond))
	}
	errs := make(chan error, n)
	for _, s := range snaps {
		go func(s *domain.Snapshot) {
			errs <- fs.Put(ctx, s)
		}(s)
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent Put: %v", err)
		}
	}
	metas, err := fs.List(ctx, Filter{ResourceID: "zone-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != n {
		t.Fatalf("len(metas) = %d, want %d", len(metas), n)
	}
}
