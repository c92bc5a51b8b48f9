package service

import (
	"context"
	"sync"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/localconf"
)

// fakeProvider is an in-memory settings provider with scriptable failures.
type fakeProvider struct {
	mu sync.Mutex

	resource domain.Resource
	settings map[string]any

	// failGets makes the next N GetSettings calls fail with failWith.
	failGets int
	failWith error

	// failKeys makes ApplySetting fail for the listed keys.
	failKeys map[string]error

	applied      []appliedSetting
	createdRules []domain.FirewallRule
	getCalls     int
	applyCalls   int
}

type appliedSetting struct {
	resourceID string
	key        string
	value      any
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		resource: domain.Resource{ID: "zone-1", Name: "shop.example.com", Status: "active"},
		settings: map[string]any{
			"ssl":            "full",
			"security_level": "high",
			"origin_ca_key":  "v1.0-secret-material",
		},
		failKeys: map[string]error{},
	}
}

func (f *fakeProvider) GetResource(ctx context.Context, resourceID string) (domain.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.resource
	r.ID = resourceID
	return r, nil
}

func (f *fakeProvider) GetSettings(ctx context.Context, resourceID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGets > 0 {
		f.failGets--
		return nil, f.failWith
	}
	out := make(map[string]any, len(f.settings))
	for k, v := range f.settings {
		out[k] = v
	}
	return out, nil
}

func (f *fakeProvider) ApplySetting(ctx context.Context, resourceID, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	if err, ok := f.failKeys[key]; ok {
		return err
	}
	f.applied = append(f.applied, appliedSetting{resourceID: resourceID, key: key, value: value})
	return nil
}

func (f *fakeProvider) CreateFirewallRule(ctx context.Context, resourceID string, rule domain.FirewallRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdRules = append(f.createdRules, rule)
	return nil
}

// fakeLocal is an in-memory local config store.
type fakeLocal struct {
	mu      sync.Mutex
	configs map[string]domain.LocalConfig
	saves   int
	loads   int
	saveErr error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{configs: map[string]domain.LocalConfig{
		"zone-1": {
			Fields: map[string]any{"bot_fight_mode": true},
			FirewallRules: []domain.FirewallRule{
				{Expression: `ip.src eq 9.9.9.9`, Action: "challenge", Priority: 1},
			},
		},
	}}
}

func (f *fakeLocal) Load(ctx context.Context, resourceID string) (domain.LocalConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	cfg, ok := f.configs[resourceID]
	if !ok {
		return domain.LocalConfig{}, localconf.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeLocal) Save(ctx context.Context, resourceID string, cfg domain.LocalConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.configs[resourceID] = cfg
	return nil
}

// captureRecorder collects audit entries.
type captureRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *captureRecorder) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *captureRecorder) byAction(action string) []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for _, e := range r.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// testSnapshot builds a minimal valid snapshot for direct store puts.
func testSnapshot(tb interface{ Fatalf(string, ...any) }, resourceID string, createdAt time.Time, settings map[string]any) *domain.Snapshot {
	id, err := domain.NewSnapshotID(createdAt)
	if err != nil {
		tb.Fatalf("new id: %v", err)
	}
	if settings == nil {
		settings = map[string]any{"ssl": "full"}
	}
	return &domain.Snapshot{
		ID:               id,
		ResourceID:       resourceID,
		ResourceName:     "shop.example.com",
		Category:         domain.CategoryManual,
		CreatedAt:        createdAt,
		SchemaVersion:    domain.SchemaVersion,
		ResourceSettings: settings,
	}
}
