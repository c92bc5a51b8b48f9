package command

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/service"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/server/config"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
)

// stubProvider serves canned zone data so commands can run without a
// network.
type stubProvider struct {
	mu       sync.Mutex
	settings map[string]map[string]any
	applied  int
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		settings: map[string]map[string]any{
			"zone-1": {"ssl": "full", "security_level": "high"},
			"zone-2": {"ssl": "flexible", "security_level": "medium"},
		},
	}
}

func (p *stubProvider) GetResource(_ context.Context, resourceID string) (domain.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.settings[resourceID]; !ok {
		return domain.Resource{}, domain.ErrProviderNotFound.WithDetails(resourceID)
	}
	return domain.Resource{ID: resourceID, Name: resourceID + ".example.com", Status: "active"}, nil
}

func (p *stubProvider) GetSettings(_ context.Context, resourceID string) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.settings[resourceID]
	if !ok {
		return nil, domain.ErrProviderNotFound.WithDetails(resourceID)
	}
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

func (p *stubProvider) ApplySetting(_ context.Context, resourceID, key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.settings[resourceID]; ok {
		s[key] = value
	}
	p.applied++
	return nil
}

func (p *stubProvider) CreateFirewallRule(_ context.Context, resourceID string, rule domain.FirewallRule) error {
	return nil
}

// stubLocal is an in-memory local configuration store.
type stubLocal struct {
	mu      sync.Mutex
	configs map[string]domain.LocalConfig
}

func newStubLocal() *stubLocal {
	return &stubLocal{configs: map[string]domain.LocalConfig{}}
}

func (l *stubLocal) Load(_ context.Context, resourceID string) (domain.LocalConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.configs[resourceID], nil
}

func (l *stubLocal) Save(_ context.Context, resourceID string, cfg domain.LocalConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[resourceID] = cfg
	return nil
}

// testApp wires the CLI app against a file store in a temp directory and
// the stubs above, and captures command output.
type testApp struct {
	app      *cli.App
	out      *bytes.Buffer
	provider *stubProvider
	engine   *service.Engine
	rt       *Runtime
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store, err := snapstore.NewFileStore(snapstore.FileStoreConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	provider := newStubProvider()
	engine := service.NewEngine(service.EngineConfig{
		Store:    store,
		Provider: provider,
		Local:    newStubLocal(),
		Recorder: audit.Nop{},
	})
	rt := &Runtime{Engine: engine, Config: config.Default()}

	out := &bytes.Buffer{}
	app := App()
	app.Writer = out
	app.ErrWriter = out
	// Keep exit-coded errors as returned errors instead of os.Exit.
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Metadata[metaFactory] = RuntimeFactory(func(c *cli.Context) (*Runtime, error) {
		return rt, nil
	})
	return &testApp{app: app, out: out, provider: provider, engine: engine, rt: rt}
}

// run executes the CLI with the given arguments and returns its output.
func (a *testApp) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a.out.Reset()
	err := a.app.Run(append([]string{"cfsm-cli"}, args...))
	return a.out.String(), err
}

// mustRun fails the test if the command errors.
func (a *testApp) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	got, err := a.run(t, args...)
	if err != nil {
		t.Fatalf("run %v: %v\noutput: %s", args, err, got)
	}
	return got
}

// createSnapshot runs snapshot create and returns the new snapshot ID.
func (a *testApp) createSnapshot(t *testing.T, zone string, extra ...string) string {
	t.Helper()
	args := append([]string{"snapshot", "create"}, extra...)
	a.mustRun(t, append(args, zone)...)

	metas, err := a.engine.ListSnapshots(context.Background(), snapstore.Filter{ResourceID: zone, Limit: 1})
	if err != nil || len(metas) == 0 {
		t.Fatalf("list after create: %v (%d metas)", err, len(metas))
	}
	return metas[0].ID
}
