package service

import (
	"context"
	"errors"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/localconf"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
)

// Read retry budget: 3 attempts with exponential backoff starting at 200ms.
const (
	readAttempts    = 3
	readBackoffBase = 200 * time.Millisecond
)

// BuilderService captures a resource's live configuration into a new
// snapshot.
type BuilderService struct {
	provider SettingsProvider
	local    LocalConfigStore
	store    snapstore.Store
	recorder audit.Recorder
	logger   logger.Logger
	now      func() time.Time
}

// NewBuilderService creates a BuilderService.
func NewBuilderService(provider SettingsProvider, local LocalConfigStore, store snapstore.Store, recorder audit.Recorder, log logger.Logger) *BuilderService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &BuilderService{
		provider: provider,
		local:    local,
		store:    store,
		recorder: recorder,
		logger:   log.With("component", "builder"),
		now:      time.Now,
	}
}

// BuildRequest contains parameters for snapshot creation.
type BuildRequest struct {
	ResourceID  string // Required
	Category    domain.Category
	Description string
	CreatedBy   string // empty for system-triggered snapshots
	// IncludeSecrets keeps secret-bearing setting values. When false they
	// are replaced with the redaction marker and never retained.
	IncludeSecrets bool
}

// Build captures, assembles, and persists one snapshot. The provider and
// local reads run concurrently; each carries its own retry budget. Exactly
// one audit entry is emitted on success, none on failure.
func (s *BuilderService) Build(ctx context.Context, req BuildRequest) (*domain.Snapshot, error) {
	if req.ResourceID == "" {
		return nil, domain.ErrValidation.WithDetails("resource id is required")
	}
	if req.Category == "" {
		req.Category = domain.CategoryManual
	}
	if !req.Category.Valid() {
		return nil, domain.ErrValidation.WithDetails("unknown category " + string(req.Category))
	}

	bundle, local, err := s.readCollaborators(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}

	settings := bundle.Settings
	if !req.IncludeSecrets {
		settings = redactSecrets(settings)
	}

	createdAt := s.now().UTC()
	id, err := domain.NewSnapshotID(createdAt)
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		ID:               id,
		ResourceID:       bundle.Resource.ID,
		ResourceName:     bundle.Resource.Name,
		Status:           bundle.Resource.Status,
		Category:         req.Category,
		CreatedAt:        createdAt,
		CreatedBy:        req.CreatedBy,
		Description:      req.Description,
		SchemaVersion:    domain.SchemaVersion,
		ResourceSettings: settings,
		LocalConfig:      local.Fields,
		FirewallRules:    local.FirewallRules,
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if unknown := snap.UnknownKeys(); len(unknown) > 0 {
		s.logger.Warn("snapshot carries unrecognized keys",
			"snapshot_id", snap.ID, "keys", unknown)
	}

	if err := s.store.Put(ctx, snap); err != nil {
		return nil, err
	}

	if err := s.recorder.Record(ctx, audit.Entry{
		Action:     audit.ActionSnapshotCreate,
		ResourceID: snap.ResourceID,
		SnapshotID: snap.ID,
		Actor:      req.CreatedBy,
		Details:    map[string]any{"category": string(snap.Category)},
	}); err != nil {
		s.logger.Warn("audit record failed", "snapshot_id", snap.ID, "error", err)
	}

	s.logger.Info("snapshot created",
		"snapshot_id", snap.ID,
		"resource_id", snap.ResourceID,
		"category", snap.Category)
	return snap, nil
}

// readCollaborators fetches provider settings and local config concurrently.
func (s *BuilderService) readCollaborators(ctx context.Context, resourceID string) (domain.SettingsBundle, domain.LocalConfig, error) {
	type providerResult struct {
		bundle domain.SettingsBundle
		err    error
	}
	type localResult struct {
		cfg domain.LocalConfig
		err error
	}

	provCh := make(chan providerResult, 1)
	localCh := make(chan localResult, 1)

	go func() {
		var bundle domain.SettingsBundle
		err := withRetry(ctx, func() error {
			resource, err := s.provider.GetResource(ctx, resourceID)
			if err != nil {
				return err
			}
			settings, err := s.provider.GetSettings(ctx, resourceID)
			if err != nil {
				return err
			}
			bundle = domain.SettingsBundle{Resource: resource, Settings: settings}
			return nil
		})
		provCh <- providerResult{bundle: bundle, err: err}
	}()

	go func() {
		var cfg domain.LocalConfig
		err := withRetry(ctx, func() error {
			loaded, err := s.local.Load(ctx, resourceID)
			if errors.Is(err, localconf.ErrNotFound) {
				// First snapshot of the resource: no local config yet.
				loaded = domain.LocalConfig{}
				err = nil
			}
			cfg = loaded
			return err
		})
		localCh <- localResult{cfg: cfg, err: err}
	}()

	prov := <-provCh
	loc := <-localCh

	if prov.err != nil {
		return domain.SettingsBundle{}, domain.LocalConfig{}, prov.err
	}
	if loc.err != nil {
		return domain.SettingsBundle{}, domain.LocalConfig{}, loc.err
	}
	return prov.bundle, loc.cfg, nil
}

// withRetry runs fn under the read retry budget. Only transient failures
// are retried; the budget exhausting converts the last failure into
// upstream-unavailable.
func withRetry(ctx context.Context, fn func() error) error {
	backoff := readBackoffBase
	var lastErr error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !domain.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == readAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.ErrUpstreamUnavailable.WithCause(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return domain.ErrUpstreamUnavailable.WithCause(lastErr)
}

// redactSecrets replaces secret-bearing values, dropping the originals.
func redactSecrets(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		if domain.IsSecretSetting(k) {
			out[k] = domain.RedactedValue
			continue
		}
		out[k] = v
	}
	return out
}
