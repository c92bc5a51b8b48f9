package service

import (
	"context"
	"fmt"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
)

// Restore change statuses.
const (
	StatusApplied       = "applied"
	StatusWouldApply    = "would_apply"
	StatusSkippedRedact = "skipped_redacted"
)

// RestoreChange is one intended or performed write.
type RestoreChange struct {
	Field  string `json:"field"`
	Value  any    `json:"value"`
	Status string `json:"status"`
}

// RestoreError is one field that failed to apply.
type RestoreError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RestoreReport is the per-field outcome of a restore run. A non-empty
// Errors list is partial success, not failure: the caller must inspect it.
type RestoreReport struct {
	SnapshotID string          `json:"snapshotId"`
	ResourceID string          `json:"resourceId"`
	DryRun     bool            `json:"dryRun"`
	Changes    []RestoreChange `json:"changes"`
	Errors     []RestoreError  `json:"errors"`
}

// Succeeded reports whether every field applied cleanly.
func (r RestoreReport) Succeeded() bool {
	return len(r.Errors) == 0
}

// RestoreService applies a stored snapshot back to the live resource.
type RestoreService struct {
	store    snapstore.Store
	provider SettingsProvider
	local    LocalConfigStore
	recorder audit.Recorder
	logger   logger.Logger

	// pacing is the delay between consecutive provider writes, respecting
	// upstream rate limits. The pause blocks only the calling task.
	pacing time.Duration
}

// NewRestoreService creates a RestoreService.
func NewRestoreService(store snapstore.Store, provider SettingsProvider, local LocalConfigStore, recorder audit.Recorder, log logger.Logger, pacing time.Duration) *RestoreService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &RestoreService{
		store:    store,
		provider: provider,
		local:    local,
		recorder: recorder,
		logger:   log.With("component", "restorer"),
		pacing:   pacing,
	}
}

// Restore applies the snapshot's settings to resourceID. Preconditions
// (snapshot exists, is restorable, target named) fail fast before any
// write. After that, one failing field never aborts the rest; failures
// land in the report. Cancellation mid-flight leaves applied fields
// applied; there is no rollback.
func (s *RestoreService) Restore(ctx context.Context, snapshotID, resourceID string, dryRun bool) (RestoreReport, error) {
	snap, err := s.store.Get(ctx, snapshotID)
	if err != nil {
		return RestoreReport{}, err
	}
	if resourceID == "" {
		resourceID = snap.ResourceID
	}
	if err := snap.Restorable(); err != nil {
		return RestoreReport{}, err
	}

	report := RestoreReport{
		SnapshotID: snap.ID,
		ResourceID: resourceID,
		DryRun:     dryRun,
	}

	s.applySettings(ctx, snap, resourceID, dryRun, &report)
	s.applyRules(ctx, snap, resourceID, dryRun, &report)
	s.applyLocal(ctx, snap, resourceID, dryRun, &report)

	if !dryRun {
		if err := s.recorder.Record(ctx, audit.Entry{
			Action:     audit.ActionRestore,
			ResourceID: resourceID,
			SnapshotID: snap.ID,
			Details: map[string]any{
				"applied": len(report.Changes),
				"failed":  len(report.Errors),
			},
		}); err != nil {
			s.logger.Warn("audit record failed", "snapshot_id", snap.ID, "error", err)
		}
	}

	s.logger.Info("restore finished",
		"snapshot_id", snap.ID,
		"resource_id", resourceID,
		"dry_run", dryRun,
		"changes", len(report.Changes),
		"errors", len(report.Errors))
	return report, nil
}

func (s *RestoreService) applySettings(ctx context.Context, snap *domain.Snapshot, resourceID string, dryRun bool, report *RestoreReport) {
	first := true
	for _, key := range snap.SettingKeys() {
		value := snap.ResourceSettings[key]
		field := domain.FieldKeySettings(key)

		// A redacted value must never reach the provider.
		if str, ok := value.(string); ok && str == domain.RedactedValue {
			report.Changes = append(report.Changes, RestoreChange{
				Field: field, Value: value, Status: StatusSkippedRedact,
			})
			continue
		}

		if dryRun {
			report.Changes = append(report.Changes, RestoreChange{
				Field: field, Value: value, Status: StatusWouldApply,
			})
			continue
		}

		if !first {
			if !s.pause(ctx, report, field) {
				return
			}
		}
		first = false

		if err := s.provider.ApplySetting(ctx, resourceID, key, value); err != nil {
			report.Errors = append(report.Errors, RestoreError{Field: field, Message: err.Error()})
			continue
		}
		report.Changes = append(report.Changes, RestoreChange{
			Field: field, Value: value, Status: StatusApplied,
		})
	}
}

// applyRules creates the snapshot's firewall rules as new rules on the
// target. Restore never deletes pre-existing rules; each created rule is
// tagged as restored so operators can tell clones from originals.
func (s *RestoreService) applyRules(ctx context.Context, snap *domain.Snapshot, resourceID string, dryRun bool, report *RestoreReport) {
	for _, rule := range snap.FirewallRules {
		field := domain.FieldKeyRule(rule)

		if dryRun {
			report.Changes = append(report.Changes, RestoreChange{
				Field: field, Value: rule, Status: StatusWouldApply,
			})
			continue
		}

		if !s.pause(ctx, report, field) {
			return
		}

		tagged := rule
		tagged.Description = restoredDescription(rule.Description, snap.ID)
		if err := s.provider.CreateFirewallRule(ctx, resourceID, tagged); err != nil {
			report.Errors = append(report.Errors, RestoreError{Field: field, Message: err.Error()})
			continue
		}
		report.Changes = append(report.Changes, RestoreChange{
			Field: field, Value: tagged, Status: StatusApplied,
		})
	}
}

// applyLocal writes the local config in a single call after all provider
// writes completed. The local store is transactional per resource.
func (s *RestoreService) applyLocal(ctx context.Context, snap *domain.Snapshot, resourceID string, dryRun bool, report *RestoreReport) {
	if len(snap.LocalConfig) == 0 && len(snap.FirewallRules) == 0 {
		return
	}
	if !dryRun && ctx.Err() != nil {
		report.Errors = append(report.Errors, RestoreError{
			Field:   "local",
			Message: "restore cancelled: " + ctx.Err().Error(),
		})
		return
	}

	if dryRun {
		report.Changes = append(report.Changes, RestoreChange{
			Field: "local", Value: snap.LocalConfig, Status: StatusWouldApply,
		})
		return
	}

	cfg := domain.LocalConfig{
		Fields:        snap.LocalConfig,
		FirewallRules: snap.FirewallRules,
	}
	if err := s.local.Save(ctx, resourceID, cfg); err != nil {
		report.Errors = append(report.Errors, RestoreError{Field: "local", Message: err.Error()})
		return
	}
	report.Changes = append(report.Changes, RestoreChange{
		Field: "local", Value: snap.LocalConfig, Status: StatusApplied,
	})
}

// pause blocks for the pacing interval. Returns false when the context is
// cancelled, after recording the abandonment in the report.
func (s *RestoreService) pause(ctx context.Context, report *RestoreReport, nextField string) bool {
	if s.pacing <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		report.Errors = append(report.Errors, RestoreError{
			Field:   nextField,
			Message: "restore cancelled: " + ctx.Err().Error(),
		})
		return false
	case <-time.After(s.pacing):
		return true
	}
}

func restoredDescription(original, snapshotID string) string {
	if original == "" {
		return fmt.Sprintf("restored from %s", snapshotID)
	}
	return fmt.Sprintf("%s (restored from %s)", original, snapshotID)
}
