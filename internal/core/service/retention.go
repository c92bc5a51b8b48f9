package service

import (
	"context"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/audit"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
)

// PruneReport describes one retention pass.
type PruneReport struct {
	ResourceID string           `json:"resourceId"`
	DryRun     bool             `json:"dryRun"`
	Examined   int              `json:"examined"`
	Deleted    []snapstore.Meta `json:"deleted"`
	// Failed lists snapshots the store refused to delete; the pass
	// continues past individual failures.
	Failed []PruneFailure `json:"failed,omitempty"`
}

// PruneFailure is one snapshot that could not be deleted.
type PruneFailure struct {
	SnapshotID string `json:"snapshotId"`
	Message    string `json:"message"`
}

// RetentionService enforces age and count limits on stored snapshots.
type RetentionService struct {
	store    snapstore.Store
	recorder audit.Recorder
	logger   logger.Logger
	now      func() time.Time
}

// NewRetentionService creates a RetentionService.
func NewRetentionService(store snapstore.Store, recorder audit.Recorder, log logger.Logger) *RetentionService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &RetentionService{
		store:    store,
		recorder: recorder,
		logger:   log.With("component", "retention"),
		now:      time.Now,
	}
}

// Prune deletes the resource's snapshots that fall outside the policy.
// Listings arrive newest-first, so a snapshot is marked when its index
// exceeds the count limit or its age exceeds the age limit; a snapshot
// matching both is deleted once. Protected categories are skipped and do
// not consume count-limit slots. dryRun computes the exact deletion set
// without deleting.
func (s *RetentionService) Prune(ctx context.Context, resourceID string, policy domain.RetentionPolicy, dryRun bool) (PruneReport, error) {
	if resourceID == "" {
		return PruneReport{}, domain.ErrValidation.WithDetails("resource id is required")
	}
	if err := policy.Validate(); err != nil {
		return PruneReport{}, err
	}

	metas, err := s.store.List(ctx, snapstore.Filter{ResourceID: resourceID})
	if err != nil {
		return PruneReport{}, err
	}

	report := PruneReport{
		ResourceID: resourceID,
		DryRun:     dryRun,
		Examined:   len(metas),
	}

	cutoff := policy.AgeCutoff(s.now().UTC())
	kept := 0
	for _, meta := range metas {
		if policy.Protected(meta.Category) {
			continue
		}

		tooMany := policy.MaxCountPerResource > 0 && kept >= policy.MaxCountPerResource
		tooOld := !cutoff.IsZero() && meta.CreatedAt.Before(cutoff)
		if !tooMany && !tooOld {
			kept++
			continue
		}

		if !dryRun {
			if err := s.store.Delete(ctx, meta.ID); err != nil {
				report.Failed = append(report.Failed, PruneFailure{
					SnapshotID: meta.ID, Message: err.Error(),
				})
				continue
			}
		}
		report.Deleted = append(report.Deleted, meta)
	}

	if !dryRun && len(report.Deleted) > 0 {
		if err := s.recorder.Record(ctx, audit.Entry{
			Action:     audit.ActionPrune,
			ResourceID: resourceID,
			Details: map[string]any{
				"deleted":  len(report.Deleted),
				"examined": report.Examined,
			},
		}); err != nil {
			s.logger.Warn("audit record failed", "resource_id", resourceID, "error", err)
		}
	}

	s.logger.Info("retention prune finished",
		"resource_id", resourceID,
		"dry_run", dryRun,
		"examined", report.Examined,
		"deleted", len(report.Deleted))
	return report, nil
}
