package snapstore

import (
	"context"
	"time"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
)

// Meta is the listing view of a stored snapshot. Listings never materialize
// full snapshot bodies.
type Meta struct {
	ID           string          `json:"id"`
	ResourceID   string          `json:"resource_id"`
	ResourceName string          `json:"resource_name"`
	Category     domain.Category `json:"category"`
	CreatedAt    time.Time       `json:"created_at"`
	Description  string          `json:"description,omitempty"`
	Size         int64           `json:"size"`
}

// Filter narrows a listing. Zero values match everything; Limit 0 means
// unlimited.
type Filter struct {
	ResourceID string
	Category   domain.Category
	Limit      int
}

// Store is the durable snapshot repository. Implementations are append-only:
// Put never overwrites, and ids are never reused, so concurrent Put calls for
// distinct ids cannot interfere.
type Store interface {
	// Put persists a snapshot atomically. Rejects duplicates of an existing id.
	Put(ctx context.Context, s *domain.Snapshot) error

	// Get loads a full snapshot by id.
	Get(ctx context.Context, id string) (*domain.Snapshot, error)

	// GetRaw returns the plaintext wire bytes of a stored snapshot, for
	// verification and export.
	GetRaw(ctx context.Context, id string) ([]byte, error)

	// List returns metadata for matching snapshots, newest first.
	List(ctx context.Context, f Filter) ([]Meta, error)

	// Delete removes a snapshot by id.
	Delete(ctx context.Context, id string) error
}
