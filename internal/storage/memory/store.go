// Package memory provides an in-memory snapshot store for tests and
// embedding. It honors the same append-only contract as the file store:
// Put rejects duplicate ids and stored snapshots are never mutated.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/storage/snapstore"
)

// Store keeps encoded snapshots in a map guarded by one RWMutex.
type Store struct {
	mu    sync.RWMutex
	items map[string]*entry
}

type entry struct {
	snapshot *domain.Snapshot
	raw      []byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{items: map[string]*entry{}}
}

// Put persists a snapshot. The stored copy is cloned and encoded up front
// so later mutations of the caller's value cannot leak in.
func (s *Store) Put(_ context.Context, snap *domain.Snapshot) error {
	raw, err := snapstore.Encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[snap.ID]; exists {
		return domain.ErrSnapshotImmutable.WithDetails(snap.ID)
	}
	s.items[snap.ID] = &entry{snapshot: snap.Clone(), raw: raw}
	return nil
}

// Get loads a full snapshot by id.
func (s *Store) Get(_ context.Context, id string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return nil, domain.ErrSnapshotNotFound.WithDetails(id)
	}
	return e.snapshot.Clone(), nil
}

// GetRaw returns the wire bytes of a stored snapshot.
func (s *Store) GetRaw(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return nil, domain.ErrSnapshotNotFound.WithDetails(id)
	}
	raw := make([]byte, len(e.raw))
	copy(raw, e.raw)
	return raw, nil
}

// List returns matching metadata, newest first with id as tiebreaker.
func (s *Store) List(_ context.Context, f snapstore.Filter) ([]snapstore.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]snapstore.Meta, 0, len(s.items))
	for _, e := range s.items {
		snap := e.snapshot
		if f.ResourceID != "" && snap.ResourceID != f.ResourceID {
			continue
		}
		if f.Category != "" && snap.Category != f.Category {
			continue
		}
		metas = append(metas, snapstore.Meta{
			ID:           snap.ID,
			ResourceID:   snap.ResourceID,
			ResourceName: snap.ResourceName,
			Category:     snap.Category,
			CreatedAt:    snap.CreatedAt,
			Description:  snap.Description,
			Size:         int64(len(e.raw)),
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		if !metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].CreatedAt.After(metas[j].CreatedAt)
		}
		return metas[i].ID > metas[j].ID
	})
	if f.Limit > 0 && len(metas) > f.Limit {
		metas = metas[:f.Limit]
	}
	return metas, nil
}

// Len reports how many snapshots the store currently holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Delete removes a snapshot by id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domain.ErrSnapshotNotFound.WithDetails(id)
	}
	delete(s.items, id)
	return nil
}
