package domain

import (
	"fmt"
	"time"
)

// RetentionPolicy governs automatic snapshot deletion. It is a configuration
// value supplied per invocation, not persisted state. A zero limit disables
// that rule.
type RetentionPolicy struct {
	// MaxAgeDays deletes snapshots older than now - MaxAgeDays.
	MaxAgeDays int

	// MaxCountPerResource keeps only the newest N snapshots per resource.
	MaxCountPerResource int

	// ProtectCategories exempts the listed categories from pruning.
	// Default empty: manual snapshots are pruned like any other.
	ProtectCategories []Category
}

// Validate rejects nonsensical policies before any side effect.
func (p RetentionPolicy) Validate() error {
	if p.MaxAgeDays < 0 {
		return ErrValidation.WithDetails(fmt.Sprintf("max age days must be >= 0, got %d", p.MaxAgeDays))
	}
	if p.MaxCountPerResource < 0 {
		return ErrValidation.WithDetails(fmt.Sprintf("max count must be >= 0, got %d", p.MaxCountPerResource))
	}
	if p.MaxAgeDays == 0 && p.MaxCountPerResource == 0 {
		return ErrValidation.WithDetails("policy enables no retention rule")
	}
	for _, c := range p.ProtectCategories {
		if !c.Valid() {
			return ErrValidation.WithDetails(fmt.Sprintf("unknown protected category %q", c))
		}
	}
	return nil
}

// Protected reports whether a category is exempt from pruning.
func (p RetentionPolicy) Protected(c Category) bool {
	for _, pc := range p.ProtectCategories {
		if pc == c {
			return true
		}
	}
	return false
}

// AgeCutoff returns the creation-time cutoff implied by MaxAgeDays, or the
// zero time when the age rule is disabled.
func (p RetentionPolicy) AgeCutoff(now time.Time) time.Time {
	if p.MaxAgeDays == 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(p.MaxAgeDays) * 24 * time.Hour)
}
