package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Error codes follow the format CF-<AREA>-<NNNN>, where the first digit of the
// numeric part mirrors the nearest HTTP class (4xxx caller fault, 5xxx
// collaborator or storage fault).
type DomainError struct {
	Code    string // Error code (e.g., "CF-SNAP-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches two DomainErrors by code, so sentinel comparison survives
// WithDetails/WithCause copies.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: details, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Details: e.Details, Cause: cause}
}

// ErrorCode extracts the structured code from an error, or "" if the error is
// not a DomainError.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Snapshot errors (SNAP)
// ============================================================================

var (
	// ErrValidation indicates a malformed snapshot, unknown category, or
	// otherwise invalid input rejected before any side effect.
	ErrValidation = NewDomainError("CF-SNAP-4000", "validation failed")

	// ErrSnapshotNotFound indicates the requested snapshot does not exist.
	ErrSnapshotNotFound = NewDomainError("CF-SNAP-4040", "snapshot not found")

	// ErrSnapshotImmutable indicates an attempt to overwrite a stored snapshot.
	ErrSnapshotImmutable = NewDomainError("CF-SNAP-4090", "snapshot already exists and is immutable")
)

// ============================================================================
// Merge errors (MERG)
// ============================================================================

var (
	// ErrInsufficientInput indicates fewer than two snapshots were given to merge.
	ErrInsufficientInput = NewDomainError("CF-MERG-4001", "merge requires at least two snapshots")

	// ErrConflictUnresolved indicates a merged snapshot still carries
	// unresolved conflicts and is not eligible for restore.
	ErrConflictUnresolved = NewDomainError("CF-MERG-4090", "merge conflicts unresolved")
)

// ============================================================================
// Provider errors (PROV)
// ============================================================================

var (
	// ErrUpstreamUnavailable indicates the settings provider or local config
	// store stayed unreachable past the retry budget.
	ErrUpstreamUnavailable = NewDomainError("CF-PROV-5030", "upstream unavailable")

	// ErrProviderAuth indicates the provider rejected our credentials.
	ErrProviderAuth = NewDomainError("CF-PROV-4010", "provider authentication failed")

	// ErrProviderNotFound indicates the provider does not know the resource.
	ErrProviderNotFound = NewDomainError("CF-PROV-4040", "resource not found at provider")

	// ErrProviderRateLimited indicates the provider throttled the call.
	// Treated as transient and eligible for retry.
	ErrProviderRateLimited = NewDomainError("CF-PROV-4290", "provider rate limited")

	// ErrProviderTransient indicates a transient network or server failure.
	ErrProviderTransient = NewDomainError("CF-PROV-5000", "transient provider failure")
)

// IsTransient reports whether an error is worth retrying under a bounded
// retry budget.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderTransient) || errors.Is(err, ErrProviderRateLimited)
}

// ============================================================================
// Storage errors (STOR)
// ============================================================================

var (
	// ErrPersist indicates a store read/write failure (disk, permission).
	// Fatal for the current operation; never retried automatically.
	ErrPersist = NewDomainError("CF-STOR-5000", "snapshot store failure")

	// ErrChecksumMismatch indicates a stored record failed integrity checking.
	ErrChecksumMismatch = NewDomainError("CF-STOR-5001", "snapshot checksum mismatch")
)

// ============================================================================
// Scheduler errors (SCHD)
// ============================================================================

var (
	// ErrBadSchedule indicates an unparseable cron spec or a one-shot time in
	// the past.
	ErrBadSchedule = NewDomainError("CF-SCHD-4000", "invalid schedule")

	// ErrJobNotFound indicates an unknown job handle.
	ErrJobNotFound = NewDomainError("CF-SCHD-4040", "job not found")
)
