// Package cloudflare implements the settings provider against the
// Cloudflare v4 API.
//
// The client fetches zone identity and zone settings, patches individual
// settings, and creates firewall rules. Responses arrive in the standard
// v4 envelope; failures are classified into the engine's provider error
// taxonomy (auth, not-found, rate-limited, transient) so callers can
// decide retry eligibility. Writes to the same zone are paced by a
// per-zone token bucket.
package cloudflare
