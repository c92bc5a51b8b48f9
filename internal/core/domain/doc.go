// Package domain defines the core domain models for the zone snapshot engine:
// the immutable Snapshot entity, firewall rules, change sets, merge conflicts,
// and retention policies, together with the structured error taxonomy shared
// by all engine components.
package domain
