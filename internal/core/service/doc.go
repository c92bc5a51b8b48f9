// Package service provides the domain services of the snapshot engine.
//
// Each service owns one operation family:
//
//   - builder.go: capture a resource's live configuration into a snapshot
//   - differ.go: field-level comparison of two snapshots
//   - merger.go: N-way merge with explicit conflict detection
//   - restorer.go: apply a snapshot back to the live resource
//   - retention.go: age/count based pruning
//   - engine.go: facade bundling the services, plus bulk operations
//
// Services depend on collaborators only through the narrow interfaces in
// ports.go, so tests run against in-memory fakes.
package service
