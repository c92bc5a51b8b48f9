// Package snapstore provides durable, append-only persistence for zone
// snapshots.
//
// Snapshots are stored one record per file, partitioned by category and
// addressed by a name derived from resource name, creation time, and id, so
// directory listings are naturally time-ordered without a separate index.
// Writes are atomic: records are written to a temp file and committed with a
// single rename. Records are plain JSON in the stable wire layout
// (metadata/resource/settings/firewall), optionally sealed with an
// authenticated cipher.
package snapstore
