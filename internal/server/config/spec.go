// Package config provides agent configuration for the snapshot engine.
package config

import "time"

// Config is the root configuration for cfsm-agent and cfsm-cli.
type Config struct {
	Storage   StorageSection   `koanf:"storage"`
	Retention RetentionSection `koanf:"retention"`
	Restore   RestoreSection   `koanf:"restore"`
	Schedule  ScheduleSection  `koanf:"schedule"`
	Provider  ProviderSection  `koanf:"provider"`
	Security  SecuritySection  `koanf:"security"`
	Metrics   MetricsSection   `koanf:"metrics"`
	Audit     AuditSection     `koanf:"audit"`
	Log       LogSection       `koanf:"log"`
}

// StorageSection configures where snapshots and local state live.
type StorageSection struct {
	// BackupDir is the root of the snapshot file store. Snapshots are
	// written to per-category subdirectories beneath it.
	BackupDir string `koanf:"backup_dir"`

	// LocalConfDir is the Badger database directory holding local
	// (non-upstream) configuration.
	LocalConfDir string `koanf:"localconf_dir"`

	// SyncWrites forces fsync on local config writes.
	SyncWrites bool `koanf:"sync_writes"`
}

// RetentionSection configures snapshot pruning.
type RetentionSection struct {
	// MaxAgeDays removes snapshots older than this many days. Zero
	// disables the age rule.
	MaxAgeDays int `koanf:"max_age_days"`

	// MaxCountPerResource keeps at most this many snapshots per
	// resource. Zero disables the count rule.
	MaxCountPerResource int `koanf:"max_count_per_resource"`

	// ProtectCategories lists snapshot categories exempt from pruning.
	ProtectCategories []string `koanf:"protect_categories"`
}

// RestoreSection configures restore behavior.
type RestoreSection struct {
	// PacingInterval is the delay between consecutive setting writes
	// during a restore.
	PacingInterval time.Duration `koanf:"pacing_interval"`
}

// ScheduleSection configures the recurring snapshot scheduler.
type ScheduleSection struct {
	Enabled bool `koanf:"enabled"`

	// Timezone interprets cron expressions ("UTC", "Europe/Berlin").
	Timezone string `koanf:"timezone"`

	// Jobs are the recurring snapshot definitions.
	Jobs []ScheduleJob `koanf:"jobs"`

	// Parallelism bounds concurrent job executions.
	Parallelism int `koanf:"parallelism"`
}

// ScheduleJob defines one recurring snapshot job.
type ScheduleJob struct {
	// Name identifies the job in logs and metrics.
	Name string `koanf:"name"`

	// Spec is a standard five-field cron expression.
	Spec string `koanf:"spec"`

	// Resources lists the zone IDs the job snapshots.
	Resources []string `koanf:"resources"`

	// Description is copied into the snapshots the job creates.
	Description string `koanf:"description"`
}

// ProviderSection configures the upstream API client.
type ProviderSection struct {
	BaseURL  string        `koanf:"base_url"`
	APIToken string        `koanf:"api_token"`
	Timeout  time.Duration `koanf:"timeout"`

	// Retries is the number of attempts per read before the operation
	// is reported as upstream-unavailable.
	Retries int `koanf:"retries"`

	// RateLimit is the per-resource request rate in requests/second.
	RateLimit float64 `koanf:"rate_limit"`
}

// SecuritySection configures at-rest encryption.
type SecuritySection struct {
	// EncryptionKey seals snapshot payloads on disk. Accepts a 64-char
	// hex key or a passphrase (stretched via Argon2id). Empty disables
	// sealing.
	EncryptionKey string `koanf:"encryption_key"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// AuditSection configures the audit trail.
type AuditSection struct {
	// Path is the JSONL audit log file. Empty disables auditing.
	Path string `koanf:"path"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
