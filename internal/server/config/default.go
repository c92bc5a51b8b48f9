// Package config provides agent configuration for the snapshot engine.
package config

import "time"

// Default configuration values.
const (
	DefaultBackupDir    = "/var/lib/cfsm/backups"
	DefaultLocalConfDir = "/var/lib/cfsm/localconf"

	DefaultMaxAgeDays          = 30
	DefaultMaxCountPerResource = 50

	DefaultPacingInterval = 500 * time.Millisecond

	DefaultScheduleTimezone    = "UTC"
	DefaultScheduleParallelism = 2

	DefaultProviderBaseURL   = "https://api.cloudflare.com/client/v4"
	DefaultProviderTimeout   = 30 * time.Second
	DefaultProviderRetries   = 3
	DefaultProviderRateLimit = 4.0

	DefaultMetricsAddr = "127.0.0.1:9187"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			BackupDir:    DefaultBackupDir,
			LocalConfDir: DefaultLocalConfDir,
			SyncWrites:   true,
		},
		Retention: RetentionSection{
			MaxAgeDays:          DefaultMaxAgeDays,
			MaxCountPerResource: DefaultMaxCountPerResource,
		},
		Restore: RestoreSection{
			PacingInterval: DefaultPacingInterval,
		},
		Schedule: ScheduleSection{
			Enabled:     false,
			Timezone:    DefaultScheduleTimezone,
			Parallelism: DefaultScheduleParallelism,
		},
		Provider: ProviderSection{
			BaseURL:   DefaultProviderBaseURL,
			Timeout:   DefaultProviderTimeout,
			Retries:   DefaultProviderRetries,
			RateLimit: DefaultProviderRateLimit,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Addr:    DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
