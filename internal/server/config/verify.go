// Package config provides agent configuration for the snapshot engine.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyRetention(&cfg.Retention); err != nil {
		return err
	}
	if err := verifySchedule(&cfg.Schedule); err != nil {
		return err
	}
	if err := verifyProvider(&cfg.Provider); err != nil {
		return err
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.BackupDir == "" {
		return errors.New("storage.backup_dir is required")
	}
	if cfg.LocalConfDir == "" {
		return errors.New("storage.localconf_dir is required")
	}
	return nil
}

func verifyRetention(cfg *RetentionSection) error {
	if cfg.MaxAgeDays < 0 {
		return errors.New("retention.max_age_days must not be negative")
	}
	if cfg.MaxCountPerResource < 0 {
		return errors.New("retention.max_count_per_resource must not be negative")
	}
	return nil
}

func verifySchedule(cfg *ScheduleSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Parallelism < 1 {
		return errors.New("schedule.parallelism must be at least 1")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	seen := make(map[string]bool, len(cfg.Jobs))
	for i, job := range cfg.Jobs {
		if job.Name == "" {
			return fmt.Errorf("schedule.jobs[%d].name is required", i)
		}
		if seen[job.Name] {
			return fmt.Errorf("schedule.jobs[%d]: duplicate name %q", i, job.Name)
		}
		seen[job.Name] = true
		if job.Spec == "" {
			return fmt.Errorf("schedule.jobs[%d].spec is required", i)
		}
		if len(job.Resources) == 0 {
			return fmt.Errorf("schedule.jobs[%d].resources is empty", i)
		}
	}
	return nil
}

func verifyProvider(cfg *ProviderSection) error {
	if cfg.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if cfg.Timeout <= 0 {
		return errors.New("provider.timeout must be positive")
	}
	if cfg.Retries < 1 {
		return errors.New("provider.retries must be at least 1")
	}
	if cfg.RateLimit <= 0 {
		return errors.New("provider.rate_limit must be positive")
	}
	return nil
}
