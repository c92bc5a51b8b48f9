package service

import (
	"context"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
)

// SettingsProvider is the external service holding a resource's live
// settings. Implementations classify their failures into the provider
// error taxonomy so IsTransient steers the retry budget.
type SettingsProvider interface {
	// GetResource fetches the resource's identity and status.
	GetResource(ctx context.Context, resourceID string) (domain.Resource, error)

	// GetSettings fetches the full settings bundle.
	GetSettings(ctx context.Context, resourceID string) (map[string]any, error)

	// ApplySetting writes a single setting back.
	ApplySetting(ctx context.Context, resourceID, key string, value any) error

	// CreateFirewallRule creates a new rule. Restore is additive: existing
	// rules on the target are never touched.
	CreateFirewallRule(ctx context.Context, resourceID string, rule domain.FirewallRule) error
}

// LocalConfigStore holds the locally tracked configuration that never
// passes through the settings provider.
type LocalConfigStore interface {
	Load(ctx context.Context, resourceID string) (domain.LocalConfig, error)
	Save(ctx context.Context, resourceID string, cfg domain.LocalConfig) error
}
