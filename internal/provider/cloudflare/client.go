package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/telemetry/logger"
	"github.com/NovWyatt/cloudflare-security-manager-sub000/pkg/cmap"
)

// DefaultBaseURL is the Cloudflare v4 API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// Config configures the API client.
type Config struct {
	BaseURL  string
	APIToken string
	// Timeout bounds each HTTP request. Defaults to 30s.
	Timeout time.Duration
	// RateLimit is the per-zone request rate in requests/second.
	// Defaults to 4.
	RateLimit float64
	Logger    logger.Logger
}

// Client talks to the Cloudflare v4 API.
type Client struct {
	baseURL   string
	token     string
	http      *http.Client
	rateLimit rate.Limit
	limiters  *cmap.Map[string, *rate.Limiter]
	logger    logger.Logger
}

// NewClient creates an API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.APIToken,
		http:      &http.Client{Timeout: cfg.Timeout},
		rateLimit: rate.Limit(cfg.RateLimit),
		limiters:  cmap.New[string, *rate.Limiter](),
		logger:    cfg.Logger.With("component", "provider.cloudflare"),
	}
}

// envelope is the standard Cloudflare v4 response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// zoneResult is the subset of the zone object the engine cares about.
type zoneResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// settingResult is one entry of the zone settings collection.
type settingResult struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// GetResource fetches a zone's identity.
func (c *Client) GetResource(ctx context.Context, resourceID string) (domain.Resource, error) {
	var zone zoneResult
	err := c.do(ctx, resourceID, http.MethodGet, "/zones/"+resourceID, nil, &zone)
	if err != nil {
		return domain.Resource{}, err
	}
	return domain.Resource{ID: zone.ID, Name: zone.Name, Status: zone.Status}, nil
}

// GetSettings fetches all zone settings as a key/value map.
func (c *Client) GetSettings(ctx context.Context, resourceID string) (map[string]any, error) {
	var items []settingResult
	err := c.do(ctx, resourceID, http.MethodGet, "/zones/"+resourceID+"/settings", nil, &items)
	if err != nil {
		return nil, err
	}
	settings := make(map[string]any, len(items))
	for _, item := range items {
		settings[item.ID] = item.Value
	}
	return settings, nil
}

// ApplySetting patches a single zone setting.
func (c *Client) ApplySetting(ctx context.Context, resourceID, key string, value any) error {
	body := map[string]any{"value": value}
	return c.do(ctx, resourceID, http.MethodPatch, "/zones/"+resourceID+"/settings/"+key, body, nil)
}

// CreateFirewallRule creates a new firewall rule on the zone.
func (c *Client) CreateFirewallRule(ctx context.Context, resourceID string, rule domain.FirewallRule) error {
	body := []map[string]any{{
		"action":      rule.Action,
		"description": rule.Description,
		"priority":    rule.Priority,
		"filter": map[string]any{
			"expression": rule.Expression,
		},
	}}
	return c.do(ctx, resourceID, http.MethodPost, "/zones/"+resourceID+"/firewall/rules", body, nil)
}

// limiter returns the zone's token bucket, creating it on first use.
func (c *Client) limiter(resourceID string) *rate.Limiter {
	if lim, ok := c.limiters.Get(resourceID); ok {
		return lim
	}
	lim, _ := c.limiters.GetOrSet(resourceID, rate.NewLimiter(c.rateLimit, 1))
	return lim
}

// do performs one API request, decodes the envelope, and unmarshals the
// result into out when non-nil.
func (c *Client) do(ctx context.Context, resourceID, method, path string, body, out any) error {
	if err := c.limiter(resourceID).Wait(ctx); err != nil {
		return domain.ErrProviderTransient.WithCause(err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return domain.ErrValidation.WithDetails("encode request body").WithCause(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.ErrProviderTransient.WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("provider request failed",
			"method", method, "path", path, "error", err)
		return domain.ErrProviderTransient.WithCause(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("provider request",
		"method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return domain.ErrProviderTransient.WithCause(err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.ErrProviderTransient.WithDetails("malformed response envelope").WithCause(err)
	}
	if !env.Success {
		return domain.ErrProviderTransient.WithDetails(joinAPIErrors(env.Errors))
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return domain.ErrProviderTransient.WithDetails("malformed result payload").WithCause(err)
		}
	}
	return nil
}

// classifyStatus maps an HTTP status to the provider error taxonomy.
// 2xx is success; 401/403 auth; 404 not-found; 429 rate-limited; anything
// else is transient and eligible for retry.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrProviderAuth.WithDetails(fmt.Sprintf("http status %d", status))
	case status == http.StatusNotFound:
		return domain.ErrProviderNotFound
	case status == http.StatusTooManyRequests:
		return domain.ErrProviderRateLimited
	default:
		return domain.ErrProviderTransient.WithDetails(fmt.Sprintf("http status %d", status))
	}
}

func joinAPIErrors(errs []apiError) string {
	if len(errs) == 0 {
		return "request not successful"
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%d: %s", e.Code, e.Message)
	}
	return strings.Join(parts, "; ")
}
