package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NovWyatt/cloudflare-security-manager-sub000/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		BaseURL:   srv.URL,
		APIToken:  "test-token",
		RateLimit: 1000, // keep tests fast
	})
	return c, srv
}

func okEnvelope(result any) []byte {
	raw, _ := json.Marshal(map[string]any{
		"success": true,
		"errors":  []any{},
		"result":  result,
	})
	return raw
}

func TestGetResource(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write(okEnvelope(map[string]any{
			"id": "zone-1", "name": "example.com", "status": "active",
		}))
	}))

	res, err := c.GetResource(context.Background(), "zone-1")
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if res.ID != "zone-1" || res.Name != "example.com" || res.Status != "active" {
		t.Fatalf("resource = %+v", res)
	}
}

func TestGetSettings(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone-1/settings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write(okEnvelope([]map[string]any{
			{"id": "ssl", "value": "full"},
			{"id": "minify", "value": map[string]any{"css": "on", "js": "off"}},
		}))
	}))

	settings, err := c.GetSettings(context.Background(), "zone-1")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings["ssl"] != "full" {
		t.Errorf("ssl = %v", settings["ssl"])
	}
	if _, ok := settings["minify"].(map[string]any); !ok {
		t.Errorf("minify = %T, want nested map", settings["minify"])
	}
}

func TestApplySetting(t *testing.T) {
	var gotBody map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/zones/zone-1/settings/ssl" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(okEnvelope(map[string]any{"id": "ssl", "value": "strict"}))
	}))

	if err := c.ApplySetting(context.Background(), "zone-1", "ssl", "strict"); err != nil {
		t.Fatalf("ApplySetting: %v", err)
	}
	if gotBody["value"] != "strict" {
		t.Errorf("body value = %v", gotBody["value"])
	}
}

func TestCreateFirewallRule(t *testing.T) {
	var gotBody []map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/zones/zone-1/firewall/rules" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(okEnvelope([]any{}))
	}))

	rule := domain.FirewallRule{
		Expression:  `ip.src eq 1.2.3.4`,
		Action:      "block",
		Description: "bad actor",
		Priority:    10,
	}
	if err := c.CreateFirewallRule(context.Background(), "zone-1", rule); err != nil {
		t.Fatalf("CreateFirewallRule: %v", err)
	}
	if len(gotBody) != 1 {
		t.Fatalf("body entries = %d", len(gotBody))
	}
	filter, _ := gotBody[0]["filter"].(map[string]any)
	if filter["expression"] != rule.Expression {
		t.Errorf("expression = %v", filter["expression"])
	}
	if gotBody[0]["action"] != "block" {
		t.Errorf("action = %v", gotBody[0]["action"])
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrProviderAuth},
		{http.StatusForbidden, domain.ErrProviderAuth},
		{http.StatusNotFound, domain.ErrProviderNotFound},
		{http.StatusTooManyRequests, domain.ErrProviderRateLimited},
		{http.StatusInternalServerError, domain.ErrProviderTransient},
		{http.StatusBadGateway, domain.ErrProviderTransient},
	}
	for _, tc := range cases {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := c.GetResource(context.Background(), "zone-1")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestTransientErrorsAreRetryable(t *testing.T) {
	if !domain.IsTransient(domain.ErrProviderRateLimited) {
		t.Error("rate-limited should be transient")
	}
	if !domain.IsTransient(domain.ErrProviderTransient) {
		t.Error("5xx should be transient")
	}
	if domain.IsTransient(domain.ErrProviderAuth) {
		t.Error("auth failures must not be retried")
	}
}

func TestEnvelopeFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 1003, "message": "invalid zone"}},
		})
	}))

	_, err := c.GetSettings(context.Background(), "zone-1")
	if !errors.Is(err, domain.ErrProviderTransient) {
		t.Fatalf("err = %v, want transient", err)
	}
	var de *domain.DomainError
	if !errors.As(err, &de) || de.Details == "" {
		t.Fatalf("expected API error detail, got %v", err)
	}
}

func TestMalformedEnvelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	_, err := c.GetSettings(context.Background(), "zone-1")
	if !errors.Is(err, domain.ErrProviderTransient) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestSharedLimiterPerZone(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://example.invalid", RateLimit: 2})
	a := c.limiter("zone-a")
	if b := c.limiter("zone-a"); a != b {
		t.Error("same zone should share one limiter")
	}
	if other := c.limiter("zone-b"); a == other {
		t.Error("different zones should not share a limiter")
	}
}
