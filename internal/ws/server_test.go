package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/untra/operator-go/internal/config"
)

func newTestServer(allowedOrigins []string, authToken string) *Server {
	cfg := config.ObserveConfig{AllowedOrigins: allowedOrigins, AuthToken: authToken}
	return NewServer(cfg, nil, nil, nil, zerolog.Nop())
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		origin         string
		host           string
		want           bool
	}{
		{
			name:           "allowlist: matching origin accepted",
			allowedOrigins: []string{"http://example.com"},
			origin:         "http://example.com",
			host:           "example.com",
			want:           true,
		},
		{
			name:           "allowlist: matching host accepted",
			allowedOrigins: []string{"http://example.com:8080"},
			origin:         "https://example.com:8080",
			host:           "example.com:8080",
			want:           true,
		},
		{
			name:           "allowlist: non-matching origin rejected",
			allowedOrigins: []string{"http://example.com"},
			origin:         "http://evil.com",
			host:           "example.com",
			want:           false,
		},
		{
			name:           "allowlist: missing origin rejected",
			allowedOrigins: []string{"http://example.com"},
			origin:         "",
			host:           "example.com",
			want:           false,
		},
		{
			name:           "allowlist: localhost origin rejected when not in list",
			allowedOrigins: []string{"http://example.com"},
			origin:         "http://localhost:8080",
			host:           "example.com",
			want:           false,
		},
		{
			name:   "no allowlist: missing origin accepted",
			origin: "",
			host:   "localhost:8080",
			want:   true,
		},
		{
			name:   "no allowlist: same host accepted",
			origin: "http://myhost:8080",
			host:   "myhost:8080",
			want:   true,
		},
		{
			name:   "no allowlist: localhost accepted",
			origin: "http://localhost:8080",
			host:   "other:8080",
			want:   true,
		},
		{
			name:   "no allowlist: 127.0.0.1 accepted",
			origin: "http://127.0.0.1:8080",
			host:   "other:8080",
			want:   true,
		},
		{
			name:   "no allowlist: [::1] accepted",
			origin: "http://[::1]:8080",
			host:   "other:8080",
			want:   true,
		},
		{
			name:   "no allowlist: external origin rejected",
			origin: "http://evil.com",
			host:   "localhost:8080",
			want:   false,
		},
		{
			name:   "no allowlist: invalid origin rejected",
			origin: "://bad",
			host:   "localhost:8080",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.allowedOrigins, "")
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthorize_NoTokenConfiguredAllowsAll(t *testing.T) {
	s := newTestServer(nil, "")
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if !s.authorize(req) {
		t.Error("expected authorize to pass when no token is configured")
	}
}

func TestAuthorize_QueryToken(t *testing.T) {
	s := newTestServer(nil, "secret")
	req := httptest.NewRequest(http.MethodGet, "/ws?token=secret", nil)
	if !s.authorize(req) {
		t.Error("expected query token to authorize")
	}
}

func TestAuthorize_BearerToken(t *testing.T) {
	s := newTestServer(nil, "secret")
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if !s.authorize(req) {
		t.Error("expected bearer token to authorize")
	}
}

func TestAuthorize_CustomHeaderToken(t *testing.T) {
	s := newTestServer(nil, "secret")
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("X-Operator-Token", "secret")
	if !s.authorize(req) {
		t.Error("expected custom header token to authorize")
	}
}

func TestAuthorize_WrongTokenRejected(t *testing.T) {
	s := newTestServer(nil, "secret")
	req := httptest.NewRequest(http.MethodGet, "/ws?token=wrong", nil)
	if s.authorize(req) {
		t.Error("expected mismatched token to be rejected")
	}
}

func TestHandleFocus_NoBackendConfigured(t *testing.T) {
	s := newTestServer(nil, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/agents/a1/focus", nil)
	s.handleFocus(rec, req, "a1")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with no backend configured, got %d", rec.Code)
	}
}
