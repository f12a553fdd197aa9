package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskpanel/taskpanel/internal/models"
)

func stringPtr(s string) *string {
	return &s
}

func TestDiscoverEndpoints_DomainBased(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		domain    string
		wantAuth  string
		wantToken string
	}{
		{
			name:      "bare domain gets https prefix",
			domain:    "auth.example.com",
			wantAuth:  "https://auth.example.com/oauth2/authorize",
			wantToken: "https://auth.example.com/oauth2/token",
		},
		{
			name:      "domain with scheme kept as is",
			domain:    "https://login.example.com",
			wantAuth:  "https://login.example.com/oauth2/authorize",
			wantToken: "https://login.example.com/oauth2/token",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			config := &models.OIDCConfig{
				Issuer: "https://issuer.example.com",
				Domain: stringPtr(tt.domain),
			}

			auth, token := discoverEndpoints(context.Background(), config)
			if auth != tt.wantAuth {
				t.Errorf("auth endpoint = %q, want %q", auth, tt.wantAuth)
			}
			if token != tt.wantToken {
				t.Errorf("token endpoint = %q, want %q", token, tt.wantToken)
			}
		})
	}
}

func TestDiscoverEndpoints_DiscoveryDocument(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"authorization_endpoint": "https://idp.example.com/authorize",
			"token_endpoint":         "https://idp.example.com/token",
		})
	}))
	defer server.Close()

	config := &models.OIDCConfig{Issuer: server.URL}

	auth, token := discoverEndpoints(context.Background(), config)
	if auth != "https://idp.example.com/authorize" {
		t.Errorf("auth endpoint = %q, want discovery value", auth)
	}
	if token != "https://idp.example.com/token" {
		t.Errorf("token endpoint = %q, want discovery value", token)
	}
}

func TestDiscoverEndpoints_IssuerFallback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	config := &models.OIDCConfig{Issuer: server.URL + "/"}

	auth, token := discoverEndpoints(context.Background(), config)
	if auth != server.URL+"/oauth2/authorize" {
		t.Errorf("auth endpoint = %q, want issuer-derived fallback", auth)
	}
	if token != server.URL+"/oauth2/token" {
		t.Errorf("token endpoint = %q, want issuer-derived fallback", token)
	}
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token_endpoint": server.URL + "/oauth2/token",
			})
		case "/oauth2/token":
			if err := r.ParseForm(); err != nil {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			if got := r.PostForm.Get("code"); got != "test-code" {
				http.Error(w, "wrong code", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-123",
				"id_token":      "id-456",
				"refresh_token": "refresh-789",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	config := &models.OIDCConfig{
		Issuer:       server.URL,
		ClientID:     "test-client-id",
		ClientSecret: stringPtr("test-secret"),
		RedirectURI:  "http://localhost:3000/callback",
	}

	tokens, err := ExchangeCode(context.Background(), config, "test-code")
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	if tokens.AccessToken != "access-123" {
		t.Errorf("access token = %q, want 'access-123'", tokens.AccessToken)
	}
	if tokens.IDToken != "id-456" {
		t.Errorf("id token = %q, want 'id-456'", tokens.IDToken)
	}
	if tokens.RefreshToken != "refresh-789" {
		t.Errorf("refresh token = %q, want 'refresh-789'", tokens.RefreshToken)
	}
	if tokens.TokenType != "Bearer" {
		t.Errorf("token type = %q, want 'Bearer'", tokens.TokenType)
	}
	if tokens.ExpiresIn <= 0 || tokens.ExpiresIn > 3600 {
		t.Errorf("expires_in = %d, want a positive value within the hour", tokens.ExpiresIn)
	}
}

func TestExchangeCode_EmptyCode(t *testing.T) {
	t.Parallel()

	config := &models.OIDCConfig{
		Issuer:      "https://auth.example.com",
		ClientID:    "test-client-id",
		RedirectURI: "http://localhost:3000/callback",
	}

	if _, err := ExchangeCode(context.Background(), config, ""); err == nil {
		t.Error("expected error for empty authorization code")
	}
}
