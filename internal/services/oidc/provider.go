package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/taskpanel/taskpanel/internal/database"
	"github.com/taskpanel/taskpanel/internal/models"
)

// Provider manages OIDC provider configuration
type Provider struct {
	repo *database.OIDCConfigRepository
}

// NewProvider creates a new OIDC provider manager
func NewProvider(repo *database.OIDCConfigRepository) *Provider {
	return &Provider{repo: repo}
}

// GetConfig retrieves OIDC configuration for a provider
func (p *Provider) GetConfig(ctx context.Context, providerName string) (*models.OIDCConfig, error) {
	config, err := p.repo.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// LoginConfig contains OIDC login configuration for the frontend
type LoginConfig struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	ClientID              string `json:"client_id"`
	RedirectURI           string `json:"redirect_uri"`
	Scope                 string `json:"scope"`
}

// GetLoginConfig returns the configuration needed for frontend OIDC login.
// Endpoints come from the provider's discovery document when reachable,
// falling back to issuer-derived paths.
func (p *Provider) GetLoginConfig(ctx context.Context, providerName string) (*LoginConfig, error) {
	config, err := p.GetConfig(ctx, providerName)
	if err != nil {
		return nil, err
	}

	authEndpoint, tokenEndpoint := discoverEndpoints(ctx, config)

	return &LoginConfig{
		AuthorizationEndpoint: authEndpoint,
		TokenEndpoint:         tokenEndpoint,
		ClientID:              config.ClientID,
		RedirectURI:           config.RedirectURI,
		Scope:                 "openid email profile",
	}, nil
}

// discoverEndpoints resolves the authorization and token endpoints for a
// provider config. Providers with a configured OAuth2 domain (Cognito-style
// custom domains) use domain-based endpoints; otherwise the discovery
// document is consulted, then issuer-derived defaults.
func discoverEndpoints(ctx context.Context, config *models.OIDCConfig) (authEndpoint, tokenEndpoint string) {
	if config.Domain != nil && *config.Domain != "" {
		baseURL := *config.Domain
		if !strings.HasPrefix(baseURL, "https://") {
			baseURL = "https://" + baseURL
		}
		return baseURL + "/oauth2/authorize", baseURL + "/oauth2/token"
	}

	discoveryURL := strings.TrimSuffix(config.Issuer, "/") + "/.well-known/openid-configuration"
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err == nil {
		resp, err := client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					_ = closeErr
				}
			}()
			var discovery struct {
				AuthorizationEndpoint string `json:"authorization_endpoint"`
				TokenEndpoint         string `json:"token_endpoint"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&discovery); err == nil {
				if discovery.AuthorizationEndpoint != "" {
					authEndpoint = discovery.AuthorizationEndpoint
				}
				if discovery.TokenEndpoint != "" {
					tokenEndpoint = discovery.TokenEndpoint
				}
			}
		}
	}

	base := strings.TrimSuffix(config.Issuer, "/")
	if authEndpoint == "" {
		authEndpoint = base + "/oauth2/authorize"
	}
	if tokenEndpoint == "" {
		tokenEndpoint = base + "/oauth2/token"
	}
	return authEndpoint, tokenEndpoint
}
