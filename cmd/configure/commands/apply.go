package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/taskpanel/taskpanel/internal/config"
	"github.com/taskpanel/taskpanel/internal/database"
	"github.com/taskpanel/taskpanel/internal/models"
	"gopkg.in/yaml.v3"
)

// settingsFile is the YAML shape accepted by `apply`. Every section is
// optional; only present sections are written.
type settingsFile struct {
	OIDC []struct {
		Provider     string `yaml:"provider"`
		Issuer       string `yaml:"issuer"`
		Domain       string `yaml:"domain"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURI  string `yaml:"redirect_uri"`
	} `yaml:"oidc"`
	Cors *struct {
		AllowedOrigins   []string `yaml:"allowed_origins"`
		AllowCredentials bool     `yaml:"allow_credentials"`
		MaxAge           int      `yaml:"max_age"`
	} `yaml:"cors"`
	Ratelimit *struct {
		Rate string `yaml:"rate"`
	} `yaml:"ratelimit"`
}

// NewApplyCmd creates the apply command, which writes a YAML settings file
// into the runtime configuration tables in one pass.
func NewApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <settings-file>",
		Short: "Apply a YAML settings file",
		Long:  "Apply OIDC, CORS and rate limit settings from a YAML file to the database in one pass.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read settings file: %w", err)
			}

			var settings settingsFile
			if err := yaml.Unmarshal(data, &settings); err != nil {
				return fmt.Errorf("parse settings file: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() {
				_ = db.Close()
			}()

			ctx := context.Background()

			for _, o := range settings.OIDC {
				if o.Provider == "" || o.Issuer == "" || o.ClientID == "" || o.RedirectURI == "" {
					return fmt.Errorf("oidc entry requires provider, issuer, client_id and redirect_uri")
				}
				if err := applyOIDC(ctx, db, o.Provider, o.Issuer, o.Domain, o.ClientID, o.ClientSecret, o.RedirectURI); err != nil {
					return err
				}
				fmt.Printf("Applied OIDC configuration for provider: %s\n", o.Provider)
			}

			if settings.Cors != nil {
				if len(settings.Cors.AllowedOrigins) == 0 {
					return fmt.Errorf("cors section requires at least one allowed origin")
				}
				repo := database.NewCorsConfigRepository(db)
				err := repo.Set(ctx, &models.CorsConfig{
					AllowedOrigins:   strings.Join(settings.Cors.AllowedOrigins, ","),
					AllowCredentials: settings.Cors.AllowCredentials,
					MaxAge:           settings.Cors.MaxAge,
				})
				if err != nil {
					return fmt.Errorf("apply cors config: %w", err)
				}
				fmt.Println("Applied CORS configuration")
			}

			if settings.Ratelimit != nil {
				repo := database.NewRatelimitConfigRepository(db)
				if err := repo.Set(ctx, &models.RatelimitConfig{Rate: settings.Ratelimit.Rate}); err != nil {
					return fmt.Errorf("apply ratelimit config: %w", err)
				}
				fmt.Printf("Applied rate limit: %s\n", settings.Ratelimit.Rate)
			}

			return nil
		},
	}
}

func applyOIDC(ctx context.Context, db *database.DB, provider, issuer, domain, clientID, clientSecret, redirectURI string) error {
	repo := database.NewOIDCConfigRepository(db)
	jwksURL := issuer + "/.well-known/jwks.json"

	existing, err := repo.GetByProvider(ctx, provider)
	if err == nil && existing != nil {
		existing.Issuer = issuer
		existing.ClientID = clientID
		existing.RedirectURI = redirectURI
		existing.JWKSUrl = &jwksURL
		if domain != "" {
			existing.Domain = &domain
		}
		if clientSecret != "" {
			existing.ClientSecret = &clientSecret
		} else {
			existing.ClientSecret = nil
		}
		if err := repo.Update(ctx, existing); err != nil {
			return fmt.Errorf("update OIDC config for %s: %w", provider, err)
		}
		return nil
	}

	oidcConfig := &models.OIDCConfig{
		ID:          uuid.New(),
		Provider:    provider,
		Issuer:      issuer,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		JWKSUrl:     &jwksURL,
	}
	if domain != "" {
		oidcConfig.Domain = &domain
	}
	if clientSecret != "" {
		oidcConfig.ClientSecret = &clientSecret
	}
	if err := repo.Create(ctx, oidcConfig); err != nil {
		return fmt.Errorf("create OIDC config for %s: %w", provider, err)
	}
	return nil
}
