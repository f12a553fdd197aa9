package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/taskpanel/taskpanel/internal/models"
)

// OIDCConfigRepository handles OIDC provider configuration in the database.
type OIDCConfigRepository struct {
	db *DB
}

// NewOIDCConfigRepository creates a new OIDC config repository
func NewOIDCConfigRepository(db *DB) *OIDCConfigRepository {
	return &OIDCConfigRepository{db: db}
}

// GetByProvider retrieves OIDC configuration for a named provider
func (r *OIDCConfigRepository) GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error) {
	query := `
		SELECT id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url, created_at, updated_at
		FROM oidc_config
		WHERE provider = $1
	`

	cfg := &models.OIDCConfig{}
	err := r.db.QueryRowContext(ctx, query, provider).Scan(
		&cfg.ID,
		&cfg.Provider,
		&cfg.Issuer,
		&cfg.Domain,
		&cfg.ClientID,
		&cfg.ClientSecret,
		&cfg.RedirectURI,
		&cfg.JWKSUrl,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("oidc config not found for provider %s: %w", provider, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get oidc config: %w", err)
	}

	return cfg, nil
}

// Create inserts a new provider configuration
func (r *OIDCConfigRepository) Create(ctx context.Context, cfg *models.OIDCConfig) error {
	query := `
		INSERT INTO oidc_config (id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		cfg.ID,
		cfg.Provider,
		cfg.Issuer,
		cfg.Domain,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.RedirectURI,
		cfg.JWKSUrl,
		now,
		now,
	).Scan(&cfg.CreatedAt, &cfg.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create oidc config: %w", err)
	}

	return nil
}

// Update overwrites an existing provider configuration
func (r *OIDCConfigRepository) Update(ctx context.Context, cfg *models.OIDCConfig) error {
	query := `
		UPDATE oidc_config
		SET issuer = $2, domain = $3, client_id = $4, client_secret = $5, redirect_uri = $6, jwks_url = $7, updated_at = $8
		WHERE provider = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		cfg.Provider,
		cfg.Issuer,
		cfg.Domain,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.RedirectURI,
		cfg.JWKSUrl,
		time.Now(),
	).Scan(&cfg.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("oidc config not found for provider %s", cfg.Provider)
	}
	if err != nil {
		return fmt.Errorf("failed to update oidc config: %w", err)
	}

	return nil
}

// List returns all configured providers
func (r *OIDCConfigRepository) List(ctx context.Context) ([]*models.OIDCConfig, error) {
	query := `
		SELECT id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url, created_at, updated_at
		FROM oidc_config
		ORDER BY provider
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list oidc configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.OIDCConfig
	for rows.Next() {
		cfg := &models.OIDCConfig{}
		err := rows.Scan(
			&cfg.ID,
			&cfg.Provider,
			&cfg.Issuer,
			&cfg.Domain,
			&cfg.ClientID,
			&cfg.ClientSecret,
			&cfg.RedirectURI,
			&cfg.JWKSUrl,
			&cfg.CreatedAt,
			&cfg.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan oidc config: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating oidc configs: %w", err)
	}

	return configs, nil
}
