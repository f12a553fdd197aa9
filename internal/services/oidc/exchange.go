package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/taskpanel/taskpanel/internal/models"
	"golang.org/x/oauth2"
)

// Tokens carries the results of an authorization-code exchange back to the
// frontend. The ID token is what the API accepts as a bearer credential.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type"`
}

// ExchangeCode exchanges an authorization code for tokens at the provider's
// token endpoint.
func ExchangeCode(ctx context.Context, config *models.OIDCConfig, code string) (*Tokens, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	_, tokenEndpoint := discoverEndpoints(ctx, config)

	oauthCfg := &oauth2.Config{
		ClientID:    config.ClientID,
		RedirectURL: config.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL: tokenEndpoint,
		},
	}
	if config.ClientSecret != nil {
		oauthCfg.ClientSecret = *config.ClientSecret
	}

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	tokens := &Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if !token.Expiry.IsZero() {
		tokens.ExpiresIn = int64(time.Until(token.Expiry).Seconds())
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}

	return tokens, nil
}
