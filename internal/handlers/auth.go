package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/taskpanel/taskpanel/internal/request"
	"github.com/taskpanel/taskpanel/internal/services/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	oidcProvider *oidc.Provider
	providerName string
	log          *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(oidcProvider *oidc.Provider, providerName string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{oidcProvider: oidcProvider, providerName: providerName, log: log}
}

// RegisterRoutes registers auth routes on the given router.
// The router should already carry the /auth prefix. /me must additionally be
// mounted behind the auth middleware.
func (h *AuthHandler) RegisterRoutes(public, protected *mux.Router) {
	public.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods("GET")
	public.HandleFunc("/oidc/callback", h.PostOIDCCallback).Methods("POST")
	protected.HandleFunc("/me", h.GetMe).Methods("GET")
}

// GetOIDCLogin returns OIDC configuration for frontend sign-in
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	loginConfig, err := h.oidcProvider.GetLoginConfig(ctx, h.providerName)
	if err != nil {
		h.log.Error("oidc_login_config_failed", zap.String("provider", h.providerName), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get OIDC configuration")
		return
	}

	respondJSON(w, http.StatusOK, loginConfig)
}

// OIDCCallbackRequest carries the authorization code returned by the provider
type OIDCCallbackRequest struct {
	Code string `json:"code"`
}

// PostOIDCCallback exchanges an authorization code for tokens
func (h *AuthHandler) PostOIDCCallback(w http.ResponseWriter, r *http.Request) {
	var req OIDCCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if req.Code == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Authorization code is required")
		return
	}

	ctx := r.Context()
	config, err := h.oidcProvider.GetConfig(ctx, h.providerName)
	if err != nil {
		h.log.Error("oidc_config_lookup_failed", zap.String("provider", h.providerName), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get OIDC configuration")
		return
	}

	tokens, err := oidc.ExchangeCode(ctx, config, req.Code)
	if err != nil {
		h.log.Warn("oidc_code_exchange_failed", zap.String("provider", h.providerName), zap.Error(err))
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", exchangeErrorMessage(err))
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

// exchangeErrorMessage maps provider error codes to user-facing messages
func exchangeErrorMessage(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant":
			return "The authorization code is invalid or has expired. Please sign in again."
		case "access_denied":
			return "Sign-in was denied by the identity provider."
		case "invalid_client":
			return "The application is not configured correctly with the identity provider."
		}
	}
	return "Authorization code exchange failed"
}

// GetMe returns the current user
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
