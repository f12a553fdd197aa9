package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/taskpanel/taskpanel/internal/feed"
	"github.com/taskpanel/taskpanel/internal/request"
	"go.uber.org/zap"
)

// FeedHandler upgrades authenticated requests to WebSocket task feeds
type FeedHandler struct {
	hub      *feed.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewFeedHandler creates a feed handler. allowedOrigins bounds which browser
// origins may open a feed socket; an empty list allows same-host only.
func NewFeedHandler(hub *feed.Hub, allowedOrigins []string, log *zap.Logger) *FeedHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(strings.TrimSuffix(o, "/"))
		if o != "" {
			origins[strings.ToLower(o)] = struct{}{}
		}
	}

	return &FeedHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if len(origins) == 0 {
					return strings.EqualFold(origin, "http://"+r.Host) || strings.EqualFold(origin, "https://"+r.Host)
				}
				_, ok := origins[strings.ToLower(strings.TrimSuffix(origin, "/"))]
				return ok
			},
		},
		log: log,
	}
}

// Subscribe handles GET /tasks/feed. The connection immediately receives a
// full snapshot of the owner's tasks and a fresh one after every committed
// change; due-soon reminders arrive as notice frames.
func (h *FeedHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.log.Warn("feed_upgrade_failed", zap.Error(err))
		return
	}

	sub := h.hub.Subscribe(user.Email)

	if err := h.hub.SendSnapshot(r.Context(), sub); err != nil {
		h.log.Warn("feed_initial_snapshot_failed",
			zap.String("owner", user.Email),
			zap.Error(err),
		)
	}

	h.log.Info("feed_subscribed", zap.String("owner", user.Email))
	sub.ServeConn(conn)
}
