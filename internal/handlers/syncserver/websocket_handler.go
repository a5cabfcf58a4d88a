// Package syncserver holds the HTTP handlers of the sync gateway.
package syncserver

import (
	"log"
	"net/http"

	"friendsync/internal/auth"
	"friendsync/internal/config"
	"friendsync/internal/session"
	"friendsync/internal/websocket"
)

// SessionFactory builds the engine session for one authenticated user.
type SessionFactory func(userID string) *session.Session

// WebSocketHandler authenticates websocket requests and hands them to the
// hub with a freshly built session.
type WebSocketHandler struct {
	hub       *websocket.Hub
	sessions  SessionFactory
	blacklist auth.TokenBlacklist
	cfg       config.Config
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(hub *websocket.Hub, sessions SessionFactory, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		sessions:  sessions,
		blacklist: blacklist,
		cfg:       cfg,
	}
}

// ServeWS upgrades an authenticated connection. Browsers cannot set headers
// on websocket requests, so the token rides in the query string.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		http.Error(w, "missing token query parameter", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), tokenString, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		log.Printf("websocket auth failed: %v", err)
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	if claims.UserID == "" {
		http.Error(w, "token carries no user id", http.StatusUnauthorized)
		return
	}

	sess := h.sessions(claims.UserID)
	websocket.ServeWsPerConnection(h.hub, sess, w, r, h.cfg.WebSocket)
}
