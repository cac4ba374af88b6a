package handlers

import (
	"net/http"
	"strings"

	"community-gateway/internal/auth"
	"community-gateway/internal/gateway"
	"community-gateway/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	gw          *gateway.Gateway
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, gw *gateway.Gateway) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		gw:          gw,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// The credential is validated before the upgrade: a missing or invalid
	// token never creates a connection, so no room state can exist for it.
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.authService.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	// This goroutine becomes the connection's read pump.
	h.gw.Serve(conn, identity.UserID, identity.Username)
}

// bearerToken accepts the credential from the Authorization header or, for
// browser websocket clients that cannot set headers, a query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
