package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/policy"
	"github.com/isdelr/ender-accounts/internal/services"
	ws "github.com/isdelr/ender-accounts/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades manager connections to the live audit feed.
type WebSocketHandler struct {
	hub      *ws.Hub
	authz    services.Authorizer
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. An empty
// allowedOrigins accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, authz services.Authorizer, allowedOrigins []string) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &WebSocketHandler{
		hub:   hub,
		authz: authz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if d := h.authz.Authorize(p, policy.OpViewAuditLog, ""); !d.Allowed {
		log.Warn().Str("principal_id", p.ID).Str("reason", string(d.Reason)).Msg("Audit feed access denied")
		respondWithError(w, http.StatusForbidden, "Access denied")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, p.ID)
	if !h.hub.Join(client) {
		log.Warn().Str("account_id", p.ID).Msg("Audit feed is shut down, closing connection")
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
