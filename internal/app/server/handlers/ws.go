package handlers

import (
	"context"
	"huddle/internal/app/server/session"
	"huddle/internal/app/server/ws"
	"huddle/internal/platform/logger"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// WSHandler upgrades the transport and hands the connection to a session.
// The bearer credential arrives as a query parameter (Authorization header
// accepted as fallback); the session closes with a policy-violation code
// when it is missing or invalid.
type WSHandler struct {
	deps session.Deps
}

func NewWSHandler(deps session.Deps) *WSHandler {
	return &WSHandler{deps: deps}
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}

	// The session outlives the HTTP request that carried the upgrade.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", "err", err)
		return
	}
	conn.SetCloseHandler(func(code int, text string) error {
		cancel()
		return nil
	})

	sock := ws.NewWebSocket(sessionCtx, conn, h.deps.WS.WriteTimeout, h.deps.WS.MaxMessageSize)
	sess := session.New(h.deps, sock)
	sess.Run(sessionCtx, token)
}
