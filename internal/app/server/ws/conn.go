package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket wraps a gorilla connection with a cancelable lifetime and the
// read-loop plumbing the session runs on.
type WebSocket struct {
	*websocket.Conn
	ctx          context.Context
	cancel       context.CancelFunc
	writeTimeout time.Duration
}

func NewWebSocket(parent context.Context, conn *websocket.Conn, writeTimeout time.Duration, maxMessageSize int64) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	conn.SetReadLimit(maxMessageSize)
	return &WebSocket{Conn: conn, ctx: ctx, cancel: cancel, writeTimeout: writeTimeout}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

// ReadLoop delivers inbound frames to onMsg one at a time, preserving
// arrival order, until the transport closes or errors.
func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	defer w.Close()
	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("ws - read loop - unexpected close", "err", err)
			}
			return
		}
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
