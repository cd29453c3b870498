package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrClientClosed = errors.New("client closed")

// RuntimeClient is one live delivery target: a buffered outbound channel
// drained by a dedicated write loop, so one slow consumer never blocks a
// broadcast beyond its own push.
type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     uuid.UUID
	userID uuid.UUID
	out    chan []byte
	once   sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, userID uuid.UUID, sendBuffer int) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     uuid.New(),
		userID: userID,
		out:    make(chan []byte, sendBuffer),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() uuid.UUID     { return c.id }
func (c *RuntimeClient) UserID() uuid.UUID { return c.userID }

// Send enqueues data for the write loop. It fails once the client is closed
// or when the caller's context ends; it does not wait out a full buffer
// beyond that.
func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is idempotent; concurrent callers race safely on the sync.Once.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		}
	}
}
