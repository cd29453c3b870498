package contracts

import (
	"context"
	"huddle/internal/core/domain"

	"github.com/google/uuid"
)

// Broadcaster delivers one event to every live connection subscribed to a
// channel. Exposed to the REST layer so REST-originated mutations reach
// WebSocket subscribers through the same path as WS-originated ones.
type Broadcaster interface {
	// Broadcast returns after every individual push attempt has settled.
	// Push failures are logged and swallowed; they never reach the caller.
	Broadcast(ctx context.Context, channelID uuid.UUID, event domain.Event)
	// SendTo delivers an event to one connection only.
	SendTo(ctx context.Context, conn Connection, event domain.Event)
}
