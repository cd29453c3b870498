package dispatch

import (
	"context"
	"encoding/json"
	"huddle/internal/core/contracts"
	"huddle/internal/core/domain"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("dispatcher")

// Dispatcher fans one event out to every live connection subscribed to a
// channel. Pushes run concurrently within one Broadcast call; an individual
// push failure is logged and swallowed, never surfaced to other connections
// or to the caller.
type Dispatcher struct {
	registry contracts.Registry
	log      *slog.Logger
}

func NewDispatcher(log *slog.Logger, registry contracts.Registry) *Dispatcher {
	return &Dispatcher{
		log:      log,
		registry: registry,
	}
}

// Broadcast delivers the event to every connection known at snapshot time,
// exactly one attempt per connection, and returns after all attempts have
// settled. A channel with zero subscribers is a no-op. Subscribers with no
// live connection are skipped and their stale subscriptions purged.
func (d *Dispatcher) Broadcast(ctx context.Context, channelID uuid.UUID, event domain.Event) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Broadcast")
	defer span.End()
	span.SetAttributes(
		attribute.String("channel_id", channelID.String()),
		attribute.String("event_type", event.Type),
	)

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		d.log.ErrorContext(ctx, "dispatch - broadcast - marshal failed", "channel_id", channelID, "event_type", event.Type, "err", err)
		return
	}

	conns, stale := d.registry.ChannelConnections(channelID)
	for _, userID := range stale {
		d.registry.Unsubscribe(channelID, userID)
		d.log.WarnContext(ctx, "dispatch - broadcast - purged stale subscription", "channel_id", channelID, "user_id", userID)
	}
	if len(conns) == 0 {
		return
	}
	span.SetAttributes(attribute.Int("connection_count", len(conns)))

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(c contracts.Connection) {
			defer wg.Done()
			if err := c.Send(ctx, data); err != nil {
				d.log.WarnContext(ctx, "dispatch - broadcast - push failed",
					"channel_id", channelID, "conn_id", c.ID(), "user_id", c.UserID(), "err", err)
			}
		}(conn)
	}
	wg.Wait()
}

// SendTo delivers the event to one connection only. Used for sender-only
// error replies.
func (d *Dispatcher) SendTo(ctx context.Context, conn contracts.Connection, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		d.log.ErrorContext(ctx, "dispatch - send to - marshal failed", "conn_id", conn.ID(), "err", err)
		return
	}
	if err := conn.Send(ctx, data); err != nil {
		d.log.WarnContext(ctx, "dispatch - send to - push failed", "conn_id", conn.ID(), "err", err)
	}
}
