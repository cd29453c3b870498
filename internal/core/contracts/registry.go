package contracts

import (
	"context"

	"github.com/google/uuid"
)

// Registry is the live-connection bookkeeping the realtime core runs on.
// It owns the connection→user and channel→subscriber relations and nothing
// else; it performs no I/O.
type Registry interface {
	// Register adds a connection under its owner's connection set. The
	// connection becomes a valid delivery target immediately.
	Register(conn Connection, userID uuid.UUID)
	// Unregister removes the connection. When the owner's last connection
	// goes, all of the owner's channel subscriptions are purged in the same
	// atomic unit. Unregistering an unknown connection is a no-op.
	Unregister(conn Connection)
	// Subscribe adds the user to the channel's subscriber set. Idempotent.
	Subscribe(channelID, userID uuid.UUID)
	// Unsubscribe removes the user from the channel's subscriber set. Idempotent.
	Unsubscribe(channelID, userID uuid.UUID)
	// ConnectionsFor returns the user's live connections.
	ConnectionsFor(userID uuid.UUID) []Connection
	// SubscribersOf returns the users subscribed to the channel.
	SubscribersOf(channelID uuid.UUID) []uuid.UUID
	// ChannelConnections resolves subscriber set → per-user connection sets
	// under one lock, so a reader never observes a subscriber mid-teardown.
	// Subscribers with zero live connections are reported as stale.
	ChannelConnections(channelID uuid.UUID) (conns []Connection, stale []uuid.UUID)
	// SubscriberCount and ConnectionCount are observability counters.
	SubscriberCount(channelID uuid.UUID) int
	ConnectionCount(userID uuid.UUID) int
}

// Connection is the minimal surface the registry and dispatcher need to talk
// to one live transport endpoint.
type Connection interface {
	ID() uuid.UUID
	UserID() uuid.UUID
	Send(ctx context.Context, data []byte) error
	Close()
}
