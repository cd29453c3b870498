package contracts

import (
	"context"
	"time"
)

// PresenceStore keeps TTL-based online state per user. An absent entry
// means offline.
type PresenceStore interface {
	// UpdateStatus refreshes the user's presence entry.
	UpdateStatus(ctx context.Context, userID, status string, ttl time.Duration) error
	// GetStatus returns the user's current status, or "offline" when the
	// entry has expired.
	GetStatus(ctx context.Context, userID string) (string, error)
	// Clear drops the user's presence entry.
	Clear(ctx context.Context, userID string) error
}
