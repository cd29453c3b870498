package registry

import (
	"huddle/internal/core/contracts"
	"sync"

	"github.com/google/uuid"
)

// Registry is the in-process connection and subscription bookkeeping. One
// RWMutex guards all three maps so that multi-step reads (subscriber set →
// per-user connection set) observe a consistent snapshot.
//
// Constructed explicitly and injected into every session and the REST
// broadcast entry point; tests instantiate isolated instances.
type Registry struct {
	mu sync.RWMutex
	// connection id → owning user
	owners map[uuid.UUID]uuid.UUID
	// user → live connections
	userConns map[uuid.UUID]map[uuid.UUID]contracts.Connection
	// channel → subscribed users
	channelSubs map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		owners:      make(map[uuid.UUID]uuid.UUID),
		userConns:   make(map[uuid.UUID]map[uuid.UUID]contracts.Connection),
		channelSubs: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Register adds the connection under the user's connection set. Registering
// an already-registered connection is a no-op.
func (r *Registry) Register(conn contracts.Connection, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[conn.ID()]; ok {
		return
	}
	r.owners[conn.ID()] = userID
	if r.userConns[userID] == nil {
		r.userConns[userID] = make(map[uuid.UUID]contracts.Connection)
	}
	r.userConns[userID][conn.ID()] = conn
}

// Unregister removes the connection from its owner's set. When the owner's
// last connection goes, the owner and every channel subscription of theirs
// are removed in the same critical section, so no stale subscriber survives
// a full disconnect. Unregistering an unknown connection is a no-op.
func (r *Registry) Unregister(conn contracts.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.owners[conn.ID()]
	if !ok {
		return
	}
	delete(r.owners, conn.ID())
	conns := r.userConns[userID]
	delete(conns, conn.ID())
	if len(conns) > 0 {
		return
	}
	delete(r.userConns, userID)
	for channelID, subs := range r.channelSubs {
		delete(subs, userID)
		if len(subs) == 0 {
			delete(r.channelSubs, channelID)
		}
	}
}

// Subscribe adds the user to the channel's subscriber set. Idempotent.
func (r *Registry) Subscribe(channelID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channelSubs[channelID] == nil {
		r.channelSubs[channelID] = make(map[uuid.UUID]struct{})
	}
	r.channelSubs[channelID][userID] = struct{}{}
}

// Unsubscribe removes the user from the channel's subscriber set. Idempotent.
func (r *Registry) Unsubscribe(channelID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs, ok := r.channelSubs[channelID]
	if !ok {
		return
	}
	delete(subs, userID)
	if len(subs) == 0 {
		delete(r.channelSubs, channelID)
	}
}

// ConnectionsFor returns the user's live connections.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []contracts.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]contracts.Connection, 0, len(r.userConns[userID]))
	for _, c := range r.userConns[userID] {
		conns = append(conns, c)
	}
	return conns
}

// SubscribersOf returns the users subscribed to the channel.
func (r *Registry) SubscribersOf(channelID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]uuid.UUID, 0, len(r.channelSubs[channelID]))
	for u := range r.channelSubs[channelID] {
		users = append(users, u)
	}
	return users
}

// ChannelConnections resolves the channel's subscriber set into the flat set
// of live connections under a single read lock. Subscribers without a live
// connection are returned as stale so the caller can purge them.
func (r *Registry) ChannelConnections(channelID uuid.UUID) ([]contracts.Connection, []uuid.UUID) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []contracts.Connection
	var stale []uuid.UUID
	for userID := range r.channelSubs[channelID] {
		userConns := r.userConns[userID]
		if len(userConns) == 0 {
			stale = append(stale, userID)
			continue
		}
		for _, c := range userConns {
			conns = append(conns, c)
		}
	}
	return conns, stale
}

func (r *Registry) SubscriberCount(channelID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channelSubs[channelID])
}

func (r *Registry) ConnectionCount(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns[userID])
}
