package session

import (
	"context"
	"huddle/internal/app/server/ws"
	"huddle/internal/config"
	"huddle/internal/core/contracts"
	"huddle/internal/core/domain"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Session lifecycle states.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

// TokenVerifier turns a bearer credential into a user identity or fails.
type TokenVerifier interface {
	ValidateToken(token string) (uuid.UUID, error)
}

// MessageCreator persists one message and returns it with the sender's
// display fields.
type MessageCreator interface {
	CreateMessage(ctx context.Context, channelID, userID uuid.UUID, content string, replyTo *uuid.UUID) (*domain.Message, *domain.User, error)
}

// Deps are the collaborators a session needs. All of them are injected so
// tests can run sessions against fakes.
type Deps struct {
	Log        *slog.Logger
	Verifier   TokenVerifier
	Registry   contracts.Registry
	Dispatcher contracts.Broadcaster
	Membership domain.MembershipRepository
	Messages   MessageCreator
	Presence   contracts.PresenceStore
	WS         *config.WSConfig
}

// Session is the per-connection state machine: handshake, command loop,
// exactly-once cleanup. One session owns exactly one transport connection.
type Session struct {
	deps    Deps
	sock    *ws.WebSocket
	client  *ws.RuntimeClient
	userID  uuid.UUID
	state   atomic.Int32
	limiter *rate.Limiter
	cleanup sync.Once
}

func New(deps Deps, sock *ws.WebSocket) *Session {
	return &Session{
		deps:    deps,
		sock:    sock,
		limiter: rate.NewLimiter(rate.Limit(deps.WS.CommandRate), deps.WS.CommandBurst),
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

// Run drives the session to completion: verify the credential, register the
// connection, process inbound commands in arrival order, and clean up once
// the transport goes away. It returns when the session is Closed.
func (s *Session) Run(ctx context.Context, credential string) {
	log := s.deps.Log

	userID, err := s.deps.Verifier.ValidateToken(credential)
	if err != nil || credential == "" {
		log.WarnContext(ctx, "session - handshake - authentication failed", "err", err)
		s.closePolicyViolation("authentication failed")
		s.state.Store(int32(StateClosed))
		return
	}
	s.userID = userID
	s.transition(StateConnecting, StateAuthenticated)

	s.client = ws.NewClient(ctx, s.sock, userID, s.deps.WS.SendBuffer)
	s.deps.Registry.Register(s.client, userID)
	s.transition(StateAuthenticated, StateActive)
	log.InfoContext(ctx, "session - handshake - connected", "user_id", userID, "conn_id", s.client.ID())

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go s.heartbeat(hbCtx)

	defer func() {
		stopHeartbeat()
		s.Close(context.WithoutCancel(ctx))
	}()

	// Commands are handled inline so per-connection arrival order is
	// preserved.
	s.sock.ReadLoop(func(raw []byte) {
		s.handleFrame(ctx, raw)
	})
}

// Close tears the session down: unregister, presence clear, transport close.
// Safe to call concurrently with a read error and an external shutdown; the
// cleanup body runs exactly once.
func (s *Session) Close(ctx context.Context) {
	s.cleanup.Do(func() {
		s.state.Store(int32(StateClosed))
		if s.client != nil {
			s.deps.Registry.Unregister(s.client)
			s.client.Close()
		}
		if err := s.deps.Presence.Clear(ctx, s.userID.String()); err != nil {
			s.deps.Log.WarnContext(ctx, "session - close - presence clear failed", "user_id", s.userID, "err", err)
		}
		s.deps.Log.InfoContext(ctx, "session - close - disconnected", "user_id", s.userID)
	})
}

func (s *Session) handleFrame(ctx context.Context, raw []byte) {
	if !s.limiter.Allow() {
		s.sendError(ctx, domain.ErrCodeRateLimited, "too many commands")
		return
	}
	cmd, err := domain.ParseCommand(raw)
	if err != nil {
		s.sendError(ctx, domain.ErrCodeBadCommand, "malformed command")
		return
	}
	switch cmd.Type {
	case domain.CmdJoinChannel:
		s.handleJoin(ctx, cmd.Data)
	case domain.CmdLeaveChannel:
		s.handleLeave(ctx, cmd.Data)
	case domain.CmdSendMessage:
		s.handleSend(ctx, cmd.Data)
	case domain.CmdTyping:
		s.handleTyping(ctx, cmd.Data)
	case domain.CmdUpdatePresence:
		s.handlePresence(ctx, cmd.Data)
	default:
		s.sendError(ctx, domain.ErrCodeUnknownKind, "unknown message type: "+string(cmd.Type))
	}
}

func (s *Session) handleJoin(ctx context.Context, data domain.CommandData) {
	channelID, ok := s.channelID(ctx, data)
	if !ok {
		return
	}
	member, err := s.deps.Membership.IsMember(ctx, s.userID, channelID)
	if err != nil {
		s.deps.Log.ErrorContext(ctx, "session - join - membership check failed", "channel_id", channelID, "user_id", s.userID, "err", err)
		s.sendError(ctx, domain.ErrCodeForbidden, "membership check failed")
		return
	}
	if !member {
		s.sendError(ctx, domain.ErrCodeForbidden, "not a member of channel")
		return
	}
	s.deps.Registry.Subscribe(channelID, s.userID)
	s.deps.Dispatcher.Broadcast(ctx, channelID, domain.UserJoinedEvent(s.userID.String(), channelID.String()))
}

func (s *Session) handleLeave(ctx context.Context, data domain.CommandData) {
	channelID, ok := s.channelID(ctx, data)
	if !ok {
		return
	}
	s.deps.Registry.Unsubscribe(channelID, s.userID)
	s.deps.Dispatcher.Broadcast(ctx, channelID, domain.UserLeftEvent(s.userID.String(), channelID.String()))
}

func (s *Session) handleSend(ctx context.Context, data domain.CommandData) {
	channelID, ok := s.channelID(ctx, data)
	if !ok {
		return
	}
	if data.Content == "" {
		s.sendError(ctx, domain.ErrCodeBadCommand, "content is required")
		return
	}
	var replyTo *uuid.UUID
	if data.ReplyTo != "" {
		id, err := uuid.Parse(data.ReplyTo)
		if err != nil {
			s.sendError(ctx, domain.ErrCodeBadCommand, "invalid reply_to")
			return
		}
		replyTo = &id
	}
	msg, sender, err := s.deps.Messages.CreateMessage(ctx, channelID, s.userID, data.Content, replyTo)
	if err != nil {
		if err == domain.ErrNotChannelMember {
			s.sendError(ctx, domain.ErrCodeForbidden, "not a member of channel")
			return
		}
		s.sendError(ctx, domain.ErrCodePersistence, "failed to persist message")
		return
	}
	// The sender is a subscriber like any other and receives its own echo.
	s.deps.Dispatcher.Broadcast(ctx, channelID, domain.NewMessageEvent(msg, sender))
}

func (s *Session) handleTyping(ctx context.Context, data domain.CommandData) {
	channelID, ok := s.channelID(ctx, data)
	if !ok {
		return
	}
	s.deps.Dispatcher.Broadcast(ctx, channelID, domain.TypingEvent(s.userID.String(), channelID.String(), data.IsTyping))
}

func (s *Session) handlePresence(ctx context.Context, data domain.CommandData) {
	status := data.Status
	if status == "" {
		status = "online"
	}
	if err := s.deps.Presence.UpdateStatus(ctx, s.userID.String(), status, s.deps.WS.PresenceTTL); err != nil {
		s.deps.Log.WarnContext(ctx, "session - presence - update failed", "user_id", s.userID, "err", err)
	}
	if data.ChannelID == "" {
		return
	}
	channelID, err := uuid.Parse(data.ChannelID)
	if err != nil {
		s.sendError(ctx, domain.ErrCodeBadCommand, "invalid channel id")
		return
	}
	s.deps.Dispatcher.Broadcast(ctx, channelID, domain.PresenceEvent(s.userID.String(), channelID.String(), status))
}

// heartbeat keeps the user's presence entry alive while the session lives.
func (s *Session) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.deps.WS.HeartbeatTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.deps.Presence.UpdateStatus(ctx, s.userID.String(), "online", s.deps.WS.PresenceTTL); err != nil {
				s.deps.Log.WarnContext(ctx, "session - heartbeat - presence update failed", "user_id", s.userID, "err", err)
			}
		}
	}
}

func (s *Session) channelID(ctx context.Context, data domain.CommandData) (uuid.UUID, bool) {
	id, err := uuid.Parse(data.ChannelID)
	if err != nil {
		s.sendError(ctx, domain.ErrCodeBadCommand, "invalid channel id")
		return uuid.Nil, false
	}
	return id, true
}

// sendError answers the originating connection only; errors are never
// broadcast.
func (s *Session) sendError(ctx context.Context, code, message string) {
	if s.client == nil {
		return
	}
	s.deps.Dispatcher.SendTo(ctx, s.client, domain.ErrorEvent(code, message))
}

func (s *Session) closePolicyViolation(reason string) {
	deadline := time.Now().Add(time.Second)
	_ = s.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	s.sock.Close()
}
