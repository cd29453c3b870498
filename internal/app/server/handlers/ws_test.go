package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"huddle/internal/app/dispatch"
	"huddle/internal/app/registry"
	"huddle/internal/app/server/session"
	"huddle/internal/config"
	"huddle/internal/core/domain"
	"huddle/internal/core/services"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type fakeMembership struct {
	mu      sync.Mutex
	members map[string]bool
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{members: make(map[string]bool)}
}

func memberKey(userID, channelID uuid.UUID) string {
	return userID.String() + "/" + channelID.String()
}

func (m *fakeMembership) IsMember(_ context.Context, userID, channelID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[memberKey(userID, channelID)], nil
}

func (m *fakeMembership) AddMember(_ context.Context, userID, channelID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[memberKey(userID, channelID)] = true
	return nil
}

type fakeMessages struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	fail  bool
	saved []*domain.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{users: make(map[uuid.UUID]*domain.User)}
}

func (f *fakeMessages) CreateMessage(_ context.Context, channelID, userID uuid.UUID, content string, replyTo *uuid.UUID) (*domain.Message, *domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, nil, errors.New("database down")
	}
	user, ok := f.users[userID]
	if !ok {
		user = &domain.User{ID: userID, Username: "user-" + userID.String()[:8], DisplayName: "User"}
	}
	msg := domain.NewMessage(channelID, userID, content, replyTo)
	f.saved = append(f.saved, msg)
	return msg, user, nil
}

type fakePresence struct {
	mu     sync.Mutex
	status map[string]string
}

func newFakePresence() *fakePresence {
	return &fakePresence{status: make(map[string]string)}
}

func (p *fakePresence) UpdateStatus(_ context.Context, userID, status string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[userID] = status
	return nil
}

func (p *fakePresence) GetStatus(_ context.Context, userID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.status[userID]; ok {
		return s, nil
	}
	return "offline", nil
}

func (p *fakePresence) Clear(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.status, userID)
	return nil
}

type wsEnv struct {
	server     *httptest.Server
	registry   *registry.Registry
	membership *fakeMembership
	messages   *fakeMessages
	presence   *fakePresence
	tokens     *services.TokenService
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	reg := registry.NewRegistry()
	log := slog.Default()
	dispatcher := dispatch.NewDispatcher(log, reg)
	membership := newFakeMembership()
	messages := newFakeMessages()
	presence := newFakePresence()
	tokens := services.NewTokenService("test-secret")

	deps := session.Deps{
		Log:        log,
		Verifier:   tokens,
		Registry:   reg,
		Dispatcher: dispatcher,
		Membership: membership,
		Messages:   messages,
		Presence:   presence,
		WS: &config.WSConfig{
			WriteTimeout:   time.Second,
			MaxMessageSize: 64 * 1024,
			SendBuffer:     32,
			CommandRate:    1000,
			CommandBurst:   1000,
			PresenceTTL:    time.Minute,
			HeartbeatTTL:   time.Minute,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(deps).Handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &wsEnv{
		server:     srv,
		registry:   reg,
		membership: membership,
		messages:   messages,
		presence:   presence,
		tokens:     tokens,
	}
}

func (e *wsEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *wsEnv) tokenFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := e.tokens.GenerateToken(userID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

type receivedEvent struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func sendCommand(t *testing.T, conn *websocket.Conn, kind string, data map[string]any) {
	t.Helper()
	frame, _ := json.Marshal(map[string]any{"type": kind, "data": data})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write %s: %v", kind, err)
	}
}

// waitForEvent reads frames until one of the wanted type arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, wantType string) receivedEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", wantType, err)
		}
		var ev receivedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Type == wantType {
			return ev
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestInvalidTokenClosesWithPolicyViolation(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "not-a-token")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.ClosePolicyViolation)
	}
}

func TestInvalidTokenNeverRegisters(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "bogus")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, _ = conn.ReadMessage()

	// No user may own this connection.
	userID := uuid.New()
	if got := env.registry.ConnectionCount(userID); got != 0 {
		t.Fatalf("expected no connections, got %d", got)
	}
}

func TestSendMessageEchoesToAllSubscriberConnections(t *testing.T) {
	env := newWSEnv(t)
	channelID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()
	env.membership.AddMember(context.Background(), userA, channelID)
	env.membership.AddMember(context.Background(), userB, channelID)

	// User A is connected twice (multi-device), user B once.
	connA1 := env.dial(t, env.tokenFor(t, userA))
	connA2 := env.dial(t, env.tokenFor(t, userA))
	connB := env.dial(t, env.tokenFor(t, userB))
	waitFor(t, func() bool {
		return env.registry.ConnectionCount(userA) == 2 && env.registry.ConnectionCount(userB) == 1
	}, "connections never registered")

	for _, conn := range []*websocket.Conn{connA1, connA2, connB} {
		sendCommand(t, conn, "join_channel", map[string]any{"channel_id": channelID.String()})
	}
	waitFor(t, func() bool {
		return env.registry.SubscriberCount(channelID) == 2
	}, "subscriptions never registered")

	sendCommand(t, connA1, "send_message", map[string]any{
		"channel_id": channelID.String(),
		"content":    "hello there",
	})

	// Sender echo and peer delivery carry identical channel, content, and
	// sender id.
	for name, conn := range map[string]*websocket.Conn{"A1": connA1, "A2": connA2, "B": connB} {
		ev := waitForEvent(t, conn, "new_message")
		if got := ev.Data["channel_id"]; got != channelID.String() {
			t.Errorf("%s: channel_id = %v, want %s", name, got, channelID)
		}
		if got := ev.Data["content"]; got != "hello there" {
			t.Errorf("%s: content = %v", name, got)
		}
		if got := ev.Data["user_id"]; got != userA.String() {
			t.Errorf("%s: user_id = %v, want %s", name, got, userA)
		}
	}
}

func TestJoinDeniedForNonMember(t *testing.T) {
	env := newWSEnv(t)
	channelID := uuid.New()
	userID := uuid.New()

	conn := env.dial(t, env.tokenFor(t, userID))
	sendCommand(t, conn, "join_channel", map[string]any{"channel_id": channelID.String()})

	ev := waitForEvent(t, conn, "error")
	if got := ev.Data["code"]; got != domain.ErrCodeForbidden {
		t.Errorf("error code = %v, want %s", got, domain.ErrCodeForbidden)
	}
	if got := env.registry.SubscriberCount(channelID); got != 0 {
		t.Errorf("non-member was subscribed, count=%d", got)
	}
}

func TestPersistenceFailureAnswersSenderOnly(t *testing.T) {
	env := newWSEnv(t)
	channelID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()
	env.membership.AddMember(context.Background(), userA, channelID)
	env.membership.AddMember(context.Background(), userB, channelID)

	connA := env.dial(t, env.tokenFor(t, userA))
	connB := env.dial(t, env.tokenFor(t, userB))
	sendCommand(t, connA, "join_channel", map[string]any{"channel_id": channelID.String()})
	sendCommand(t, connB, "join_channel", map[string]any{"channel_id": channelID.String()})
	waitFor(t, func() bool {
		return env.registry.SubscriberCount(channelID) == 2
	}, "subscriptions never registered")

	env.messages.mu.Lock()
	env.messages.fail = true
	env.messages.mu.Unlock()

	sendCommand(t, connA, "send_message", map[string]any{
		"channel_id": channelID.String(),
		"content":    "doomed",
	})

	ev := waitForEvent(t, connA, "error")
	if got := ev.Data["code"]; got != domain.ErrCodePersistence {
		t.Errorf("error code = %v, want %s", got, domain.ErrCodePersistence)
	}

	// B must see nothing from the failed send.
	_ = connB.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	for {
		_, raw, err := connB.ReadMessage()
		if err != nil {
			break
		}
		var got receivedEvent
		_ = json.Unmarshal(raw, &got)
		if got.Type == "new_message" || got.Type == "error" {
			t.Fatalf("B received %q after failed persistence", got.Type)
		}
	}
}

func TestUnknownCommandKind(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, env.tokenFor(t, uuid.New()))

	sendCommand(t, conn, "make_coffee", map[string]any{})
	ev := waitForEvent(t, conn, "error")
	if got := ev.Data["code"]; got != domain.ErrCodeUnknownKind {
		t.Errorf("error code = %v, want %s", got, domain.ErrCodeUnknownKind)
	}
	msg, _ := ev.Data["message"].(string)
	if !strings.Contains(msg, "make_coffee") {
		t.Errorf("error message %q does not name the unknown kind", msg)
	}
}

func TestMalformedFrame(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, env.tokenFor(t, uuid.New()))

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := waitForEvent(t, conn, "error")
	if got := ev.Data["code"]; got != domain.ErrCodeBadCommand {
		t.Errorf("error code = %v, want %s", got, domain.ErrCodeBadCommand)
	}
}

func TestDisconnectPurgesSubscriptions(t *testing.T) {
	env := newWSEnv(t)
	channelID := uuid.New()
	userID := uuid.New()
	env.membership.AddMember(context.Background(), userID, channelID)

	conn := env.dial(t, env.tokenFor(t, userID))
	sendCommand(t, conn, "join_channel", map[string]any{"channel_id": channelID.String()})
	waitFor(t, func() bool {
		return env.registry.SubscriberCount(channelID) == 1
	}, "subscription never registered")

	// Transport close without an explicit leave.
	conn.Close()

	waitFor(t, func() bool {
		return env.registry.SubscriberCount(channelID) == 0 &&
			env.registry.ConnectionCount(userID) == 0
	}, "subscription survived disconnect")
}

func TestTypingBroadcast(t *testing.T) {
	env := newWSEnv(t)
	channelID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()
	env.membership.AddMember(context.Background(), userA, channelID)
	env.membership.AddMember(context.Background(), userB, channelID)

	connA := env.dial(t, env.tokenFor(t, userA))
	connB := env.dial(t, env.tokenFor(t, userB))
	sendCommand(t, connA, "join_channel", map[string]any{"channel_id": channelID.String()})
	sendCommand(t, connB, "join_channel", map[string]any{"channel_id": channelID.String()})
	waitFor(t, func() bool {
		return env.registry.SubscriberCount(channelID) == 2
	}, "subscriptions never registered")

	sendCommand(t, connA, "typing", map[string]any{
		"channel_id": channelID.String(),
		"is_typing":  true,
	})

	ev := waitForEvent(t, connB, "typing")
	if got := ev.Data["user_id"]; got != userA.String() {
		t.Errorf("typing user_id = %v, want %s", got, userA)
	}
	if got, _ := ev.Data["is_typing"].(bool); !got {
		t.Errorf("is_typing = %v, want true", ev.Data["is_typing"])
	}
}

func TestUpdatePresence(t *testing.T) {
	env := newWSEnv(t)
	userID := uuid.New()
	conn := env.dial(t, env.tokenFor(t, userID))
	waitFor(t, func() bool {
		return env.registry.ConnectionCount(userID) == 1
	}, "connection never registered")

	sendCommand(t, conn, "update_presence", map[string]any{"status": "away"})

	waitFor(t, func() bool {
		s, _ := env.presence.GetStatus(context.Background(), userID.String())
		return s == "away"
	}, "presence never updated")
}

func TestLeaveChannelStopsDelivery(t *testing.T) {
	env := newWSEnv(t)
	channelID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()
	env.membership.AddMember(context.Background(), userA, channelID)
	env.membership.AddMember(context.Background(), userB, channelID)

	connA := env.dial(t, env.tokenFor(t, userA))
	connB := env.dial(t, env.tokenFor(t, userB))
	sendCommand(t, connA, "join_channel", map[string]any{"channel_id": channelID.String()})
	sendCommand(t, connB, "join_channel", map[string]any{"channel_id": channelID.String()})
	waitFor(t, func() bool {
		return env.registry.SubscriberCount(channelID) == 2
	}, "subscriptions never registered")

	sendCommand(t, connB, "leave_channel", map[string]any{"channel_id": channelID.String()})
	waitFor(t, func() bool {
		return env.registry.SubscriberCount(channelID) == 1
	}, "unsubscribe never happened")

	sendCommand(t, connA, "send_message", map[string]any{
		"channel_id": channelID.String(),
		"content":    "after leave",
	})
	waitForEvent(t, connA, "new_message")

	_ = connB.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	for {
		_, raw, err := connB.ReadMessage()
		if err != nil {
			break
		}
		var got receivedEvent
		_ = json.Unmarshal(raw, &got)
		if got.Type == "new_message" {
			t.Fatal("B received a message after leaving the channel")
		}
	}
}
