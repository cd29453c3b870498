package domain

import (
	"encoding/json"
	"time"
)

// Inbound command kinds. The session dispatches on this closed set; anything
// else is answered with an error event naming the unknown kind.
type CommandKind string

const (
	CmdJoinChannel    CommandKind = "join_channel"
	CmdLeaveChannel   CommandKind = "leave_channel"
	CmdSendMessage    CommandKind = "send_message"
	CmdTyping         CommandKind = "typing"
	CmdUpdatePresence CommandKind = "update_presence"
)

// Outbound event kinds.
const (
	EventNewMessage = "new_message"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventTyping     = "typing"
	EventPresence   = "presence"
	EventError      = "error"
)

// Error codes carried in error events.
const (
	ErrCodeBadCommand  = "bad_command"
	ErrCodeUnknownKind = "unknown_type"
	ErrCodeForbidden   = "forbidden"
	ErrCodePersistence = "persistence_failed"
	ErrCodeRateLimited = "rate_limited"
)

// Command is one inbound frame: a kind plus a kind-dependent data body.
type Command struct {
	Type CommandKind `json:"type"`
	Data CommandData `json:"data"`
}

// CommandData is the union of fields the five command kinds use. ChannelID
// is required for every kind except update_presence, which may omit it.
type CommandData struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content,omitempty"`
	ReplyTo   string `json:"reply_to,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ParseCommand decodes one inbound frame. A decode failure means the frame
// was malformed; an unknown Type is left for the dispatcher to answer.
func ParseCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Event is one outbound frame. Data is a pointer to one of the payload
// structs below; the envelope is marshaled once per broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessagePayload is the body of a new_message event.
type MessagePayload struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Content     string    `json:"content"`
	ReplyTo     string    `json:"reply_to,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MembershipPayload is the body of user_joined and user_left events.
type MembershipPayload struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// TypingPayload is the body of a typing event.
type TypingPayload struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	IsTyping  bool   `json:"is_typing"`
}

// PresencePayload is the body of a presence event.
type PresencePayload struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Status    string `json:"status"`
}

// ErrorPayload is sent only to the connection that caused the error.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewMessageEvent(msg *Message, sender *User) Event {
	p := &MessagePayload{
		ID:          msg.ID.String(),
		ChannelID:   msg.ChannelID.String(),
		UserID:      msg.UserID.String(),
		Username:    sender.Username,
		DisplayName: sender.DisplayName,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt,
	}
	if msg.ReplyTo != nil {
		p.ReplyTo = msg.ReplyTo.String()
	}
	return Event{Type: EventNewMessage, Data: p}
}

func UserJoinedEvent(userID, channelID string) Event {
	return Event{Type: EventUserJoined, Data: &MembershipPayload{UserID: userID, ChannelID: channelID}}
}

func UserLeftEvent(userID, channelID string) Event {
	return Event{Type: EventUserLeft, Data: &MembershipPayload{UserID: userID, ChannelID: channelID}}
}

func TypingEvent(userID, channelID string, isTyping bool) Event {
	return Event{Type: EventTyping, Data: &TypingPayload{UserID: userID, ChannelID: channelID, IsTyping: isTyping}}
}

func PresenceEvent(userID, channelID, status string) Event {
	return Event{Type: EventPresence, Data: &PresencePayload{UserID: userID, ChannelID: channelID, Status: status}}
}

func ErrorEvent(code, message string) Event {
	return Event{Type: EventError, Data: &ErrorPayload{Code: code, Message: message}}
}
