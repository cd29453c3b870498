package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated principal. Created through the auth surface,
// referenced (never owned) by the realtime core.
type User struct {
	ID           uuid.UUID
	Username     string
	DisplayName  string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
}

// Channel is a broadcast scope inside a workspace.
type Channel struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string
	CreatedAt   time.Time
}

// Message is a persisted chat entry.
type Message struct {
	ID        uuid.UUID
	ChannelID uuid.UUID
	UserID    uuid.UUID
	Content   string
	ReplyTo   *uuid.UUID
	CreatedAt time.Time
}

func NewMessage(channelID, userID uuid.UUID, content string, replyTo *uuid.UUID) *Message {
	return &Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		UserID:    userID,
		Content:   content,
		ReplyTo:   replyTo,
		CreatedAt: time.Now(),
	}
}
