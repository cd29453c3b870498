package domain

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository handles the persistent identity.
type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
}

// MembershipRepository is the membership oracle: may this user act on this
// channel. Backed by the channel_members table.
type MembershipRepository interface {
	IsMember(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
	AddMember(ctx context.Context, userID, channelID uuid.UUID) error
}

// ChannelRepository handles channel lifecycle.
type ChannelRepository interface {
	GetChannelByID(ctx context.Context, id uuid.UUID) (*Channel, error)
	CreateChannel(ctx context.Context, ch *Channel) error
}

// MessageRepository handles message persistence and channel history.
type MessageRepository interface {
	SaveMessage(ctx context.Context, msg *Message) error
	ListChannelMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]Message, error)
}
