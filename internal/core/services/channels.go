package services

import (
	"context"
	"huddle/internal/core/contracts"
	"huddle/internal/core/domain"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ChannelService handles channel lifecycle and membership writes.
type ChannelService struct {
	channels   domain.ChannelRepository
	membership domain.MembershipRepository
	txManager  contracts.TxManager
	log        *slog.Logger
}

func NewChannelService(
	log *slog.Logger,
	channels domain.ChannelRepository,
	membership domain.MembershipRepository,
	txManager contracts.TxManager,
) *ChannelService {
	return &ChannelService{
		log:        log,
		channels:   channels,
		membership: membership,
		txManager:  txManager,
	}
}

// CreateChannel creates the channel and enrolls the creator as its first
// member in one transaction, so a created channel is never creator-less.
func (s *ChannelService) CreateChannel(ctx context.Context, workspaceID, creatorID uuid.UUID, name string) (*domain.Channel, error) {
	ch := &domain.Channel{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedAt:   time.Now(),
	}
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.channels.CreateChannel(txCtx, ch); err != nil {
			return err
		}
		return s.membership.AddMember(txCtx, creatorID, ch.ID)
	}); err != nil {
		s.log.ErrorContext(ctx, "channels - create - failed", "workspace_id", workspaceID, "name", name, "err", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "channels - create - created", "channel_id", ch.ID, "workspace_id", workspaceID)
	return ch, nil
}

// Join enrolls the user in an existing channel. Joining twice is a no-op.
func (s *ChannelService) Join(ctx context.Context, channelID, userID uuid.UUID) error {
	if _, err := s.channels.GetChannelByID(ctx, channelID); err != nil {
		return err
	}
	return s.membership.AddMember(ctx, userID, channelID)
}

// GetChannel loads one channel by id.
func (s *ChannelService) GetChannel(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	return s.channels.GetChannelByID(ctx, id)
}
