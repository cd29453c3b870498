package services

import (
	"context"
	"huddle/internal/core/contracts"
	"huddle/internal/core/domain"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("message-service")

// MessageService persists messages and loads channel history. Both the
// WebSocket session and the REST handler go through it, so the two
// transports share one persistence path.
type MessageService struct {
	repo       domain.MessageRepository
	users      domain.UserRepository
	membership domain.MembershipRepository
	txManager  contracts.TxManager
	log        *slog.Logger
}

func NewMessageService(
	log *slog.Logger,
	repo domain.MessageRepository,
	users domain.UserRepository,
	membership domain.MembershipRepository,
	txManager contracts.TxManager,
) *MessageService {
	return &MessageService{
		log:        log,
		repo:       repo,
		users:      users,
		membership: membership,
		txManager:  txManager,
	}
}

// CreateMessage checks membership, persists the message, and returns it
// together with the sender's display fields for the broadcast payload.
// domain.ErrNotChannelMember is returned when the oracle denies the user.
func (s *MessageService) CreateMessage(
	ctx context.Context,
	channelID, userID uuid.UUID,
	content string,
	replyTo *uuid.UUID,
) (*domain.Message, *domain.User, error) {
	ctx, span := tracer.Start(ctx, "MessageService.CreateMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("channel_id", channelID.String()),
		attribute.String("user_id", userID.String()),
	)

	ok, err := s.membership.IsMember(ctx, userID, channelID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "messages - create message - membership check failed", "channel_id", channelID, "user_id", userID, "err", err)
		return nil, nil, err
	}
	if !ok {
		return nil, nil, domain.ErrNotChannelMember
	}

	msg := domain.NewMessage(channelID, userID, content, replyTo)
	if err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.SaveMessage(txCtx, msg)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		s.log.ErrorContext(ctx, "messages - create message - save failed", "channel_id", channelID, "user_id", userID, "err", err)
		return nil, nil, err
	}

	sender, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "messages - create message - load sender failed", "user_id", userID, "err", err)
		return nil, nil, err
	}
	s.log.InfoContext(ctx, "messages - create message - saved", "message_id", msg.ID, "channel_id", channelID, "user_id", userID)
	return msg, sender, nil
}

// ChannelHistory returns the most recent messages of a channel, membership
// checked the same way as writes.
func (s *MessageService) ChannelHistory(ctx context.Context, channelID, userID uuid.UUID, limit int) ([]domain.Message, error) {
	ctx, span := tracer.Start(ctx, "MessageService.ChannelHistory")
	defer span.End()
	ok, err := s.membership.IsMember(ctx, userID, channelID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotChannelMember
	}
	msgs, err := s.repo.ListChannelMessages(ctx, channelID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db read failed")
		s.log.ErrorContext(ctx, "messages - channel history - list failed", "channel_id", channelID, "err", err)
		return nil, err
	}
	return msgs, nil
}
