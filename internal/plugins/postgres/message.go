package postgres

import (
	"context"
	"database/sql"
	"huddle/internal/core/domain"

	"github.com/google/uuid"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if msg.ChannelID == uuid.Nil {
		return domain.ErrInvalidChannelID
	}
	if msg.UserID == uuid.Nil {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, user_id, content, reply_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		msg.ID,
		msg.ChannelID,
		msg.UserID,
		msg.Content,
		msg.ReplyTo,
		msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) ListChannelMessages(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.Message, error) {
	if channelID == uuid.Nil {
		return nil, domain.ErrInvalidChannelID
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, channel_id, user_id, content, reply_to, created_at
		FROM messages
		WHERE channel_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, channelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.ChannelID,
			&m.UserID,
			&m.Content,
			&m.ReplyTo,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
