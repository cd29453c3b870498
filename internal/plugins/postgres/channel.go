package postgres

import (
	"context"
	"database/sql"
	"huddle/internal/core/domain"

	"github.com/google/uuid"
)

type ChannelRepo struct {
	db *sql.DB
}

func NewChannelRepo(db *sql.DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

func (r *ChannelRepo) GetChannelByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidChannelID
	}
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, created_at
		FROM channels
		WHERE id = $1
	`, id)
	var ch domain.Channel
	err := row.Scan(&ch.ID, &ch.WorkspaceID, &ch.Name, &ch.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrChannelNotFound
		}
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepo) CreateChannel(ctx context.Context, ch *domain.Channel) error {
	if ch.ID == uuid.Nil {
		return domain.ErrInvalidChannelID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO channels (id, workspace_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		ch.ID,
		ch.WorkspaceID,
		ch.Name,
		ch.CreatedAt,
	)
	return err
}

// MembershipRepo is the persistent side of the membership oracle.
type MembershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

func (r *MembershipRepo) IsMember(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, domain.ErrInvalidUserID
	}
	if channelID == uuid.Nil {
		return false, domain.ErrInvalidChannelID
	}
	exec := GetExecutor(ctx, r.db)
	var exists bool
	err := exec.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM channel_members
			WHERE user_id = $1 AND channel_id = $2
		)
	`, userID, channelID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *MembershipRepo) AddMember(ctx context.Context, userID, channelID uuid.UUID) error {
	if userID == uuid.Nil {
		return domain.ErrInvalidUserID
	}
	if channelID == uuid.Nil {
		return domain.ErrInvalidChannelID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO channel_members (user_id, channel_id, joined_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, channel_id) DO NOTHING
	`, userID, channelID)
	return err
}
