package services

import (
	"context"
	"errors"
	"huddle/internal/core/domain"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

type fakeChannelRepo struct {
	channels  map[uuid.UUID]*domain.Channel
	createErr error
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{channels: make(map[uuid.UUID]*domain.Channel)}
}

func (r *fakeChannelRepo) GetChannelByID(_ context.Context, id uuid.UUID) (*domain.Channel, error) {
	if ch, ok := r.channels[id]; ok {
		return ch, nil
	}
	return nil, domain.ErrChannelNotFound
}

func (r *fakeChannelRepo) CreateChannel(_ context.Context, ch *domain.Channel) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.channels[ch.ID] = ch
	return nil
}

type recordingMembership struct {
	added map[string]bool
}

func newRecordingMembership() *recordingMembership {
	return &recordingMembership{added: make(map[string]bool)}
}

func (m *recordingMembership) IsMember(_ context.Context, userID, channelID uuid.UUID) (bool, error) {
	return m.added[userID.String()+"/"+channelID.String()], nil
}

func (m *recordingMembership) AddMember(_ context.Context, userID, channelID uuid.UUID) error {
	m.added[userID.String()+"/"+channelID.String()] = true
	return nil
}

func TestCreateChannelEnrollsCreator(t *testing.T) {
	repo := newFakeChannelRepo()
	membership := newRecordingMembership()
	svc := NewChannelService(slog.Default(), repo, membership, passthroughTx{})

	workspaceID := uuid.New()
	creator := uuid.New()
	ch, err := svc.CreateChannel(context.Background(), workspaceID, creator, "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ch.WorkspaceID != workspaceID || ch.Name != "general" {
		t.Errorf("channel fields mismatch: %+v", ch)
	}
	if ok, _ := membership.IsMember(context.Background(), creator, ch.ID); !ok {
		t.Error("creator was not enrolled as member")
	}
}

func TestCreateChannelFailureAddsNoMember(t *testing.T) {
	repo := newFakeChannelRepo()
	repo.createErr = errors.New("insert failed")
	membership := newRecordingMembership()
	svc := NewChannelService(slog.Default(), repo, membership, passthroughTx{})

	if _, err := svc.CreateChannel(context.Background(), uuid.New(), uuid.New(), "general"); err == nil {
		t.Fatal("expected create failure to surface")
	}
	if len(membership.added) != 0 {
		t.Error("membership written despite failed channel insert")
	}
}

func TestJoinUnknownChannel(t *testing.T) {
	svc := NewChannelService(slog.Default(), newFakeChannelRepo(), newRecordingMembership(), passthroughTx{})
	if err := svc.Join(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, domain.ErrChannelNotFound) {
		t.Fatalf("err = %v, want %v", err, domain.ErrChannelNotFound)
	}
}

func TestJoinIdempotent(t *testing.T) {
	repo := newFakeChannelRepo()
	membership := newRecordingMembership()
	svc := NewChannelService(slog.Default(), repo, membership, passthroughTx{})

	ch, err := svc.CreateChannel(context.Background(), uuid.New(), uuid.New(), "general")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	userID := uuid.New()
	for i := 0; i < 2; i++ {
		if err := svc.Join(context.Background(), ch.ID, userID); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}
	if ok, _ := membership.IsMember(context.Background(), userID, ch.ID); !ok {
		t.Error("user not enrolled after join")
	}
}
