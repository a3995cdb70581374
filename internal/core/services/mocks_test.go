package services

import (
	"context"
	"sync"

	"tempvoice/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) Guild(ctx context.Context, id domain.GuildID) (*domain.Guild, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Guild), args.Error(1)
}

func (m *MockPlatform) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.ChannelID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.ChannelID), args.Error(1)
}

func (m *MockPlatform) DeleteRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, reason string) error {
	args := m.Called(ctx, guildID, roomID, reason)
	return args.Error(0)
}

func (m *MockPlatform) EditRoom(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, edit domain.RoomEdit) error {
	args := m.Called(ctx, guildID, roomID, edit)
	return args.Error(0)
}

func (m *MockPlatform) SetRoomStatus(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, status, reason string) error {
	args := m.Called(ctx, guildID, roomID, status, reason)
	return args.Error(0)
}

func (m *MockPlatform) SetOverwrite(ctx context.Context, guildID domain.GuildID, roomID domain.ChannelID, ow domain.Overwrite, reason string) error {
	args := m.Called(ctx, guildID, roomID, ow, reason)
	return args.Error(0)
}

func (m *MockPlatform) MoveMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID, roomID domain.ChannelID) error {
	args := m.Called(ctx, guildID, member, roomID)
	return args.Error(0)
}

func (m *MockPlatform) DisconnectMember(ctx context.Context, guildID domain.GuildID, member domain.MemberID) error {
	args := m.Called(ctx, guildID, member)
	return args.Error(0)
}

func (m *MockPlatform) SendDirect(ctx context.Context, member domain.MemberID, text string) error {
	args := m.Called(ctx, member, text)
	return args.Error(0)
}

func (m *MockPlatform) SendLog(ctx context.Context, entry domain.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type staticStore struct {
	snapshot *domain.PolicySnapshot
}

func newStaticStore(policies ...*domain.GuildPolicy) *staticStore {
	return &staticStore{snapshot: domain.NewPolicySnapshot(policies)}
}

func (s *staticStore) Policy(guildID domain.GuildID) (*domain.GuildPolicy, bool) {
	return s.snapshot.Guild(guildID)
}

func (s *staticStore) Snapshot() *domain.PolicySnapshot {
	return s.snapshot
}

func (s *staticStore) Reload(context.Context) error {
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	entries []domain.LogEntry
}

func (s *recordingSink) Record(_ context.Context, entry domain.LogEntry) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
}

func (s *recordingSink) Kinds() []domain.LogKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]domain.LogKind, 0, len(s.entries))
	for _, e := range s.entries {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
