package memory

import (
	"context"
	"sync"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/ports"
)

// MemoryRoomRepository keeps live rooms in a map. Rooms are stored and
// returned by value so callers never share mutable state with the registry.
type MemoryRoomRepository struct {
	rooms map[domain.ChannelID]domain.TempRoom
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.ChannelID]domain.TempRoom),
	}
}

// Put inserts or replaces the entry for room.RoomID.
func (r *MemoryRoomRepository) Put(ctx context.Context, room *domain.TempRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms[room.RoomID] = *room
	return nil
}

func (r *MemoryRoomRepository) Get(ctx context.Context, id domain.ChannelID) (*domain.TempRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	return &room, nil
}

func (r *MemoryRoomRepository) Remove(ctx context.Context, id domain.ChannelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[id]; !exists {
		return domain.ErrRoomNotFound
	}

	delete(r.rooms, id)
	return nil
}

func (r *MemoryRoomRepository) List(ctx context.Context) ([]*domain.TempRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*domain.TempRoom, 0, len(r.rooms))
	for _, room := range r.rooms {
		room := room
		rooms = append(rooms, &room)
	}

	return rooms, nil
}

func (r *MemoryRoomRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
