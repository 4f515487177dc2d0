package memory

import (
	"sync"

	"eduquiz-service/internal/app"
	"eduquiz-service/internal/domain"
	"github.com/google/uuid"
)

// RoomStore is an in-memory implementation of app.RoomRegistry.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Room),
	}
}

func (s *RoomStore) Create(hostID string, questions []domain.Question) *app.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for {
		if _, taken := s.rooms[id]; !taken {
			break
		}
		id = uuid.NewString()
	}
	room := app.NewRoom(id, hostID, questions)
	s.rooms[id] = room
	return room
}

func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) Remove(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}
