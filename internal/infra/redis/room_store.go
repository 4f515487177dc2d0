package redis

import (
	"context"
	"sync"
	"time"

	"eduquiz-service/internal/app"
	"eduquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RoomStore is a Redis-aware implementation of app.RoomRegistry.
// Notes:
//   - Rooms stay in a local in-memory map so the in-process state
//     machine and broadcast logic keep working unchanged.
//   - Redis marks room liveness (and could be extended to share
//     snapshots or route cross-instance pub/sub).
//   - For true distribution you'd pair this with a pub/sub projector
//     that fans out room events.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(id), "1", s.ttl).Err()
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
	if _, ok := s.rooms[roomID]; !ok {
		return
	}
	delete(s.rooms, roomID)
	_ = s.client.Del(context.Background(), s.key(roomID)).Err()
}

func (s *RoomStore) key(roomID string) string {
	return "room:live:" + roomID
}
