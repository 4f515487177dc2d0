package app

import (
	"context"

	"eduquiz-service/internal/domain"
)

// RoomRegistry abstracts how live rooms are stored (in-memory, Redis-backed).
type RoomRegistry interface {
	Create(hostID string, questions []domain.Question) *Room
	Get(roomID string) (*Room, bool)
	Remove(roomID string)
}

// QuestionSetRepository loads stored question sets (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// RoomService contains the coordinator use cases. Every inbound event
// resolves to exactly one call on this type.
type RoomService struct {
	rooms RoomRegistry
	sets  QuestionSetRepository
}

func NewRoomService(rooms RoomRegistry, sets QuestionSetRepository) *RoomService {
	return &RoomService{rooms: rooms, sets: sets}
}

// CreateRoom validates the inline question list and opens a lobby for it.
func (s *RoomService) CreateRoom(_ context.Context, host domain.Identity, questions []domain.Question) (domain.RoomSnapshot, error) {
	if err := domain.ValidateQuestions(questions); err != nil {
		return domain.RoomSnapshot{}, err
	}
	room := s.rooms.Create(host.UserID, questions)
	return room.Snapshot(), nil
}

// CreateRoomFromSet opens a lobby for a question set stored in the bank.
func (s *RoomService) CreateRoomFromSet(ctx context.Context, host domain.Identity, setID string) (domain.RoomSnapshot, error) {
	set, err := s.sets.GetQuestionSet(ctx, setID)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return s.CreateRoom(ctx, host, set.Questions)
}

// Join adds the identity to a lobby room.
func (s *RoomService) Join(_ context.Context, roomID string, identity domain.Identity) (domain.Participant, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.Participant{}, domain.ErrRoomNotFound
	}
	return room.Join(identity)
}

// Start begins the quiz on behalf of the requester.
func (s *RoomService) Start(_ context.Context, roomID, requesterID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Start(requesterID)
}

// SubmitAnswer records an answer for the room's current question.
func (s *RoomService) SubmitAnswer(_ context.Context, roomID, userID string, questionIndex, optionIndex int) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.SubmitAnswer(userID, questionIndex, optionIndex)
}

// Subscribe returns a channel of broadcast events for a room.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *RoomService) Subscribe(_ context.Context, roomID string) (<-chan Event, func(), error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.Subscribe()
	return ch, cancel, nil
}

// Snapshot returns the current observable state of a room.
func (s *RoomService) Snapshot(_ context.Context, roomID string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return room.Snapshot(), nil
}

// Release reclaims a finished room. Called when a connection detaches;
// rooms still in play are left untouched.
func (s *RoomService) Release(_ context.Context, roomID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	if room.IsFinished() {
		s.rooms.Remove(roomID)
	}
}
