package app

import (
	"sort"
	"sync"
	"time"

	"eduquiz-service/internal/domain"
)

// awardPerQuestion is the flat score increment for a correct answer.
const awardPerQuestion = 1

// Room is the per-session state machine. Every mutation runs under the
// room mutex, so operations on one room are applied one at a time in
// arrival order; operations on different rooms never contend.
type Room struct {
	id     string
	hostID string
	// questions is fixed at creation and never edited afterwards.
	questions []domain.Question
	now       func() time.Time

	mu           sync.Mutex
	state        domain.RoomState
	participants map[string]*domain.Participant
	joinOrder    []string
	// answers[i] maps userID to the submitted option for question i.
	// The first recorded answer per (question, user) pair wins.
	answers      []map[string]int
	currentIndex int
	deadline     time.Time
	timer        *time.Timer
	// timerGen invalidates a pending deadline timer when advance happens
	// early; a firing with a stale generation is a no-op.
	timerGen    int
	subscribers map[chan Event]struct{}
	scoreboard  []domain.ScoreboardEntry
}

// NewRoom builds a room in the Lobby state.
func NewRoom(id, hostID string, questions []domain.Question) *Room {
	return NewRoomWithClock(id, hostID, questions, time.Now)
}

// NewRoomWithClock is test-only for deterministic deadlines.
func NewRoomWithClock(id, hostID string, questions []domain.Question, now func() time.Time) *Room {
	return &Room{
		id:           id,
		hostID:       hostID,
		questions:    questions,
		now:          now,
		state:        domain.StateLobby,
		participants: make(map[string]*domain.Participant),
		answers:      make([]map[string]int, len(questions)),
		subscribers:  make(map[chan Event]struct{}),
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) HostID() string { return r.hostID }

// Snapshot returns a consistent copy of the observable room state.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := make([]domain.Participant, 0, len(r.joinOrder))
	for _, userID := range r.joinOrder {
		participants = append(participants, *r.participants[userID])
	}
	return domain.RoomSnapshot{
		ID:            r.id,
		HostUserID:    r.hostID,
		State:         r.state,
		QuestionCount: len(r.questions),
		CurrentIndex:  r.currentIndex,
		Participants:  participants,
	}
}

// IsFinished reports whether the room reached its terminal state.
func (r *Room) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == domain.StateFinished
}

// Scoreboard returns the final ranking, or false before the room finishes.
func (r *Room) Scoreboard() ([]domain.ScoreboardEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.StateFinished {
		return nil, false
	}
	out := make([]domain.ScoreboardEntry, len(r.scoreboard))
	copy(out, r.scoreboard)
	return out, true
}

// Join adds a participant while the room is in the lobby. Re-joining
// with a known userID returns the existing participant unchanged.
func (r *Room) Join(identity domain.Identity) (domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != domain.StateLobby {
		return domain.Participant{}, domain.ErrInvalidState
	}
	if existing, ok := r.participants[identity.UserID]; ok {
		return *existing, nil
	}

	participant := &domain.Participant{
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		JoinedAt:    r.now(),
	}
	r.participants[identity.UserID] = participant
	r.joinOrder = append(r.joinOrder, identity.UserID)
	r.broadcastLocked(Event{Type: EventParticipantJoined, Payload: *participant})
	return *participant, nil
}

// Start moves the room into InProgress and opens question 0. Only the
// host may start, and only with at least one participant joined.
func (r *Room) Start(requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != domain.StateLobby {
		return domain.ErrInvalidState
	}
	if requesterID != r.hostID {
		return domain.ErrForbidden
	}
	if len(r.participants) == 0 {
		return domain.ErrNoParticipants
	}

	r.state = domain.StateInProgress
	r.broadcastLocked(Event{Type: EventQuizStarted, Payload: struct{}{}})
	r.beginQuestionLocked(0)
	return nil
}

// SubmitAnswer records an answer for the current question. It fails
// without mutating anything when the room is not in progress, the
// submitter never joined, the question is not current, the deadline has
// passed, or the pair already has an answer. When the submission
// completes the set of participant answers, the question closes early.
func (r *Room) SubmitAnswer(userID string, questionIndex, optionIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != domain.StateInProgress {
		return domain.ErrInvalidState
	}
	if _, ok := r.participants[userID]; !ok {
		return domain.ErrParticipantNotFound
	}
	if questionIndex != r.currentIndex {
		return domain.ErrStaleSubmission
	}
	if !r.now().Before(r.deadline) {
		return domain.ErrExpired
	}
	recorded := r.answers[questionIndex]
	if _, ok := recorded[userID]; ok {
		return domain.ErrDuplicateSubmission
	}

	recorded[userID] = optionIndex
	if len(recorded) == len(r.participants) {
		r.advanceLocked()
	}
	return nil
}

// Subscribe attaches a listener for broadcast events. The caller must
// invoke the returned cancel function to avoid leaks.
func (r *Room) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// beginQuestionLocked makes question index current, opens its deadline,
// and schedules the one-shot timeout that forces an advance when no
// submission closes the question first.
func (r *Room) beginQuestionLocked(index int) {
	question := r.questions[index]
	r.currentIndex = index
	if r.answers[index] == nil {
		r.answers[index] = make(map[string]int)
	}
	limit := time.Duration(question.TimeLimitSeconds) * time.Second
	r.deadline = r.now().Add(limit)

	r.timerGen++
	gen := r.timerGen
	r.timer = time.AfterFunc(limit, func() { r.onDeadline(gen) })

	r.broadcastLocked(Event{Type: EventNewQuestion, Payload: QuestionPayload{
		Index:     index,
		Text:      question.Text,
		Options:   question.Options,
		TimeLimit: question.TimeLimitSeconds,
	}})
}

// onDeadline is the timer callback. The generation check makes a firing
// that lost the race against an early advance a no-op.
func (r *Room) onDeadline(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.StateInProgress || gen != r.timerGen {
		return
	}
	r.advanceLocked()
}

// advanceLocked closes the current question: scores it, cancels its
// timer, then either opens the next question or finishes the room.
func (r *Room) advanceLocked() {
	r.scoreLocked(r.currentIndex)
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	next := r.currentIndex + 1
	if next == len(r.questions) {
		r.currentIndex = next
		r.state = domain.StateFinished
		r.deadline = time.Time{}
		r.scoreboard = r.finalizeLocked()
		r.broadcastLocked(Event{Type: EventQuizEnded, Payload: ScoreboardPayload{Scoreboard: r.scoreboard}})
		return
	}
	r.beginQuestionLocked(next)
}

// scoreLocked applies the flat award for every correct answer recorded
// during the question's window. Runs exactly once per question, at the
// moment the window closes.
func (r *Room) scoreLocked(index int) {
	correct := r.questions[index].CorrectOption
	for userID, option := range r.answers[index] {
		if option == correct {
			r.participants[userID].Score += awardPerQuestion
		}
	}
}

// finalizeLocked ranks participants by descending score; equal scores
// keep join order, which the stable sort preserves.
func (r *Room) finalizeLocked() []domain.ScoreboardEntry {
	entries := make([]domain.ScoreboardEntry, 0, len(r.joinOrder))
	for _, userID := range r.joinOrder {
		p := r.participants[userID]
		entries = append(entries, domain.ScoreboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Email:       p.Email,
			Score:       p.Score,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

func (r *Room) broadcastLocked(event Event) {
	for ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest queued event rather than block the
			// mutation on a slow consumer.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
