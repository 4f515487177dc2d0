package app

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"eduquiz-service/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// forceDeadline simulates the one-shot timeout firing for the current
// question without waiting for wall-clock time.
func (r *Room) forceDeadline() {
	r.mu.Lock()
	gen := r.timerGen
	r.mu.Unlock()
	r.onDeadline(gen)
}

func twoQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectOption: 1, TimeLimitSeconds: 15},
		{Text: "Capital of France?", Options: []string{"Lyon", "Nice", "Paris", "Lille"}, CorrectOption: 2, TimeLimitSeconds: 10},
	}
}

func identity(n string) domain.Identity {
	return domain.Identity{UserID: n, DisplayName: strings.ToUpper(n), Email: n + "@example.com"}
}

func TestNewRoomLobbyDefaults(t *testing.T) {
	room := NewRoom("room-1", "host", twoQuestions())

	snap := room.Snapshot()
	if snap.State != domain.StateLobby {
		t.Fatalf("expected lobby, got %s", snap.State)
	}
	if snap.CurrentIndex != 0 {
		t.Fatalf("expected question index 0, got %d", snap.CurrentIndex)
	}
	if len(snap.Participants) != 0 {
		t.Fatalf("expected no participants, got %d", len(snap.Participants))
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	room := NewRoom("room-1", "host", twoQuestions())

	first, err := room.Join(identity("u1"))
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	again, err := room.Join(domain.Identity{UserID: "u1", DisplayName: "Other", Email: "other@example.com"})
	if err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if again.DisplayName != first.DisplayName {
		t.Fatalf("re-join must return the existing participant, got %+v", again)
	}
	if n := len(room.Snapshot().Participants); n != 1 {
		t.Fatalf("expected 1 participant after re-join, got %d", n)
	}
}

func TestJoinAfterStartRejected(t *testing.T) {
	room := NewRoom("room-1", "host", twoQuestions())
	mustJoin(t, room, "u1")
	mustStart(t, room, "host")

	if _, err := room.Join(identity("u2")); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestStartGuards(t *testing.T) {
	room := NewRoom("room-1", "host", twoQuestions())

	if err := room.Start("host"); !errors.Is(err, domain.ErrNoParticipants) {
		t.Fatalf("expected ErrNoParticipants, got %v", err)
	}
	mustJoin(t, room, "u1")
	if err := room.Start("u1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	mustStart(t, room, "host")
	if err := room.Start("host"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double start, got %v", err)
	}
}

func TestSubmitAnswerGuards(t *testing.T) {
	clock := newFakeClock()
	room := NewRoomWithClock("room-1", "host", twoQuestions(), clock.Now)

	if err := room.SubmitAnswer("u1", 0, 1); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before start, got %v", err)
	}

	mustJoin(t, room, "u1")
	mustJoin(t, room, "u2")
	mustStart(t, room, "host")

	if err := room.SubmitAnswer("ghost", 0, 1); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
	if err := room.SubmitAnswer("u1", 1, 1); !errors.Is(err, domain.ErrStaleSubmission) {
		t.Fatalf("expected ErrStaleSubmission, got %v", err)
	}
	if err := room.SubmitAnswer("u1", 0, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := room.SubmitAnswer("u1", 0, 3); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	// The rejected re-submission must not replace the stored answer.
	if got := room.answers[0]["u1"]; got != 1 {
		t.Fatalf("stored answer changed to %d", got)
	}

	clock.Advance(16 * time.Second)
	if err := room.SubmitAnswer("u2", 0, 1); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestDeadlineAdvanceWithNoAnswers(t *testing.T) {
	clock := newFakeClock()
	room := NewRoomWithClock("room-1", "host", twoQuestions(), clock.Now)
	mustJoin(t, room, "u1")
	mustStart(t, room, "host")

	clock.Advance(15 * time.Second)
	room.forceDeadline()

	snap := room.Snapshot()
	if snap.CurrentIndex != 1 {
		t.Fatalf("expected advance to question 1, got %d", snap.CurrentIndex)
	}
	if snap.Participants[0].Score != 0 {
		t.Fatalf("expected no points awarded, got %d", snap.Participants[0].Score)
	}
}

func TestUnanimousAnswersAdvanceEarly(t *testing.T) {
	clock := newFakeClock()
	room := NewRoomWithClock("room-1", "host", twoQuestions(), clock.Now)
	mustJoin(t, room, "u1")
	mustJoin(t, room, "u2")
	mustStart(t, room, "host")

	// Both answer correctly well inside the window; the question closes
	// without the deadline being reached.
	if err := room.SubmitAnswer("u1", 0, 1); err != nil {
		t.Fatalf("submit u1: %v", err)
	}
	if err := room.SubmitAnswer("u2", 0, 1); err != nil {
		t.Fatalf("submit u2: %v", err)
	}

	snap := room.Snapshot()
	if snap.CurrentIndex != 1 {
		t.Fatalf("expected question 1 current, got %d", snap.CurrentIndex)
	}
	total := 0
	for _, p := range snap.Participants {
		total += p.Score
	}
	if total != awardPerQuestion*2 {
		t.Fatalf("expected total score %d, got %d", awardPerQuestion*2, total)
	}
}

func TestScoreboardStableOrdering(t *testing.T) {
	clock := newFakeClock()
	questions := []domain.Question{
		{Text: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectOption: 0, TimeLimitSeconds: 10},
		{Text: "Q2", Options: []string{"a", "b", "c", "d"}, CorrectOption: 0, TimeLimitSeconds: 10},
		{Text: "Q3", Options: []string{"a", "b", "c", "d"}, CorrectOption: 0, TimeLimitSeconds: 10},
	}
	room := NewRoomWithClock("room-1", "host", questions, clock.Now)
	mustJoin(t, room, "a")
	mustJoin(t, room, "b")
	mustJoin(t, room, "c")
	mustStart(t, room, "host")

	// Final scores: a=2, b=3, c=3.
	answer := func(user string, q, opt int) {
		t.Helper()
		if err := room.SubmitAnswer(user, q, opt); err != nil {
			t.Fatalf("submit %s q%d: %v", user, q, err)
		}
	}
	answer("a", 0, 0)
	answer("b", 0, 0)
	answer("c", 0, 0)
	answer("a", 1, 3) // wrong
	answer("b", 1, 0)
	answer("c", 1, 0)
	answer("a", 2, 0)
	answer("b", 2, 0)
	answer("c", 2, 0)

	scoreboard, ok := room.Scoreboard()
	if !ok {
		t.Fatalf("expected finished room")
	}
	got := []string{scoreboard[0].UserID, scoreboard[1].UserID, scoreboard[2].UserID}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if scoreboard[0].Score != 3 || scoreboard[2].Score != 2 {
		t.Fatalf("unexpected scores: %+v", scoreboard)
	}
}

func TestTwoQuestionScenario(t *testing.T) {
	clock := newFakeClock()
	questions := []domain.Question{
		{Text: "Q1", Options: []string{"a", "b", "c", "d"}, CorrectOption: 2, TimeLimitSeconds: 1},
		{Text: "Q2", Options: []string{"a", "b", "c", "d"}, CorrectOption: 2, TimeLimitSeconds: 1},
	}
	room := NewRoomWithClock("room-1", "host", questions, clock.Now)
	mustJoin(t, room, "u1")

	events, cancel := room.Subscribe()
	defer cancel()

	mustStart(t, room, "host")

	// Answers Q1 correctly inside the window; the lone participant's
	// answer closes the question early.
	if err := room.SubmitAnswer("u1", 0, 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Does nothing for Q2; the deadline closes it.
	clock.Advance(2 * time.Second)
	room.forceDeadline()

	if !room.IsFinished() {
		t.Fatalf("expected finished room")
	}
	scoreboard, _ := room.Scoreboard()
	if len(scoreboard) != 1 || scoreboard[0].Score != 1 {
		t.Fatalf("expected final score 1, got %+v", scoreboard)
	}

	ended := 0
	for done := false; !done; {
		select {
		case ev := <-events:
			if ev.Type == EventQuizEnded {
				ended++
			}
		default:
			done = true
		}
	}
	if ended != 1 {
		t.Fatalf("expected exactly one quizEnded event, got %d", ended)
	}
}

func TestNewQuestionPayloadNeverLeaksAnswer(t *testing.T) {
	room := NewRoom("room-1", "host", twoQuestions())
	mustJoin(t, room, "u1")

	events, cancel := room.Subscribe()
	defer cancel()
	mustStart(t, room, "host")

	for done := false; !done; {
		select {
		case ev := <-events:
			if ev.Type != EventNewQuestion {
				continue
			}
			raw, err := json.Marshal(ev.Payload)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
			if strings.Contains(string(raw), "correctAnswer") {
				t.Fatalf("newQuestion payload leaks the correct option: %s", raw)
			}
		default:
			done = true
		}
	}
}

func TestLateTimerFiringIsNoOp(t *testing.T) {
	clock := newFakeClock()
	room := NewRoomWithClock("room-1", "host", twoQuestions(), clock.Now)
	mustJoin(t, room, "u1")
	mustStart(t, room, "host")

	room.mu.Lock()
	staleGen := room.timerGen
	room.mu.Unlock()

	// Unanimous answer advances first; the question-0 timer then fires late.
	if err := room.SubmitAnswer("u1", 0, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	room.onDeadline(staleGen)

	if got := room.Snapshot().CurrentIndex; got != 1 {
		t.Fatalf("stale timer double-advanced the room to %d", got)
	}
}

func mustJoin(t *testing.T, room *Room, user string) {
	t.Helper()
	if _, err := room.Join(identity(user)); err != nil {
		t.Fatalf("join %s: %v", user, err)
	}
}

func mustStart(t *testing.T, room *Room, requester string) {
	t.Helper()
	if err := room.Start(requester); err != nil {
		t.Fatalf("start: %v", err)
	}
}
