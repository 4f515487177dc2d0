package app

import "eduquiz-service/internal/domain"

// Event is a discrete outbound message produced by a room mutation.
// Subscribers receive events in the order the mutations were applied.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Broadcast event types. Per-request acknowledgments (roomCreated,
// joinRoomSuccess, error acks) are written by the transport directly to
// the requester and never flow through subscriber channels.
const (
	EventParticipantJoined = "participantJoined"
	EventQuizStarted       = "quizStarted"
	EventNewQuestion       = "newQuestion"
	EventQuizEnded         = "quizEnded"
)

// QuestionPayload is the broadcast view of the current question. The
// correct option index is deliberately absent from this type so it can
// never leak to clients.
type QuestionPayload struct {
	Index     int      `json:"index"`
	Text      string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
}

// ScoreboardPayload carries the final ranked scoreboard.
type ScoreboardPayload struct {
	Scoreboard []domain.ScoreboardEntry `json:"scoreboard"`
}
