package domain

import "time"

// RoomState is the lifecycle phase of a quiz room. Transitions are
// monotonic: Lobby -> InProgress -> Finished.
type RoomState string

const (
	StateLobby      RoomState = "lobby"
	StateInProgress RoomState = "inProgress"
	StateFinished   RoomState = "finished"
)

// OptionCount is the fixed number of options every question carries.
const OptionCount = 4

// Question is a single multiple-choice question. Immutable once a room
// has been created from it.
type Question struct {
	Text             string   `json:"question"`
	Options          []string `json:"options"`
	CorrectOption    int      `json:"correctAnswer"`
	TimeLimitSeconds int      `json:"timeLimit"`
}

// QuestionSet is a stored, reusable list of questions keyed by id.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Identity is the authenticated principal attached to a connection.
// Issuing and validating credentials is the identity provider's job;
// the coordinator only consumes the decoded result.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Participant is a joined player and their accumulated score.
type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// ScoreboardEntry is one row of the final ranked scoreboard.
type ScoreboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Score       int    `json:"score"`
}

// RoomSnapshot is a read-only view of a room, safe to hand to
// transports while the room keeps mutating.
type RoomSnapshot struct {
	ID            string        `json:"id"`
	HostUserID    string        `json:"hostUserId"`
	State         RoomState     `json:"state"`
	QuestionCount int           `json:"questionCount"`
	CurrentIndex  int           `json:"currentQuestionIndex"`
	Participants  []Participant `json:"participants"`
}
