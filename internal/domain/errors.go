package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound is returned when a room id does not resolve to a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidState is returned when an operation is not legal in the room's current lifecycle state.
	ErrInvalidState = errors.New("operation not allowed in current room state")
	// ErrForbidden is returned when someone other than the host tries to start the quiz.
	ErrForbidden = errors.New("only the host may start the quiz")
	// ErrNoParticipants is returned when the host starts a quiz nobody has joined.
	ErrNoParticipants = errors.New("cannot start quiz with no participants")
	// ErrParticipantNotFound is returned when a user acts in a room they never joined.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrDuplicateSubmission is returned when a participant answers the same question twice.
	ErrDuplicateSubmission = errors.New("answer already submitted for this question")
	// ErrStaleSubmission is returned when an answer targets a question that is not current.
	ErrStaleSubmission = errors.New("answer targets a question that is not current")
	// ErrExpired is returned when an answer arrives after the question deadline.
	ErrExpired = errors.New("question deadline has passed")
	// ErrQuestionSetNotFound indicates the stored question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
)

// ValidationError reports the first question-set violation found.
// Question is the zero-based index of the offending question, or -1 when
// the set as a whole is malformed.
type ValidationError struct {
	Question int
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Question < 0 {
		return fmt.Sprintf("invalid question set: %s", e.Reason)
	}
	return fmt.Sprintf("invalid question %d: %s: %s", e.Question, e.Field, e.Reason)
}
