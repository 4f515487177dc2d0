package domain

import "strings"

// ValidateQuestions checks a question list against the schema the room
// contract requires: non-empty list, non-empty text, exactly four
// non-empty options, a correct-option index inside them, and a positive
// time limit. It stops at the first violation and is side-effect free.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return &ValidationError{Question: -1, Reason: "question list is empty"}
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Text) == "" {
			return &ValidationError{Question: i, Field: "question", Reason: "text is empty"}
		}
		if len(q.Options) != OptionCount {
			return &ValidationError{Question: i, Field: "options", Reason: "exactly 4 options required"}
		}
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return &ValidationError{Question: i, Field: "options", Reason: "option text is empty"}
			}
		}
		if q.CorrectOption < 0 || q.CorrectOption >= OptionCount {
			return &ValidationError{Question: i, Field: "correctAnswer", Reason: "index out of range"}
		}
		if q.TimeLimitSeconds <= 0 {
			return &ValidationError{Question: i, Field: "timeLimit", Reason: "must be a positive number of seconds"}
		}
	}
	return nil
}
