package model

// Question is a single multiple-choice trivia question.
//
// Options always contains CorrectAnswer; the slice order is the display
// order (shuffled when the questions are fetched).
type Question struct {
	Text          string
	Options       []string
	CorrectAnswer string
}

// IsCorrect reports whether the given answer matches the correct one
func (q *Question) IsCorrect(answer string) bool {
	return answer == q.CorrectAnswer
}
