package domain

import (
	"slices"
	"time"
)

// Difficulty levels for practice questions.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ValidDifficulties returns the accepted difficulty levels.
func ValidDifficulties() []string {
	return []string{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// IsValidDifficulty checks whether d is a known difficulty level.
func IsValidDifficulty(d string) bool {
	return slices.Contains(ValidDifficulties(), d)
}

// Question is a generated practice question for a section.
type Question struct {
	ID            string    `json:"id"`
	SectionID     string    `json:"section_id"`
	Text          string    `json:"text"`
	Difficulty    string    `json:"difficulty"`
	CorrectAnswer string    `json:"correct_answer"`
	CreatedAt     time.Time `json:"created_at"`
}

// GeneratedQuestion is the shape questions are generated in.
type GeneratedQuestion struct {
	Text          string `json:"text"`
	Difficulty    string `json:"difficulty"`
	CorrectAnswer string `json:"correct_answer"`
}

// Evaluation is the grader's verdict on a submitted answer.
type Evaluation struct {
	IsCorrect bool   `json:"is_correct"`
	Feedback  string `json:"feedback"`
}

// AnswerFeedback is returned to the learner after grading.
type AnswerFeedback struct {
	QuestionID    string `json:"question_id"`
	IsCorrect     bool   `json:"is_correct"`
	Feedback      string `json:"feedback"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// NewAnswerFeedback builds the learner-facing result. The correct answer is
// only revealed when the submitted answer was wrong.
func NewAnswerFeedback(q *Question, ev Evaluation) *AnswerFeedback {
	fb := &AnswerFeedback{
		QuestionID: q.ID,
		IsCorrect:  ev.IsCorrect,
		Feedback:   ev.Feedback,
	}
	if !ev.IsCorrect {
		fb.CorrectAnswer = q.CorrectAnswer
	}
	return fb
}
