package attempt

import (
	"errors"
	"time"
)

var (
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAlreadyCompleted = errors.New("attempt already completed")
	ErrActiveAttempt    = errors.New("an attempt is already in progress for this quiz")
)

// Attempt is one user's run through one quiz. It starts in progress and
// transitions exactly once to completed; completion is enforced by a
// conditional write at the store, not by caller discipline.
type Attempt struct {
	ID               string    `json:"id"`
	QuizID           string    `json:"quizId"`
	UserID           string    `json:"userId"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime,omitempty"`
	Completed        bool      `json:"completed"`
	CorrectAnswers   int       `json:"correctAnswers"`
	TotalQuestions   int       `json:"totalQuestions"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
}

// Answer is the per-question selection recorded under an attempt. Upsert
// semantics: re-answering overwrites the prior selection.
type Answer struct {
	QuestionID string    `json:"questionId"`
	SelectedID string    `json:"selectedId"`
	SavedAt    time.Time `json:"savedAt,omitempty"`
}

// Result is what completion reports back to the student.
type Result struct {
	CorrectAnswers   int `json:"correctAnswers"`
	TotalQuestions   int `json:"totalQuestions"`
	Score            int `json:"score"`
	TimeSpentSeconds int `json:"timeSpentSeconds"`
	AttemptsCount    int `json:"attemptsCount,omitempty"`
}

// View is the supervisory listing row: an attempt joined with its quiz title
// and the user's display fields.
type View struct {
	ID               string    `json:"id"`
	QuizID           string    `json:"quizId"`
	QuizTitle        string    `json:"quizTitle"`
	UserID           string    `json:"userId"`
	Username         string    `json:"username,omitempty"`
	Email            string    `json:"email,omitempty"`
	FullName         string    `json:"fullName,omitempty"`
	CorrectAnswers   int       `json:"correctAnswers"`
	TotalQuestions   int       `json:"totalQuestions"`
	StartTime        time.Time `json:"startTime,omitempty"`
	EndTime          time.Time `json:"endTime,omitempty"`
	Completed        bool      `json:"completed"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
}
