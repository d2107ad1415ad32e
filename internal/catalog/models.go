package catalog

import "time"

type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Quiz struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Question id equals its order number by convention; the order number is
// unique within a quiz.
type Question struct {
	ID           string `json:"id"`
	SubjectID    string `json:"subjectId"`
	OrderNum     int    `json:"orderNum"`
	Points       int    `json:"points"`
	QuestionText string `json:"questionText"`
}

// Option is positionally addressed: its id is its 0-based index within the
// question.
type Option struct {
	ID         string `json:"id"`
	Index      int    `json:"index"`
	OptionText string `json:"optionText"`
	IsCorrect  bool   `json:"isCorrect"`
}
