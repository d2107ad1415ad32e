// Package catalog serves the read-mostly quiz content (subjects, questions,
// options) and the authoring operations that mutate it. Mutations touch the
// quiz updatedAt timestamp so downstream caches can detect staleness.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/quizdeck/quizdeck/internal/docstore"
)

var ErrDuplicateOrderNumber = errors.New("question order number already exists")

// AddQuestionInput is the authoring payload. Exactly one correct option is
// required; CorrectIndex points into Options.
type AddQuestionInput struct {
	QuizID       string   `json:"quizId"`
	SubjectID    string   `json:"subjectId"`
	OrderNum     int      `json:"orderNum"`
	Points       int      `json:"points"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Subjects lists all subjects, seeded defaults if the collection is empty.
func (s *Service) Subjects(ctx context.Context) ([]Subject, error) {
	snaps, err := s.store.List(ctx, "subjects")
	if err != nil {
		return nil, err
	}
	out := make([]Subject, 0, len(snaps))
	for _, sn := range snaps {
		out = append(out, Subject{
			ID:    sn.ID,
			Name:  docstore.AsString(sn.Data["name"]),
			Color: docstore.AsString(sn.Data["color"]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > 0 {
		return out, nil
	}
	return defaultSubjects(), nil
}

// Quizzes lists quiz metadata; at least one quiz is always reported so the
// first authoring call has somewhere to land.
func (s *Service) Quizzes(ctx context.Context) ([]Quiz, error) {
	snaps, err := s.store.List(ctx, "quizzes")
	if err != nil {
		return nil, err
	}
	out := make([]Quiz, 0, len(snaps))
	for _, sn := range snaps {
		q := Quiz{ID: sn.ID, Title: docstore.AsString(sn.Data["title"])}
		if t, ok := docstore.AsTime(sn.Data["updatedAt"]); ok {
			q.UpdatedAt = t
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > 0 {
		return out, nil
	}
	return []Quiz{{ID: "1", Title: "Main Quiz"}}, nil
}

// Quiz returns one quiz's metadata, lazily creating a minimal doc on first
// touch so referencing a quiz never fails on a fresh deployment.
func (s *Service) Quiz(ctx context.Context, quizID string) (Quiz, error) {
	if err := s.ensureQuiz(ctx, quizID); err != nil {
		return Quiz{}, err
	}
	d, err := s.store.Get(ctx, docstore.Join("quizzes", quizID))
	if err != nil {
		return Quiz{}, err
	}
	q := Quiz{ID: quizID, Title: docstore.AsString(d["title"])}
	if t, ok := docstore.AsTime(d["updatedAt"]); ok {
		q.UpdatedAt = t
	}
	return q, nil
}

// Questions lists a quiz's questions in order-number order.
func (s *Service) Questions(ctx context.Context, quizID string) ([]Question, error) {
	if err := s.ensureQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	snaps, err := s.store.List(ctx, docstore.Join("quizzes", quizID, "questions"))
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(snaps))
	for _, sn := range snaps {
		out = append(out, questionFromDoc(sn))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNum < out[j].OrderNum })
	return out, nil
}

// Options lists a question's options in index order.
func (s *Service) Options(ctx context.Context, quizID, questionID string) ([]Option, error) {
	snaps, err := s.store.List(ctx, docstore.Join("quizzes", quizID, "questions", questionID, "options"))
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(snaps))
	for _, sn := range snaps {
		idx, _ := docstore.AsInt64(sn.Data["index"])
		out = append(out, Option{
			ID:         sn.ID,
			Index:      int(idx),
			OptionText: docstore.AsString(sn.Data["optionText"]),
			IsCorrect:  docstore.AsBool(sn.Data["isCorrect"]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// AddQuestion creates a question plus its options. The order number doubles
// as the question id; a collision fails without touching the existing
// question. Exactly one option is correct, at CorrectIndex.
func (s *Service) AddQuestion(ctx context.Context, in AddQuestionInput) (Question, error) {
	if in.QuizID == "" {
		in.QuizID = "1"
	}
	if in.OrderNum <= 0 {
		return Question{}, errors.New("orderNum (question number) is required")
	}
	if len(in.Options) == 0 {
		return Question{}, errors.New("at least one option is required")
	}
	if in.CorrectIndex < 0 || in.CorrectIndex >= len(in.Options) {
		return Question{}, fmt.Errorf("correctIndex %d out of range", in.CorrectIndex)
	}
	if in.Points <= 0 {
		in.Points = 1
	}
	if err := s.ensureQuiz(ctx, in.QuizID); err != nil {
		return Question{}, err
	}

	qid := strconv.Itoa(in.OrderNum)
	qPath := docstore.Join("quizzes", in.QuizID, "questions", qid)
	if _, err := s.store.Get(ctx, qPath); err == nil {
		return Question{}, fmt.Errorf("%w: %d", ErrDuplicateOrderNumber, in.OrderNum)
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return Question{}, err
	}

	err := s.store.Set(ctx, qPath, docstore.Doc{
		"subjectId":    in.SubjectID,
		"orderNum":     in.OrderNum,
		"points":       in.Points,
		"questionText": in.QuestionText,
	}, false)
	if err != nil {
		return Question{}, err
	}
	for i, text := range in.Options {
		err := s.store.Set(ctx, docstore.Join(qPath, "options", strconv.Itoa(i)), docstore.Doc{
			"index":      i,
			"optionText": text,
			"isCorrect":  i == in.CorrectIndex,
		}, false)
		if err != nil {
			return Question{}, err
		}
	}
	s.touch(ctx, in.QuizID)
	return Question{
		ID:           qid,
		SubjectID:    in.SubjectID,
		OrderNum:     in.OrderNum,
		Points:       in.Points,
		QuestionText: in.QuestionText,
	}, nil
}

// DeleteQuestion removes a question and its options by order number.
func (s *Service) DeleteQuestion(ctx context.Context, quizID string, orderNum int) error {
	if quizID == "" {
		quizID = "1"
	}
	qid := strconv.Itoa(orderNum)
	qPath := docstore.Join("quizzes", quizID, "questions", qid)
	snaps, err := s.store.List(ctx, docstore.Join(qPath, "options"))
	if err != nil {
		return err
	}
	for _, sn := range snaps {
		if err := s.store.Delete(ctx, docstore.Join(qPath, "options", sn.ID)); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, qPath); err != nil {
		return err
	}
	s.touch(ctx, quizID)
	return nil
}

func (s *Service) ensureQuiz(ctx context.Context, quizID string) error {
	path := docstore.Join("quizzes", quizID)
	_, err := s.store.Get(ctx, path)
	if errors.Is(err, docstore.ErrNotFound) {
		return s.store.Set(ctx, path, docstore.Doc{
			"title":     "Quiz " + quizID,
			"createdAt": docstore.ServerTimestamp{},
			"updatedAt": docstore.ServerTimestamp{},
		}, true)
	}
	return err
}

// touch bumps the quiz updatedAt; failures here only delay cache
// invalidation, so they are not fatal to the authoring call.
func (s *Service) touch(ctx context.Context, quizID string) {
	_ = s.store.Set(ctx, docstore.Join("quizzes", quizID),
		docstore.Doc{"updatedAt": docstore.ServerTimestamp{}}, true)
}

func questionFromDoc(sn docstore.Snapshot) Question {
	order, _ := docstore.AsInt64(sn.Data["orderNum"])
	points, _ := docstore.AsInt64(sn.Data["points"])
	return Question{
		ID:           sn.ID,
		SubjectID:    docstore.AsString(sn.Data["subjectId"]),
		OrderNum:     int(order),
		Points:       int(points),
		QuestionText: docstore.AsString(sn.Data["questionText"]),
	}
}

func defaultSubjects() []Subject {
	return []Subject{
		{ID: "1", Name: "DBMS", Color: "#000000"},
		{ID: "2", Name: "FEDF", Color: "#FF6B6B"},
		{ID: "3", Name: "OOP", Color: "#4ECDC4"},
		{ID: "4", Name: "OS", Color: "#45B7D1"},
	}
}
