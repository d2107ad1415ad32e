package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/quizdeck/quizdeck/internal/catalog"
	"github.com/quizdeck/quizdeck/internal/docstore"
)

func newService() (*catalog.Service, *docstore.MemoryStore) {
	store := docstore.NewMemoryStore()
	return catalog.NewService(store), store
}

func addQuestion(t *testing.T, svc *catalog.Service, orderNum int, text string) catalog.Question {
	t.Helper()
	q, err := svc.AddQuestion(context.Background(), catalog.AddQuestionInput{
		QuizID:       "1",
		SubjectID:    "2",
		OrderNum:     orderNum,
		QuestionText: text,
		Options:      []string{"a", "b", "c"},
		CorrectIndex: 1,
	})
	if err != nil {
		t.Fatalf("add question %d: %v", orderNum, err)
	}
	return q
}

func TestSubjectsDefaultsWhenEmpty(t *testing.T) {
	svc, _ := newService()
	subjects, err := svc.Subjects(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(subjects) != 4 {
		t.Fatalf("got %d default subjects, want 4", len(subjects))
	}
	if subjects[0].Name != "DBMS" {
		t.Fatalf("first default subject = %q, want DBMS", subjects[0].Name)
	}
}

func TestQuizzesDefaultWhenEmpty(t *testing.T) {
	svc, _ := newService()
	quizzes, err := svc.Quizzes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != "1" || quizzes[0].Title != "Main Quiz" {
		t.Fatalf("unexpected default quizzes: %+v", quizzes)
	}
}

func TestAddQuestionUsesOrderNumAsID(t *testing.T) {
	svc, _ := newService()
	q := addQuestion(t, svc, 7, "what is a b-tree")
	if q.ID != "7" {
		t.Fatalf("question id = %q, want order number as id", q.ID)
	}

	opts, err := svc.Options(context.Background(), "1", "7")
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 3 {
		t.Fatalf("got %d options, want 3", len(opts))
	}
	for _, o := range opts {
		if o.IsCorrect != (o.Index == 1) {
			t.Fatalf("option %d correctness wrong: %+v", o.Index, o)
		}
	}
}

func TestAddQuestionDuplicateOrderNum(t *testing.T) {
	svc, _ := newService()
	addQuestion(t, svc, 3, "original")

	_, err := svc.AddQuestion(context.Background(), catalog.AddQuestionInput{
		QuizID:       "1",
		OrderNum:     3,
		QuestionText: "intruder",
		Options:      []string{"x", "y"},
		CorrectIndex: 0,
	})
	if !errors.Is(err, catalog.ErrDuplicateOrderNumber) {
		t.Fatalf("got %v, want ErrDuplicateOrderNumber", err)
	}

	// Rejection must not mutate the existing question.
	questions, err := svc.Questions(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 1 || questions[0].QuestionText != "original" {
		t.Fatalf("existing question mutated: %+v", questions)
	}
	opts, err := svc.Options(context.Background(), "1", "3")
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 3 {
		t.Fatalf("existing options mutated, got %d", len(opts))
	}
}

func TestAddQuestionValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	if _, err := svc.AddQuestion(ctx, catalog.AddQuestionInput{Options: []string{"a"}}); err == nil {
		t.Fatal("missing orderNum accepted")
	}
	if _, err := svc.AddQuestion(ctx, catalog.AddQuestionInput{OrderNum: 1}); err == nil {
		t.Fatal("empty options accepted")
	}
	if _, err := svc.AddQuestion(ctx, catalog.AddQuestionInput{
		OrderNum: 1, Options: []string{"a", "b"}, CorrectIndex: 2,
	}); err == nil {
		t.Fatal("out-of-range correctIndex accepted")
	}
}

func TestQuestionsSortedByOrderNum(t *testing.T) {
	svc, _ := newService()
	for _, n := range []int{5, 1, 3} {
		addQuestion(t, svc, n, "q")
	}
	questions, err := svc.Questions(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 3, 5}
	for i, q := range questions {
		if q.OrderNum != want[i] {
			t.Fatalf("position %d has order %d, want %d", i, q.OrderNum, want[i])
		}
	}
}

func TestDeleteQuestionRemovesOptions(t *testing.T) {
	svc, store := newService()
	addQuestion(t, svc, 2, "doomed")
	ctx := context.Background()

	if err := svc.DeleteQuestion(ctx, "1", 2); err != nil {
		t.Fatal(err)
	}
	questions, err := svc.Questions(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 0 {
		t.Fatalf("question still listed after delete: %+v", questions)
	}
	if _, err := store.Get(ctx, "quizzes/1/questions/2/options/0"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("orphaned option survived delete: %v", err)
	}
}

func TestAuthoringTouchesUpdatedAt(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	before, err := svc.Quiz(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	addQuestion(t, svc, 1, "q")
	after, err := svc.Quiz(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if after.UpdatedAt.Before(before.UpdatedAt) {
		t.Fatalf("updatedAt went backwards: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	if after.UpdatedAt.IsZero() {
		t.Fatal("updatedAt not set by authoring mutation")
	}
}

func TestQuizLazilyCreated(t *testing.T) {
	svc, store := newService()
	q, err := svc.Quiz(context.Background(), "9")
	if err != nil {
		t.Fatal(err)
	}
	if q.Title != "Quiz 9" {
		t.Fatalf("lazy quiz title = %q", q.Title)
	}
	if _, err := store.Get(context.Background(), "quizzes/9"); err != nil {
		t.Fatalf("quiz doc not materialized: %v", err)
	}
}
