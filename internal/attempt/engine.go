// Package attempt is the quiz attempt engine: the state machine of a single
// attempt (start, per-question answer upserts, completion into a score) and
// the consistency of the derived aggregates on the user profile.
package attempt

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/quizdeck/quizdeck/internal/catalog"
	"github.com/quizdeck/quizdeck/internal/docstore"
	"github.com/quizdeck/quizdeck/internal/policy"
	"github.com/quizdeck/quizdeck/internal/profile"
)

type Engine struct {
	store    docstore.Store
	catalog  *catalog.Service
	profiles *profile.Service
	gate     policy.Gate
	// singleActive rejects a second in-progress attempt for the same
	// user+quiz instead of silently stacking attempts.
	singleActive bool
	now          func() time.Time
}

type Option func(*Engine)

// WithGate installs the pre-start policy chain.
func WithGate(g policy.Gate) Option { return func(e *Engine) { e.gate = g } }

// WithConcurrentAttempts allows any number of simultaneous in-progress
// attempts per user+quiz instead of rejecting the second start.
func WithConcurrentAttempts() Option { return func(e *Engine) { e.singleActive = false } }

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(store docstore.Store, cat *catalog.Service, profiles *profile.Service, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		catalog:      cat,
		profiles:     profiles,
		gate:         policy.AllowAll,
		singleActive: true,
		now:          time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start creates a new in-progress attempt after the policy gate approves.
func (e *Engine) Start(ctx context.Context, req policy.StartRequest) (string, error) {
	if err := e.gate(ctx, req); err != nil {
		return "", err
	}
	if _, err := e.catalog.Quiz(ctx, req.QuizID); err != nil {
		return "", err
	}
	if e.singleActive {
		if err := e.checkNoActive(ctx, req.QuizID, req.UserID); err != nil {
			return "", err
		}
	}
	return e.store.Add(ctx, "attempts", docstore.Doc{
		"quizId":    req.QuizID,
		"userId":    req.UserID,
		"startTime": docstore.ServerTimestamp{},
		"completed": false,
	})
}

// RecordAnswer upserts the selection for one question. Re-answering
// overwrites; answering a completed attempt is rejected.
func (e *Engine) RecordAnswer(ctx context.Context, attemptID, questionID, selectedID string) error {
	a, err := e.get(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.Completed {
		return ErrAlreadyCompleted
	}
	return e.store.Set(ctx, docstore.Join("attempts", attemptID, "answers", questionID), docstore.Doc{
		"selectedId": selectedID,
		"savedAt":    docstore.ServerTimestamp{},
	}, true)
}

// Complete finalizes an attempt into a score, exactly once. The transition
// is a conditional write that only succeeds while completed=false, so two
// racing calls cannot both count. Aggregate updates afterwards are best
// effort: the attempt document is the source of truth and a lost aggregate
// write is logged, never surfaced.
func (e *Engine) Complete(ctx context.Context, attemptID string) (Result, error) {
	a, err := e.get(ctx, attemptID)
	if err != nil {
		return Result{}, err
	}
	if a.Completed {
		return e.storedResult(ctx, a), nil
	}

	questions, optionsByQ, err := e.loadQuiz(ctx, a.QuizID)
	if err != nil {
		return Result{}, err
	}
	answers, err := e.Answers(ctx, attemptID)
	if err != nil {
		return Result{}, err
	}
	selected := make(map[string]string, len(answers))
	for _, ans := range answers {
		selected[ans.QuestionID] = ans.SelectedID
	}

	correct := CountCorrect(questions, optionsByQ, selected)
	total := len(questions)
	elapsed := int(e.now().Sub(a.StartTime).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	ok, err := e.store.UpdateIf(ctx, docstore.Join("attempts", attemptID),
		docstore.Doc{"completed": false},
		docstore.Doc{
			"completed":        true,
			"endTime":          docstore.ServerTimestamp{},
			"correctAnswers":   correct,
			"totalQuestions":   total,
			"timeSpentSeconds": elapsed,
		})
	if err != nil {
		return Result{}, err
	}
	if !ok {
		// Lost the race: someone else completed first. Report their result.
		a, err := e.get(ctx, attemptID)
		if err != nil {
			return Result{}, err
		}
		return e.storedResult(ctx, a), nil
	}

	score := Score(correct, total)
	c := profile.Completion{
		AttemptID: attemptID,
		QuizID:    a.QuizID,
		Score:     score,
		Correct:   correct,
		Total:     total,
	}
	if err := e.profiles.ApplyCompletion(ctx, a.UserID, c); err != nil {
		log.Printf("[attempt] user aggregate update failed for %s: %v", a.UserID, err)
	}
	if err := e.profiles.ApplyQuizRollup(ctx, a.UserID, c); err != nil {
		log.Printf("[attempt] quiz rollup update failed for %s/%s: %v", a.UserID, a.QuizID, err)
	}

	res := Result{CorrectAnswers: correct, TotalQuestions: total, Score: score, TimeSpentSeconds: elapsed}
	if u, err := e.profiles.Get(ctx, a.UserID); err == nil {
		res.AttemptsCount = u.AttemptsCount
	}
	return res, nil
}

// Get returns one attempt.
func (e *Engine) Get(ctx context.Context, attemptID string) (Attempt, error) {
	return e.get(ctx, attemptID)
}

// Answers lists the recorded answers of an attempt.
func (e *Engine) Answers(ctx context.Context, attemptID string) ([]Answer, error) {
	snaps, err := e.store.List(ctx, docstore.Join("attempts", attemptID, "answers"))
	if err != nil {
		return nil, err
	}
	out := make([]Answer, 0, len(snaps))
	for _, sn := range snaps {
		ans := Answer{QuestionID: sn.ID, SelectedID: docstore.AsString(sn.Data["selectedId"])}
		if t, ok := docstore.AsTime(sn.Data["savedAt"]); ok {
			ans.SavedAt = t
		}
		out = append(out, ans)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// List joins every attempt with quiz title and user display fields for the
// supervisory dashboard. Reporting only; not part of the state machine.
func (e *Engine) List(ctx context.Context) ([]View, error) {
	snaps, err := e.store.List(ctx, "attempts")
	if err != nil {
		return nil, err
	}
	titles := map[string]string{}
	views := make([]View, 0, len(snaps))
	for _, sn := range snaps {
		a := attemptFromDoc(sn.ID, sn.Data)
		v := View{
			ID:               a.ID,
			QuizID:           a.QuizID,
			UserID:           a.UserID,
			CorrectAnswers:   a.CorrectAnswers,
			TotalQuestions:   a.TotalQuestions,
			StartTime:        a.StartTime,
			EndTime:          a.EndTime,
			Completed:        a.Completed,
			TimeSpentSeconds: a.TimeSpentSeconds,
		}
		title, ok := titles[a.QuizID]
		if !ok {
			if q, err := e.catalog.Quiz(ctx, a.QuizID); err == nil {
				title = q.Title
			}
			if title == "" {
				title = "Quiz " + a.QuizID
			}
			titles[a.QuizID] = title
		}
		v.QuizTitle = title
		if u, err := e.profiles.Get(ctx, a.UserID); err == nil {
			v.Username = u.Username
			v.Email = u.Email
			v.FullName = u.FullName
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].StartTime.After(views[j].StartTime) })
	return views, nil
}

func (e *Engine) get(ctx context.Context, attemptID string) (Attempt, error) {
	d, err := e.store.Get(ctx, docstore.Join("attempts", attemptID))
	if errors.Is(err, docstore.ErrNotFound) {
		return Attempt{}, ErrAttemptNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	return attemptFromDoc(attemptID, d), nil
}

func (e *Engine) checkNoActive(ctx context.Context, quizID, userID string) error {
	snaps, err := e.store.List(ctx, "attempts")
	if err != nil {
		return err
	}
	for _, sn := range snaps {
		if docstore.AsString(sn.Data["quizId"]) == quizID &&
			docstore.AsString(sn.Data["userId"]) == userID &&
			!docstore.AsBool(sn.Data["completed"]) {
			return ErrActiveAttempt
		}
	}
	return nil
}

// storedResult rebuilds the completion result from the attempt document, so
// a repeated Complete reports exactly what the first one did.
func (e *Engine) storedResult(ctx context.Context, a Attempt) Result {
	res := Result{
		CorrectAnswers:   a.CorrectAnswers,
		TotalQuestions:   a.TotalQuestions,
		Score:            Score(a.CorrectAnswers, a.TotalQuestions),
		TimeSpentSeconds: a.TimeSpentSeconds,
	}
	if u, err := e.profiles.Get(ctx, a.UserID); err == nil {
		res.AttemptsCount = u.AttemptsCount
	}
	return res
}

func (e *Engine) loadQuiz(ctx context.Context, quizID string) ([]catalog.Question, map[string][]catalog.Option, error) {
	questions, err := e.catalog.Questions(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	optionsByQ := make(map[string][]catalog.Option, len(questions))
	for _, q := range questions {
		opts, err := e.catalog.Options(ctx, quizID, q.ID)
		if err != nil {
			return nil, nil, err
		}
		optionsByQ[q.ID] = opts
	}
	return questions, optionsByQ, nil
}

func attemptFromDoc(id string, d docstore.Doc) Attempt {
	a := Attempt{
		ID:        id,
		QuizID:    docstore.AsString(d["quizId"]),
		UserID:    docstore.AsString(d["userId"]),
		Completed: docstore.AsBool(d["completed"]),
	}
	if t, ok := docstore.AsTime(d["startTime"]); ok {
		a.StartTime = t
	}
	if t, ok := docstore.AsTime(d["endTime"]); ok {
		a.EndTime = t
	}
	if n, ok := docstore.AsInt64(d["correctAnswers"]); ok {
		a.CorrectAnswers = int(n)
	}
	if n, ok := docstore.AsInt64(d["totalQuestions"]); ok {
		a.TotalQuestions = int(n)
	}
	if n, ok := docstore.AsInt64(d["timeSpentSeconds"]); ok {
		a.TimeSpentSeconds = int(n)
	}
	return a
}
