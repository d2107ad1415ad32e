package offline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/profile"
)

// LocalAttempt mirrors one in-flight attempt while disconnected. The id is
// fabricated locally ("local-" prefix) so it can never collide with a
// store-assigned one; RemoteID is filled in at reconciliation.
type LocalAttempt struct {
	ID        string            `json:"id"`
	QuizID    string            `json:"quizId"`
	UserID    string            `json:"userId"`
	Answers   map[string]string `json:"answers"`
	Completed bool              `json:"completed"`
	Result    *attempt.Result   `json:"result,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	Synced    bool              `json:"synced"`
	RemoteID  string            `json:"remoteAttemptId,omitempty"`
}

// Attempt returns the buffered local attempt if one exists.
func (s *State) Attempt(ctx context.Context) (LocalAttempt, bool, error) {
	var a LocalAttempt
	ok, err := s.load(ctx, keyAttempt, &a)
	return a, ok, err
}

// StartLocal fabricates a new local attempt, resetting the answer buffer.
// Requires a usable catalog cache: without one the attempt could never be
// scored offline.
func (s *State) StartLocal(ctx context.Context, quizID, userID string) (LocalAttempt, error) {
	snap, ok, err := s.Cache(ctx)
	if err != nil {
		return LocalAttempt{}, err
	}
	if !ok || snap.QuizID != quizID {
		return LocalAttempt{}, ErrNotCached
	}
	a := LocalAttempt{
		ID:        "local-" + uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Answers:   map[string]string{},
		StartedAt: time.Now(),
	}
	return a, s.save(ctx, keyAttempt, a)
}

// MirrorRemote materializes a local mirror for an attempt that was started
// remotely, so answers buffered during a mid-attempt connectivity drop are
// replayed against the existing remote attempt instead of starting a second
// one. No catalog cache is required: buffering needs no scoring. Idempotent
// for the same remote id.
func (s *State) MirrorRemote(ctx context.Context, quizID, userID, remoteID string) (LocalAttempt, error) {
	if a, ok, err := s.Attempt(ctx); err != nil {
		return LocalAttempt{}, err
	} else if ok && a.RemoteID == remoteID {
		return a, nil
	}
	a := LocalAttempt{
		ID:        "local-" + uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Answers:   map[string]string{},
		StartedAt: time.Now(),
		RemoteID:  remoteID,
	}
	return a, s.save(ctx, keyAttempt, a)
}

// RecordLocal upserts one answer, same semantics as the online path.
func (s *State) RecordLocal(ctx context.Context, questionID, selectedID string) error {
	a, ok, err := s.Attempt(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAttempt
	}
	if a.Completed {
		return attempt.ErrAlreadyCompleted
	}
	a.Answers[questionID] = selectedID
	// New work to replay, even if an earlier reconcile pass finished.
	a.Synced = false
	return s.save(ctx, keyAttempt, a)
}

// CompleteLocal scores the buffered attempt against the catalog cache. An
// absent cache is a hard error; silently reporting zero would misgrade the
// student.
func (s *State) CompleteLocal(ctx context.Context) (attempt.Result, error) {
	a, ok, err := s.Attempt(ctx)
	if err != nil {
		return attempt.Result{}, err
	}
	if !ok {
		return attempt.Result{}, ErrNoAttempt
	}
	if a.Completed && a.Result != nil {
		return *a.Result, nil
	}
	snap, ok, err := s.Cache(ctx)
	if err != nil {
		return attempt.Result{}, err
	}
	if !ok || snap.QuizID != a.QuizID {
		return attempt.Result{}, ErrNotCached
	}

	correct := attempt.CountCorrect(snap.Questions, snap.OptionsByQuestion, a.Answers)
	total := len(snap.Questions)
	elapsed := int(time.Since(a.StartedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	res := attempt.Result{
		CorrectAnswers:   correct,
		TotalQuestions:   total,
		Score:            attempt.Score(correct, total),
		TimeSpentSeconds: elapsed,
	}
	a.Completed = true
	a.Result = &res
	a.Synced = false
	return res, s.save(ctx, keyAttempt, a)
}

// QueueIdentify buffers a profile-identify payload that could not reach the
// gateway.
func (s *State) QueueIdentify(ctx context.Context, in profile.IdentifyInput) error {
	return s.save(ctx, keyIdentify, in)
}

// PendingIdentify returns the queued identify payload if any.
func (s *State) PendingIdentify(ctx context.Context) (profile.IdentifyInput, bool, error) {
	var in profile.IdentifyInput
	ok, err := s.load(ctx, keyIdentify, &in)
	return in, ok, err
}
