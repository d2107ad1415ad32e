package offline

import (
	"context"
	"time"

	"github.com/quizdeck/quizdeck/internal/catalog"
)

// CacheSnapshot is the read-only quiz catalog captured while online. It is
// what makes offline completion possible; its correctness rule (which option
// counts as correct) is the engine's, reused via attempt.CountCorrect.
type CacheSnapshot struct {
	QuizID            string                      `json:"quizId"`
	QuizUpdatedAt     time.Time                   `json:"quizUpdatedAt"`
	FetchedAt         time.Time                   `json:"fetchedAt"`
	Subjects          []catalog.Subject           `json:"subjects"`
	Questions         []catalog.Question          `json:"questions"`
	OptionsByQuestion map[string][]catalog.Option `json:"optionsByQuestion"`
}

// Stale reports whether the live quiz has been modified since this snapshot
// was taken.
func (c *CacheSnapshot) Stale(liveUpdatedAt time.Time) bool {
	return liveUpdatedAt.After(c.QuizUpdatedAt)
}

// Cache returns the stored snapshot, or ok=false when nothing usable is
// cached.
func (s *State) Cache(ctx context.Context) (CacheSnapshot, bool, error) {
	var snap CacheSnapshot
	ok, err := s.load(ctx, keyCache, &snap)
	return snap, ok, err
}

// PutCache persists a fresh snapshot, replacing any prior one.
func (s *State) PutCache(ctx context.Context, snap CacheSnapshot) error {
	return s.save(ctx, keyCache, snap)
}

// CatalogFetcher is the slice of the gateway client prefetch needs.
type CatalogFetcher interface {
	Quizzes(ctx context.Context) ([]catalog.Quiz, error)
	Subjects(ctx context.Context) ([]catalog.Subject, error)
	Questions(ctx context.Context, quizID string) ([]catalog.Question, error)
	Options(ctx context.Context, quizID, questionID string) ([]catalog.Option, error)
}

// Prefetch captures a snapshot of one quiz from the gateway. Called while
// online, before the attempt begins; skipped when the cached copy is still
// current.
func (s *State) Prefetch(ctx context.Context, fetch CatalogFetcher, quizID string) error {
	var quizUpdatedAt time.Time
	if quizzes, err := fetch.Quizzes(ctx); err == nil {
		for _, q := range quizzes {
			if q.ID == quizID {
				quizUpdatedAt = q.UpdatedAt
				break
			}
		}
	}
	if cur, ok, err := s.Cache(ctx); err == nil && ok &&
		cur.QuizID == quizID && !quizUpdatedAt.IsZero() && !cur.Stale(quizUpdatedAt) {
		return nil
	}

	subjects, err := fetch.Subjects(ctx)
	if err != nil {
		return err
	}
	questions, err := fetch.Questions(ctx, quizID)
	if err != nil {
		return err
	}
	optionsByQ := make(map[string][]catalog.Option, len(questions))
	for _, q := range questions {
		opts, err := fetch.Options(ctx, quizID, q.ID)
		if err != nil {
			return err
		}
		optionsByQ[q.ID] = opts
	}
	return s.PutCache(ctx, CacheSnapshot{
		QuizID:            quizID,
		QuizUpdatedAt:     quizUpdatedAt,
		FetchedAt:         time.Now(),
		Subjects:          subjects,
		Questions:         questions,
		OptionsByQuestion: optionsByQ,
	})
}
