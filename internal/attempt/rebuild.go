package attempt

import (
	"context"
	"log"
	"sort"

	"github.com/quizdeck/quizdeck/internal/docstore"
)

// RebuildAggregates recomputes every user's aggregate fields and per-quiz
// rollups from the attempt history. The increment-on-completion path is best
// effort and can under-count after transient store failures; this job is the
// recovery: attempts are the source of truth, aggregates only a cache.
func (e *Engine) RebuildAggregates(ctx context.Context) error {
	snaps, err := e.store.List(ctx, "attempts")
	if err != nil {
		return err
	}
	attempts := make([]Attempt, 0, len(snaps))
	for _, sn := range snaps {
		a := attemptFromDoc(sn.ID, sn.Data)
		if a.Completed {
			attempts = append(attempts, a)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].EndTime.Before(attempts[j].EndTime) })

	type agg struct {
		count int
		best  int
		last  Attempt
	}
	byUser := map[string]*agg{}
	byUserQuiz := map[string]map[string]*agg{}
	for _, a := range attempts {
		fold := func(g *agg) {
			g.count++
			if s := Score(a.CorrectAnswers, a.TotalQuestions); s > g.best {
				g.best = s
			}
			g.last = a
		}
		u := byUser[a.UserID]
		if u == nil {
			u = &agg{}
			byUser[a.UserID] = u
		}
		fold(u)
		qm := byUserQuiz[a.UserID]
		if qm == nil {
			qm = map[string]*agg{}
			byUserQuiz[a.UserID] = qm
		}
		q := qm[a.QuizID]
		if q == nil {
			q = &agg{}
			qm[a.QuizID] = q
		}
		fold(q)
	}

	for userID, g := range byUser {
		err := e.store.Set(ctx, docstore.Join("users", userID), docstore.Doc{
			"attemptsCount":      g.count,
			"bestScore":          g.best,
			"lastAttemptId":      g.last.ID,
			"lastScore":          Score(g.last.CorrectAnswers, g.last.TotalQuestions),
			"lastCorrectAnswers": g.last.CorrectAnswers,
			"lastTotalQuestions": g.last.TotalQuestions,
			"lastAttemptAt":      g.last.EndTime,
		}, true)
		if err != nil {
			log.Printf("[attempt] aggregate rebuild failed for user %s: %v", userID, err)
			continue
		}
		for quizID, q := range byUserQuiz[userID] {
			err := e.store.Set(ctx, docstore.Join("users", userID, "quizzes", quizID), docstore.Doc{
				"attemptsCount": q.count,
				"bestScore":     q.best,
				"lastAttemptId": q.last.ID,
				"lastScore":     Score(q.last.CorrectAnswers, q.last.TotalQuestions),
				"updatedAt":     q.last.EndTime,
			}, true)
			if err != nil {
				log.Printf("[attempt] rollup rebuild failed for %s/%s: %v", userID, quizID, err)
			}
		}
	}
	return nil
}
