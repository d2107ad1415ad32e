package offline

import (
	"context"
	"testing"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/catalog"
	"github.com/quizdeck/quizdeck/internal/docstore"
	"github.com/quizdeck/quizdeck/internal/policy"
	"github.com/quizdeck/quizdeck/internal/profile"
)

// engineRemote drives a real engine through the reconciler's interface,
// standing in for the gateway.
type engineRemote struct {
	engine   *attempt.Engine
	profiles *profile.Service
	userID   string
}

func (r engineRemote) Identify(ctx context.Context, in profile.IdentifyInput) (string, error) {
	return r.profiles.Identify(ctx, in)
}

func (r engineRemote) StartAttempt(ctx context.Context, quizID string) (string, error) {
	return r.engine.Start(ctx, policy.StartRequest{QuizID: quizID, UserID: r.userID})
}

func (r engineRemote) RecordAnswer(ctx context.Context, attemptID, questionID, selectedID string) error {
	return r.engine.RecordAnswer(ctx, attemptID, questionID, selectedID)
}

func (r engineRemote) CompleteAttempt(ctx context.Context, attemptID string) (attempt.Result, error) {
	return r.engine.Complete(ctx, attemptID)
}

// An attempt run fully offline and then reconciled must land on the server
// exactly as the same answers submitted while online would have.
func TestOfflineRoundTripMatchesOnlineRun(t *testing.T) {
	ctx := context.Background()
	seed := func(cat *catalog.Service) {
		t.Helper()
		for i := 1; i <= 5; i++ {
			_, err := cat.AddQuestion(ctx, catalog.AddQuestionInput{
				QuizID: "1", OrderNum: i, QuestionText: "q",
				Options: []string{"right", "wrong", "worse", "nope"}, CorrectIndex: 0,
			})
			if err != nil {
				t.Fatal(err)
			}
		}
	}
	answers := map[string]string{"1": "0", "2": "0", "3": "1"} // 2 correct, 1 wrong, 2 blank

	// Online reference run.
	onlineStore := docstore.NewMemoryStore()
	onlineCat := catalog.NewService(onlineStore)
	onlineProfiles := profile.NewService(onlineStore)
	onlineEngine := attempt.NewEngine(onlineStore, onlineCat, onlineProfiles)
	seed(onlineCat)
	onlineID, err := onlineEngine.Start(ctx, policy.StartRequest{QuizID: "1", UserID: "ann"})
	if err != nil {
		t.Fatal(err)
	}
	for q, sel := range answers {
		if err := onlineEngine.RecordAnswer(ctx, onlineID, q, sel); err != nil {
			t.Fatal(err)
		}
	}
	online, err := onlineEngine.Complete(ctx, onlineID)
	if err != nil {
		t.Fatal(err)
	}

	// Offline run against a second, independent server.
	store := docstore.NewMemoryStore()
	cat := catalog.NewService(store)
	profiles := profile.NewService(store)
	engine := attempt.NewEngine(store, cat, profiles)
	seed(cat)

	s := openState(t)
	snap := snapshotWith(5)
	if err := s.PutCache(ctx, snap); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartLocal(ctx, "1", "ann"); err != nil {
		t.Fatal(err)
	}
	for q, sel := range answers {
		if err := s.RecordLocal(ctx, q, sel); err != nil {
			t.Fatal(err)
		}
	}
	local, err := s.CompleteLocal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if local.CorrectAnswers != online.CorrectAnswers || local.Score != online.Score {
		t.Fatalf("local scoring %+v disagrees with online %+v", local, online)
	}

	if err := s.Reconcile(ctx, engineRemote{engine: engine, profiles: profiles, userID: "ann"}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	a, _, err := s.Attempt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	remote, err := engine.Get(ctx, a.RemoteID)
	if err != nil {
		t.Fatal(err)
	}
	if remote.CorrectAnswers != online.CorrectAnswers ||
		remote.TotalQuestions != online.TotalQuestions ||
		!remote.Completed {
		t.Fatalf("reconciled attempt %+v, online reference %+v", remote, online)
	}

	// Aggregates on both servers agree.
	for i, p := range []*profile.Service{onlineProfiles, profiles} {
		u, err := p.Get(ctx, "ann")
		if err != nil {
			t.Fatal(err)
		}
		if u.AttemptsCount != 1 || u.BestScore != attempt.Score(2, 5) {
			t.Fatalf("server %d aggregates = {count:%d best:%d}, want {1 %d}",
				i, u.AttemptsCount, u.BestScore, attempt.Score(2, 5))
		}
	}
}
