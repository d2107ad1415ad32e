package offline

import (
	"context"
	"log"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/profile"
)

// Remote is the slice of the gateway client reconciliation replays against.
type Remote interface {
	Identify(ctx context.Context, in profile.IdentifyInput) (string, error)
	StartAttempt(ctx context.Context, quizID string) (string, error)
	RecordAnswer(ctx context.Context, attemptID, questionID, selectedID string) error
	CompleteAttempt(ctx context.Context, attemptID string) (attempt.Result, error)
}

// Reconcile replays buffered work against the gateway: the queued identify
// first, then the local attempt (start, every answer, completion if the
// attempt finished offline). Safe to re-invoke after a partial failure:
// every step checkpoints durable state before moving on, the remote answer
// upserts are idempotent, and a repeated remote completion returns the
// stored result. A failure leaves the buffer queued for the next
// connectivity event; buffered answers are never dropped.
func (s *State) Reconcile(ctx context.Context, remote Remote) error {
	if in, ok, err := s.PendingIdentify(ctx); err != nil {
		return err
	} else if ok {
		if _, err := remote.Identify(ctx, in); err != nil {
			return err
		}
		if err := s.drop(ctx, keyIdentify); err != nil {
			return err
		}
		log.Printf("[offline-sync] flushed queued identify")
	}

	a, ok, err := s.Attempt(ctx)
	if err != nil {
		return err
	}
	if !ok || a.Synced {
		return nil
	}

	if a.RemoteID == "" {
		remoteID, err := remote.StartAttempt(ctx, a.QuizID)
		if err != nil {
			return err
		}
		a.RemoteID = remoteID
		// Checkpoint before replaying answers so an interrupted run does
		// not start a second remote attempt.
		if err := s.save(ctx, keyAttempt, a); err != nil {
			return err
		}
	}

	for qid, sel := range a.Answers {
		if err := remote.RecordAnswer(ctx, a.RemoteID, qid, sel); err != nil {
			return err
		}
	}

	if a.Completed {
		res, err := remote.CompleteAttempt(ctx, a.RemoteID)
		if err != nil {
			return err
		}
		a.Result = &res
	}

	a.Synced = true
	if err := s.save(ctx, keyAttempt, a); err != nil {
		return err
	}
	log.Printf("[offline-sync] attempt %s reconciled as %s", a.ID, a.RemoteID)
	return nil
}
