// Package kiosk drives a student's attempt on the offline-capable agent:
// it routes operations to the gateway while reachable and to the local
// offline buffer otherwise, debounces answer saves, and reconciles when
// connectivity returns.
package kiosk

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/client"
	"github.com/quizdeck/quizdeck/internal/offline"
	"github.com/quizdeck/quizdeck/internal/profile"
)

const answerDebounce = 350 * time.Millisecond

type Runner struct {
	client   *client.Client
	state    *offline.State
	quizID   string
	userID   string
	password string

	mu        sync.Mutex
	online    bool
	attemptID string // remote id while online; empty when running locally
	debounce  *answerDebouncer
}

func NewRunner(c *client.Client, state *offline.State, quizID, userID, password string) *Runner {
	r := &Runner{
		client:   c,
		state:    state,
		quizID:   quizID,
		userID:   userID,
		password: password,
	}
	r.debounce = newAnswerDebouncer(answerDebounce, r.saveAnswer)
	return r
}

// Identify upserts the user's profile, queueing the payload when offline.
func (r *Runner) Identify(ctx context.Context, in profile.IdentifyInput) error {
	if r.isOnline() {
		if _, err := r.client.Identify(ctx, in); err == nil {
			return nil
		}
	}
	return r.state.QueueIdentify(ctx, in)
}

// Start begins an attempt, remotely when reachable and locally otherwise.
func (r *Runner) Start(ctx context.Context) error {
	if r.isOnline() {
		id, err := r.client.StartAttempt(ctx, r.quizID, r.password)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.attemptID = id
		r.mu.Unlock()
		return nil
	}
	_, err := r.state.StartLocal(ctx, r.quizID, r.userID)
	r.mu.Lock()
	r.attemptID = ""
	r.mu.Unlock()
	return err
}

// SelectAnswer records a selection, debounced; only the last selection per
// question within the window is persisted.
func (r *Runner) SelectAnswer(questionID, selectedID string) {
	r.debounce.Select(questionID, selectedID)
}

// Complete flushes pending saves and finalizes the attempt.
func (r *Runner) Complete(ctx context.Context) (attempt.Result, error) {
	r.debounce.Flush()
	r.mu.Lock()
	remoteID := r.attemptID
	r.mu.Unlock()
	if r.isOnline() && remoteID != "" {
		return r.client.CompleteAttempt(ctx, remoteID)
	}
	if remoteID != "" {
		if _, err := r.state.MirrorRemote(ctx, r.quizID, r.userID, remoteID); err != nil {
			return attempt.Result{}, err
		}
	}
	return r.state.CompleteLocal(ctx)
}

// saveAnswer is the debouncer's sink. A failed remote save falls back to
// the local buffer so no selection is lost to a flaky network.
func (r *Runner) saveAnswer(questionID, selectedID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.mu.Lock()
	remoteID := r.attemptID
	r.mu.Unlock()
	if r.isOnline() && remoteID != "" {
		if err := r.client.RecordAnswer(ctx, remoteID, questionID, selectedID); err == nil {
			return
		}
		log.Printf("[kiosk] remote answer save failed, buffering q=%s", questionID)
	}
	if err := r.recordLocal(ctx, questionID, selectedID); err != nil {
		log.Printf("[kiosk] buffering answer failed q=%s: %v", questionID, err)
	}
}

// recordLocal buffers one answer. When the attempt was started remotely and
// the connection dropped mid-attempt there is no local attempt yet, so one is
// materialized as a mirror of the remote attempt; the reconciler then replays
// the buffered answers against it instead of starting a second attempt.
func (r *Runner) recordLocal(ctx context.Context, questionID, selectedID string) error {
	err := r.state.RecordLocal(ctx, questionID, selectedID)
	if !errors.Is(err, offline.ErrNoAttempt) {
		return err
	}
	r.mu.Lock()
	remoteID := r.attemptID
	r.mu.Unlock()
	if remoteID == "" {
		return err
	}
	if _, err := r.state.MirrorRemote(ctx, r.quizID, r.userID, remoteID); err != nil {
		return err
	}
	return r.state.RecordLocal(ctx, questionID, selectedID)
}

// RunProbeLoop polls gateway reachability. Going online triggers a catalog
// prefetch and a reconcile pass; probe timeouts count as offline.
func (r *Runner) RunProbeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.probeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) probeOnce(ctx context.Context) {
	up := r.client.Probe(ctx)
	r.mu.Lock()
	was := r.online
	r.online = up
	r.mu.Unlock()
	if !up {
		if was {
			log.Printf("[kiosk] gateway unreachable, switching to offline buffer")
		}
		return
	}
	if !was {
		log.Printf("[kiosk] gateway reachable, reconciling")
	}
	if err := r.state.Prefetch(ctx, r.client, r.quizID); err != nil {
		log.Printf("[kiosk] catalog prefetch failed: %v", err)
	}
	if err := r.state.Reconcile(ctx, remoteAdapter{c: r.client, password: r.password}); err != nil {
		log.Printf("[offline-sync] reconcile failed, will retry: %v", err)
	}
}

func (r *Runner) isOnline() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// remoteAdapter narrows the gateway client to the reconciler's interface,
// binding the start password.
type remoteAdapter struct {
	c        *client.Client
	password string
}

func (r remoteAdapter) Identify(ctx context.Context, in profile.IdentifyInput) (string, error) {
	return r.c.Identify(ctx, in)
}

func (r remoteAdapter) StartAttempt(ctx context.Context, quizID string) (string, error) {
	return r.c.StartAttempt(ctx, quizID, r.password)
}

func (r remoteAdapter) RecordAnswer(ctx context.Context, attemptID, questionID, selectedID string) error {
	return r.c.RecordAnswer(ctx, attemptID, questionID, selectedID)
}

func (r remoteAdapter) CompleteAttempt(ctx context.Context, attemptID string) (attempt.Result, error) {
	return r.c.CompleteAttempt(ctx, attemptID)
}
