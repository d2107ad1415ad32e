// Package profile owns user profile documents: identity fields, the role
// attribute, and the aggregate fields the attempt engine maintains on
// completion (last/best score, attempt counts, per-quiz rollups).
package profile

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/quizdeck/quizdeck/internal/docstore"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username,omitempty"`
	Email              string    `json:"email,omitempty"`
	FullName           string    `json:"fullName,omitempty"`
	Role               string    `json:"role"`
	AttemptsCount      int       `json:"attemptsCount"`
	LastScore          int       `json:"lastScore,omitempty"`
	BestScore          int       `json:"bestScore,omitempty"`
	LastAttemptID      string    `json:"lastAttemptId,omitempty"`
	LastCorrectAnswers int       `json:"lastCorrectAnswers,omitempty"`
	LastTotalQuestions int       `json:"lastTotalQuestions,omitempty"`
	LastAttemptAt      time.Time `json:"lastAttemptAt,omitempty"`
}

type IdentifyInput struct {
	ID         string `json:"id,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	FullName   string `json:"fullName,omitempty"`
	Role       string `json:"role,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

// Completion carries one finished attempt's contribution to the aggregates.
type Completion struct {
	AttemptID string
	QuizID    string
	Score     int
	Correct   int
	Total     int
}

type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Identify upserts a profile. A known id wins; otherwise an existing profile
// is matched by username or email; otherwise a new one is created.
func (s *Service) Identify(ctx context.Context, in IdentifyInput) (string, error) {
	if in.Role == "" {
		in.Role = RoleStudent
	}
	id := in.ID
	if id == "" && (in.Username != "" || in.Email != "") {
		snaps, err := s.store.List(ctx, "users")
		if err != nil {
			return "", err
		}
		for _, sn := range snaps {
			if (in.Username != "" && docstore.AsString(sn.Data["username"]) == in.Username) ||
				(in.Email != "" && docstore.AsString(sn.Data["email"]) == in.Email) {
				id = sn.ID
				break
			}
		}
	}
	// Only provided fields are merged; an identify without an email must
	// not blank the stored one.
	fields := docstore.Doc{
		"role":      in.Role,
		"updatedAt": docstore.ServerTimestamp{},
	}
	if in.Username != "" {
		fields["username"] = in.Username
	}
	if in.Email != "" {
		fields["email"] = in.Email
	}
	if in.FullName != "" {
		fields["fullName"] = in.FullName
	}
	if in.ExternalID != "" {
		fields["externalId"] = in.ExternalID
	}
	if id != "" {
		return id, s.store.Set(ctx, docstore.Join("users", id), fields, true)
	}
	fields["createdAt"] = docstore.ServerTimestamp{}
	return s.store.Add(ctx, "users", fields)
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	d, err := s.store.Get(ctx, docstore.Join("users", id))
	if errors.Is(err, docstore.ErrNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return userFromDoc(id, d), nil
}

// Resolve finds a profile by id or, failing that, by username.
func (s *Service) Resolve(ctx context.Context, target string) (User, error) {
	u, err := s.Get(ctx, target)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	snaps, err := s.store.List(ctx, "users")
	if err != nil {
		return User{}, err
	}
	for _, sn := range snaps {
		if docstore.AsString(sn.Data["username"]) == target {
			return userFromDoc(sn.ID, sn.Data), nil
		}
	}
	return User{}, ErrUserNotFound
}

// SetRole rewrites the authoritative role on an existing profile.
func (s *Service) SetRole(ctx context.Context, id, role string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Set(ctx, docstore.Join("users", id), docstore.Doc{
		"role":      role,
		"updatedAt": docstore.ServerTimestamp{},
	}, true)
}

// List returns all profiles for the supervisory surface, username-sorted.
func (s *Service) List(ctx context.Context) ([]User, error) {
	snaps, err := s.store.List(ctx, "users")
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(snaps))
	for _, sn := range snaps {
		out = append(out, userFromDoc(sn.ID, sn.Data))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// ApplyCompletion folds one completion into the profile aggregates. The
// attempts counter is an atomic increment; bestScore goes through a
// compare-and-swap so concurrent completions cannot regress it.
func (s *Service) ApplyCompletion(ctx context.Context, userID string, c Completion) error {
	path := docstore.Join("users", userID)
	err := s.store.Set(ctx, path, docstore.Doc{
		"lastAttemptId":      c.AttemptID,
		"lastScore":          c.Score,
		"lastCorrectAnswers": c.Correct,
		"lastTotalQuestions": c.Total,
		"attemptsCount":      docstore.Increment{By: 1},
		"lastAttemptAt":      docstore.ServerTimestamp{},
	}, true)
	if err != nil {
		return err
	}
	return s.raiseBestScore(ctx, path, c.Score)
}

// ApplyQuizRollup folds the completion into the per-quiz rollup under the
// user, independently of the profile-level aggregate.
func (s *Service) ApplyQuizRollup(ctx context.Context, userID string, c Completion) error {
	path := docstore.Join("users", userID, "quizzes", c.QuizID)
	err := s.store.Set(ctx, path, docstore.Doc{
		"lastAttemptId": c.AttemptID,
		"lastScore":     c.Score,
		"attemptsCount": docstore.Increment{By: 1},
		"updatedAt":     docstore.ServerTimestamp{},
	}, true)
	if err != nil {
		return err
	}
	return s.raiseBestScore(ctx, path, c.Score)
}

// raiseBestScore lifts bestScore to score if higher, never lowering it.
// Plain read-then-write would race concurrent completions, so each write is
// conditional on the value just read, retried a few times on conflict.
func (s *Service) raiseBestScore(ctx context.Context, path string, score int) error {
	for i := 0; i < 5; i++ {
		d, err := s.store.Get(ctx, path)
		if err != nil {
			return err
		}
		cur, hasCur := docstore.AsInt64(d["bestScore"])
		if hasCur && int(cur) >= score {
			return nil
		}
		var cond docstore.Doc
		if hasCur {
			cond = docstore.Doc{"bestScore": cur}
		} else {
			cond = docstore.Doc{"bestScore": nil}
		}
		ok, err := s.store.UpdateIf(ctx, path, cond, docstore.Doc{"bestScore": score})
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return errors.New("bestScore update conflicted repeatedly")
}

func userFromDoc(id string, d docstore.Doc) User {
	u := User{
		ID:       id,
		Username: docstore.AsString(d["username"]),
		Email:    docstore.AsString(d["email"]),
		FullName: docstore.AsString(d["fullName"]),
		Role:     docstore.AsString(d["role"]),
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if n, ok := docstore.AsInt64(d["attemptsCount"]); ok {
		u.AttemptsCount = int(n)
	}
	if n, ok := docstore.AsInt64(d["lastScore"]); ok {
		u.LastScore = int(n)
	}
	if n, ok := docstore.AsInt64(d["bestScore"]); ok {
		u.BestScore = int(n)
	}
	if n, ok := docstore.AsInt64(d["lastCorrectAnswers"]); ok {
		u.LastCorrectAnswers = int(n)
	}
	if n, ok := docstore.AsInt64(d["lastTotalQuestions"]); ok {
		u.LastTotalQuestions = int(n)
	}
	u.LastAttemptID = docstore.AsString(d["lastAttemptId"])
	if t, ok := docstore.AsTime(d["lastAttemptAt"]); ok {
		u.LastAttemptAt = t
	}
	return u
}
