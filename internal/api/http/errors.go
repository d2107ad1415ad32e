package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/catalog"
	"github.com/quizdeck/quizdeck/internal/docstore"
	"github.com/quizdeck/quizdeck/internal/policy"
	"github.com/quizdeck/quizdeck/internal/profile"
)

// writeJSON is the single place responses get encoded so every handler
// carries the same Content-Type.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes. Messages are already
// suitable for direct display (authoring failures in particular).
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, attempt.ErrAttemptNotFound),
		errors.Is(err, profile.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, catalog.ErrDuplicateOrderNumber),
		errors.Is(err, attempt.ErrAlreadyCompleted),
		errors.Is(err, attempt.ErrActiveAttempt):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, policy.ErrBadPassword),
		errors.Is(err, policy.ErrRoleRefused),
		errors.Is(err, policy.ErrMustBeLocal):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, policy.ErrNotLoggedIn):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
