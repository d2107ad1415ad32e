package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/profile"
)

type updateUserRoleReq struct {
	Role string `json:"role"`
}

// PATCH /admin/users/{userID}/role  { "role": "student|teacher|admin" }
// The target may be an id or a username; the frontend encodes either.
func UpdateUserRoleHandler(profiles *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "userID")
		if target == "" {
			http.Error(w, "missing userID", http.StatusBadRequest)
			return
		}
		var req updateUserRoleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		role := strings.ToLower(strings.TrimSpace(req.Role))
		if role != "student" && role != "teacher" && role != "admin" {
			http.Error(w, "invalid role", http.StatusBadRequest)
			return
		}

		u, err := profiles.Resolve(r.Context(), target)
		if err != nil {
			writeError(w, err)
			return
		}
		// Guard against demoting the last admin.
		if u.Role == "admin" && role != "admin" {
			users, err := profiles.List(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			admins := 0
			for _, other := range users {
				if other.Role == "admin" {
					admins++
				}
			}
			if admins <= 1 {
				http.Error(w, "cannot demote the last admin", http.StatusBadRequest)
				return
			}
		}

		if err := profiles.SetRole(r.Context(), u.ID, role); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /admin/rebuild-aggregates
// Recomputes profile aggregates and per-quiz rollups from the attempt
// history, for recovery after lost best-effort aggregate writes.
func RebuildAggregatesHandler(engine *attempt.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.RebuildAggregates(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}
