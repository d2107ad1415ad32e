package http

import (
	"encoding/json"
	"net/http"

	"github.com/quizdeck/quizdeck/internal/profile"
	"github.com/quizdeck/quizdeck/internal/rbac"
)

// POST /users/identify
// Upserts the caller's profile. Students cannot grant themselves the
// teacher role through this surface; role escalation is server-side only.
func IdentifyUserHandler(profiles *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in profile.IdentifyInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		callerRole := rbac.RoleFromContext(r.Context())
		if in.Role == profile.RoleTeacher && callerRole != profile.RoleTeacher && callerRole != "admin" {
			in.Role = profile.RoleStudent
		}
		if in.ID == "" {
			in.ID = rbac.SubjectFromContext(r.Context())
		}
		id, err := profiles.Identify(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"id": id})
	}
}
