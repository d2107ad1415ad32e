package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/catalog"
	"github.com/quizdeck/quizdeck/internal/profile"
)

// GET /teacher/attempts
func ListAttemptsHandler(engine *attempt.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := engine.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, views)
	}
}

// GET /teacher/users
func ListUsersHandler(profiles *profile.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := profiles.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, users)
	}
}

// POST /teacher/questions
// Fails loud on a duplicate order number; nothing is mutated in that case.
func AddQuestionHandler(cat *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in catalog.AddQuestionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		q, err := cat.AddQuestion(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"id": q.ID, "subjectId": q.SubjectID})
	}
}

// DELETE /teacher/questions/{orderNum}?quizId=1
func DeleteQuestionHandler(cat *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNum, err := strconv.Atoi(chi.URLParam(r, "orderNum"))
		if err != nil {
			http.Error(w, "orderNum must be a number", 400)
			return
		}
		if err := cat.DeleteQuestion(r.Context(), r.URL.Query().Get("quizId"), orderNum); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}
