package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizdeck/quizdeck/internal/attempt"
	"github.com/quizdeck/quizdeck/internal/catalog"
	"github.com/quizdeck/quizdeck/internal/policy"
	"github.com/quizdeck/quizdeck/internal/rbac"
)

// GET /quiz/subjects
func ListSubjectsHandler(cat *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjects, err := cat.Subjects(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, subjects)
	}
}

// GET /quizzes
func ListQuizzesHandler(cat *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizzes, err := cat.Quizzes(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, quizzes)
	}
}

// GET /quiz/{quizID}/questions
// Answer keys never leave the server on this surface; options are fetched
// separately and carry isCorrect only for completed scoring server-side.
func ListQuestionsHandler(cat *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questions, err := cat.Questions(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, questions)
	}
}

// GET /quiz/questions/{questionID}/options?quizId=1
func ListOptionsHandler(cat *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := r.URL.Query().Get("quizId")
		if quizID == "" {
			quizID = "1"
		}
		options, err := cat.Options(r.Context(), quizID, chi.URLParam(r, "questionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, options)
	}
}

// POST /quiz/{quizID}/start  { "password": "..." }
// Identity comes from the session, never the body.
func StartAttemptHandler(engine *attempt.Engine, local bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		// body is optional: deployments without a password gate post nothing
		_ = json.NewDecoder(r.Body).Decode(&req)
		id, err := engine.Start(r.Context(), policy.StartRequest{
			QuizID:   chi.URLParam(r, "quizID"),
			UserID:   rbac.SubjectFromContext(r.Context()),
			Role:     rbac.RoleFromContext(r.Context()),
			Password: req.Password,
			Local:    local,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"id": id})
	}
}

// POST /quiz/attempts/{attemptID}/answer  { "questionId": "...", "selectedOptionId": "..." }
func RecordAnswerHandler(engine *attempt.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID       string `json:"questionId"`
			SelectedOptionID string `json:"selectedOptionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		id := chi.URLParam(r, "attemptID")
		if err := engine.RecordAnswer(r.Context(), id, req.QuestionID, req.SelectedOptionID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

// POST /quiz/attempts/{attemptID}/complete
func CompleteAttemptHandler(engine *attempt.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := engine.Complete(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, res)
	}
}
