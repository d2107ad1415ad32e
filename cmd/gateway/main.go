package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/quizdeck/quizdeck/internal/api/http"
	"github.com/quizdeck/quizdeck/internal/attempt"
	auth "github.com/quizdeck/quizdeck/internal/auth/middleware"
	"github.com/quizdeck/quizdeck/internal/catalog"
	"github.com/quizdeck/quizdeck/internal/config"
	"github.com/quizdeck/quizdeck/internal/db"
	"github.com/quizdeck/quizdeck/internal/docstore"
	"github.com/quizdeck/quizdeck/internal/policy"
	"github.com/quizdeck/quizdeck/internal/profile"
	rbac "github.com/quizdeck/quizdeck/internal/rbac"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}

	cat := catalog.NewService(store)
	profiles := profile.NewService(store)

	gates := []policy.Gate{policy.RequireAuthenticated}
	if len(cfg.StartRoles) > 0 {
		gates = append(gates, policy.RequireRole(cfg.StartRoles...))
	}
	if cfg.RequireLocalStart {
		gates = append(gates, policy.RequireLocal)
	}
	if cfg.QuizPassHash != "" {
		gates = append(gates, policy.SharedPassword(cfg.QuizPassHash))
	}
	engineOpts := []attempt.Option{attempt.WithGate(policy.Chain(gates...))}
	if cfg.AllowConcurrentAttempts {
		engineOpts = append(engineOpts, attempt.WithConcurrentAttempts())
	}
	engine := attempt.NewEngine(store, cat, profiles, engineOpts...)

	authSvc := auth.NewAuthService(cfg.AuthSecret)
	creds := auth.LoginCreds{
		"teacher": cfg.TeacherPassHash,
		"student": cfg.StudentPassHash,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, creds))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromProfile(profiles, cfg.AllowClaimRole))

		pr.With(rbac.Require("user:identify")).
			Post("/users/identify", api.IdentifyUserHandler(profiles))

		// Catalog reads
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes", api.ListQuizzesHandler(cat))
		pr.With(rbac.Require("quiz:view")).
			Get("/quiz/subjects", api.ListSubjectsHandler(cat))
		pr.With(rbac.Require("quiz:view")).
			Get("/quiz/{quizID}/questions", api.ListQuestionsHandler(cat))
		pr.With(rbac.Require("quiz:view")).
			Get("/quiz/questions/{questionID}/options", api.ListOptionsHandler(cat))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/quiz/{quizID}/start", api.StartAttemptHandler(engine, cfg.Mode == config.ModeOffline))
		pr.With(rbac.Require("attempt:save")).
			Post("/quiz/attempts/{attemptID}/answer", api.RecordAnswerHandler(engine))
		pr.With(rbac.Require("attempt:complete")).
			Post("/quiz/attempts/{attemptID}/complete", api.CompleteAttemptHandler(engine))

		// Supervisory / authoring
		pr.With(rbac.Require("attempts:list")).
			Get("/teacher/attempts", api.ListAttemptsHandler(engine))
		pr.With(rbac.Require("users:list")).
			Get("/teacher/users", api.ListUsersHandler(profiles))
		pr.With(rbac.Require("question:create")).
			Post("/teacher/questions", api.AddQuestionHandler(cat))
		pr.With(rbac.Require("question:delete")).
			Delete("/teacher/questions/{orderNum}", api.DeleteQuestionHandler(cat))

		// Admin-only maintenance
		pr.With(rbac.Require("user:update")).
			Patch("/admin/users/{userID}/role", api.UpdateUserRoleHandler(profiles))
		pr.With(rbac.Require("aggregates:rebuild")).
			Post("/admin/rebuild-aggregates", api.RebuildAggregatesHandler(engine))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, store=%s)", cfg.HTTPAddr, cfg.Mode, cfg.StoreDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func openStore(ctx context.Context, cfg config.Config) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return docstore.NewMemoryStore(), nil
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, err
		}
		ms := docstore.NewMongoStore(client.Database(cfg.MongoDB))
		if err := ms.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return ms, nil
	default: // sqlite|postgres
		dbh, err := db.Open(ctx, db.Driver(cfg.StoreDriver), cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		ss := docstore.NewSQLStore(dbh)
		if cfg.StoreDriver == "postgres" {
			ss = docstore.NewPostgresStore(dbh)
		}
		if err := ss.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return ss, nil
	}
}
