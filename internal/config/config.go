package config

import (
	"os"
	"strings"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	// Document store backend: memory|sqlite|postgres|mongo.
	StoreDriver string
	DBDSN       string
	MongoURI    string
	MongoDB     string

	AuthSecret      string
	EnableLocalAuth bool
	// Bcrypt hashes of the shared login passwords per role; empty string
	// means the role logs in without a password (LAN-only deployments).
	TeacherPassHash string
	StudentPassHash string

	// Optional bcrypt hash of the shared quiz password checked by the
	// pre-start policy. Empty disables the gate.
	QuizPassHash string
	// Allows unlimited concurrent in-progress attempts per user+quiz.
	AllowConcurrentAttempts bool
	// Flight-mode rule: starts are only accepted through the local agent,
	// never over the public surface.
	RequireLocalStart bool
	// When set, only these roles may start attempts; empty disables the gate.
	StartRoles []string
	// Claim role is trusted when no profile exists yet (dev/offline).
	AllowClaimRole bool

	CORSOriginsOnline  []string
	CORSOriginsOffline []string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:                    mode,
		HTTPAddr:                envOr("HTTP_ADDR", ":8080"),
		StoreDriver:             envOr("STORE_DRIVER", "sqlite"),
		DBDSN:                   os.Getenv("DB_DSN"),
		MongoURI:                envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:                 envOr("MONGO_DB", "quizdeck"),
		AuthSecret:              envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		EnableLocalAuth:         envBool("ENABLE_LOCAL_AUTH", true),
		TeacherPassHash:         envOr("TEACHER_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		StudentPassHash:         os.Getenv("STUDENT_PASS_HASH"),
		QuizPassHash:            os.Getenv("QUIZ_PASS_HASH"),
		AllowConcurrentAttempts: envBool("ALLOW_CONCURRENT_ATTEMPTS", false),
		RequireLocalStart:       envBool("REQUIRE_LOCAL_START", false),
		StartRoles:              csvOr("START_ROLES", ""),
		AllowClaimRole:          envBool("ALLOW_CLAIM_ROLE", mode == ModeOffline),
		CORSOriginsOnline:       csvOr("CORS_ORIGINS_ONLINE", "https://quiz.example.com"),
		CORSOriginsOffline:      csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:8000"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
