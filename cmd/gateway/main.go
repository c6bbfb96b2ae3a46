package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	api "github.com/learn-stack/learnstack-lms/internal/api/http"
	"github.com/learn-stack/learnstack-lms/internal/assessment"
	"github.com/learn-stack/learnstack-lms/internal/auth"
	"github.com/learn-stack/learnstack-lms/internal/config"
	"github.com/learn-stack/learnstack-lms/internal/db"
	"github.com/learn-stack/learnstack-lms/internal/events"
	"github.com/learn-stack/learnstack-lms/internal/grading"
	"github.com/learn-stack/learnstack-lms/internal/logging"
	"github.com/learn-stack/learnstack-lms/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	store := assessment.NewSQLStore(dbh)

	if err := seedAdmin(ctx, dbh, cfg); err != nil {
		logger.Warn("admin seed", zap.Error(err))
	}

	// --- Engine ---
	grader := grading.NewGrader(grading.WithEssayPolicy(grading.EssayPolicy(cfg.EssayPolicy)))
	eventLog := events.NewLog(dbh)
	engine := assessment.NewEngine(store, store, grader,
		assessment.WithEventSink(eventLog),
		assessment.WithLogger(logger),
	)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, auth.AdminFallback{
		Username: cfg.AdminUser,
		PassHash: cfg.AdminPassHash,
	}))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Authoring (teacher/admin)
		pr.With(rbac.Require("test:create")).
			Post("/tests", api.CreateTestHandler(store))
		pr.With(rbac.Require("test:publish")).
			Post("/tests/{testID}/publish", api.PublishTestHandler(store))
		pr.With(rbac.Require("test:publish")).
			Post("/tests/{testID}/archive", api.ArchiveTestHandler(store))

		// Catalog
		pr.With(rbac.Require("test:view")).
			Get("/tests", api.ListTestsHandler(store))
		pr.With(rbac.Require("test:view")).
			Get("/tests/{testID}", api.GetTestHandler(store))

		// Student flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(engine))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/answers", api.SaveAnswerHandler(engine))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(engine))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(engine, store, store))
		pr.With(rbac.RequireAny("result:view-own", "result:view-all")).
			Get("/attempts/{attemptID}/result", api.GetResultHandler(engine, store))
		pr.With(rbac.Require("result:view-own")).
			Get("/results", api.ListMyResultsHandler(store))

		// Reporting (teacher/admin)
		pr.With(rbac.Require("analytics:view")).
			Get("/tests/{testID}/analytics", api.TestAnalyticsHandler(engine))
		pr.With(rbac.Require("audit:view")).
			Get("/admin/events", api.EventSearchHandler(eventLog))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("db", cfg.DBDriver))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

// seedAdmin creates the admin user row from env once, so logins work even
// without the env fallback on later restarts.
func seedAdmin(ctx context.Context, dbh *sql.DB, cfg config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassHash == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(cfg.AdminPassHash)); err != nil {
		return err
	}
	_, err := dbh.ExecContext(ctx, `INSERT INTO users (id, username, pass_hash, role, created_at)
		VALUES ($1,$2,$3,'admin',$4)
		ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), cfg.AdminUser, cfg.AdminPassHash, time.Now().Unix())
	return err
}
