package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/prepdesk/prepdesk-backend/internal/api/http"
	"github.com/prepdesk/prepdesk-backend/internal/auth"
	"github.com/prepdesk/prepdesk-backend/internal/catalog"
	"github.com/prepdesk/prepdesk-backend/internal/config"
	"github.com/prepdesk/prepdesk-backend/internal/db"
	"github.com/prepdesk/prepdesk-backend/internal/entitlement"
	"github.com/prepdesk/prepdesk-backend/internal/rbac"
	"github.com/prepdesk/prepdesk-backend/internal/session"
	"github.com/prepdesk/prepdesk-backend/internal/storage"
	syncx "github.com/prepdesk/prepdesk-backend/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	cat := catalog.NewSQLStore(dbh)
	sessions := session.NewSQLStore(dbh)
	ents := entitlement.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh)

	mgr := session.NewManager(sessions, cat,
		[]session.Option{session.WithHeartbeatInterval(cfg.HeartbeatInterval)},
		[]session.PracticeOption{session.PracticeAdvanceDelay(cfg.PracticeAdvanceDelay)},
	)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.JWTSecret)
	if err := auth.EnsureAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/api/auth/login", auth.LoginHandler(authSvc, dbh))
	r.Post("/api/auth/register", api.RegisterHandler(dbh))

	bs, err := storage.NewFSStore(cfg.AssetBasePath)
	if err != nil {
		log.Fatalf("asset store: %v", err)
	}
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, true))
		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, bs, rbac.Require("asset:upload"))
		})
	})

	// Protected API (JWT -> role in context -> RBAC)
	r.Route("/api", func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, true))

		// Catalog
		pr.With(rbac.Require("assessment:create")).
			Post("/assessments", api.PutAssessmentHandler(cat))
		pr.With(rbac.Require("assessment:view")).
			Get("/assessments", api.ListAssessmentsHandler(cat))
		pr.With(rbac.Require("assessment:view")).
			Get("/assessments/{assessmentID}", api.GetAssessmentHandler(cat))
		pr.With(rbac.Require("assessment:view-keys")).
			Get("/assessments/{assessmentID}/full", api.GetAssessmentFullHandler(cat))
		pr.With(rbac.Require("ranking:view")).
			Get("/assessments/{assessmentID}/leaderboard", api.LeaderboardHandler(sessions))

		// Entitlements
		pr.With(rbac.Require("entitlement:grant")).
			Post("/entitlements", api.GrantEntitlementHandler(ents))
		pr.Get("/entitlements", api.ListMyEntitlementsHandler(ents))

		// Exam sessions
		pr.With(rbac.Require("session:create")).
			Post("/sessions", api.CreateSessionHandler(mgr, ents))
		pr.With(rbac.RequireAny("session:view-own", "session:view-all")).
			Get("/sessions", api.ListSessionsHandler(mgr, cfg.SessionListLimit))
		pr.With(rbac.RequireOwnerOr("session:view-own", "session:view-all", ownerCheck(mgr))).
			Get("/sessions/{sessionID}", api.GetSessionHandler(mgr))
		pr.With(rbac.Require("session:save")).
			Post("/sessions/{sessionID}/start", api.StartSessionHandler(mgr, events))
		pr.With(rbac.Require("session:save")).
			Post("/sessions/{sessionID}/answers", api.AnswerHandler(mgr))
		pr.With(rbac.Require("session:save")).
			Post("/sessions/{sessionID}/navigate", api.NavigateHandler(mgr))
		pr.With(rbac.Require("session:save")).
			Post("/sessions/{sessionID}/flags", api.FlagHandler(mgr))
		pr.With(rbac.Require("session:save")).
			Post("/sessions/{sessionID}/heartbeat", api.HeartbeatHandler(mgr, events))
		pr.With(rbac.Require("session:submit")).
			Post("/sessions/{sessionID}/submit", api.SubmitHandler(mgr, events))
		pr.With(rbac.RequireOwnerOr("result:view-own", "result:view-all", ownerCheck(mgr))).
			Get("/sessions/{sessionID}/result", api.GetResultHandler(sessions))

		// Practice sessions
		pr.With(rbac.Require("session:save")).
			Post("/practice/{sessionID}/start", api.StartPracticeHandler(mgr))
		pr.With(rbac.Require("session:save")).
			Post("/practice/{sessionID}/answers", api.PracticeAnswerHandler(mgr))
		pr.With(rbac.RequireOwnerOr("session:view-own", "session:view-all", ownerCheck(mgr))).
			Get("/practice/{sessionID}/stats", api.PracticeStatsHandler(mgr))
		pr.With(rbac.Require("session:submit")).
			Post("/practice/{sessionID}/finish", api.PracticeFinishHandler(mgr))

		// Event log, polled by downstream sync consumers.
		pr.With(rbac.Require("events:view")).
			Get("/events", api.ListEventsHandler(events))

		// Users
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
		pr.With(rbac.Require("users:update_role")).
			Patch("/users/{userID}/role", api.AdminUpdateUserRoleHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

func ownerCheck(mgr *session.Manager) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		return mgr.Owns(r.Context(), chi.URLParam(r, "sessionID"), rbac.SubjectFromContext(r.Context()))
	}
}
