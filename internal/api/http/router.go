// Package http exposes the assessment, XP and time-tracking operations over
// a chi router.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	auth "github.com/bjornpagen/nice-sub010/internal/auth/middleware"
	"github.com/bjornpagen/nice-sub010/internal/qti"
)

type Deps struct {
	Log  zerolog.Logger
	Auth *auth.AuthService

	AdminUser     string
	AdminPassHash string
	CORSOrigins   []string

	Tests    TestSource
	Items    qti.ItemFetcher
	Preparer Preparer
	Awarder  Awarder
	Events   EventAppender
	Time     *TimeHandlers
	Failed   FailedSyncLister
	Ready    map[string]Pinger
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(d.Log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.Post("/api/assessments/prepare", PrepareAssessmentHandler(d.Tests, d.Items, d.Preparer))
		pr.Post("/api/assessments/xp", AwardXPHandler(d.Awarder, d.Events))
		if d.Time != nil {
			pr.Route("/api/time/{assessmentId}/{attempt}", d.Time.Mount)
		}
	})

	r.Group(func(ar chi.Router) {
		ar.Use(auth.AdminBasicAuth(d.AdminUser, d.AdminPassHash))
		ar.Get("/admin/sync/failed", ListFailedSyncsHandler(d.Failed))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", ReadyHandler(d.Ready))
	return r
}
