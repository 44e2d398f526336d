package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/caption-sync/backend/internal/api/handlers"
	"github.com/caption-sync/backend/internal/api/middleware"
	"github.com/caption-sync/backend/internal/auth"
	"github.com/caption-sync/backend/internal/config"
	"github.com/caption-sync/backend/internal/db"
	"github.com/caption-sync/backend/internal/job"
	"github.com/caption-sync/backend/internal/session"
)

// Services bundles the remote caption collaborators the handlers call.
type Services struct {
	Transcriber handlers.TranscribeService
	Renderer    handlers.RenderService
	Outputs     handlers.OutputFetcher
}

func NewRouter(database *db.Database, jwtService *auth.JWTService, cfg *config.Config,
	sessions *session.Manager, jobQueue *job.JobQueue, services Services) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))

	// Handlers
	authHandler := handlers.NewAuthHandler(database, jwtService)
	sessionHandler := handlers.NewSessionHandler(sessions, services.Transcriber, services.Renderer,
		jobQueue, database, cfg.UploadPath, cfg.MaxUploadBytes)
	videoHandler := handlers.NewVideoHandler(cfg.UploadPath, services.Outputs)
	userHandler := handlers.NewUserHandler(database)
	jobHandler := handlers.NewJobHandler(jobQueue)

	uploadLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.Route("/api", func(r chi.Router) {
		// Auth (public)
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtService))

			// Auth
			r.Get("/auth/me", authHandler.Me)

			// Transcription (file upload, rate limited)
			r.With(uploadLimiter.Handler).Post("/transcribe", sessionHandler.Transcribe)
			r.Get("/transcriptions", sessionHandler.ListTranscriptions)

			// Sessions
			r.Route("/session/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Delete("/", sessionHandler.DeleteSession)
				r.Get("/active", sessionHandler.Active)
				r.Get("/track/{handle}", sessionHandler.Track)

				r.Group(func(r chi.Router) {
					r.Use(middleware.MaxBodySize(1 << 20))
					r.Post("/language", sessionHandler.SwitchLanguage)
					r.Put("/segment/{index}", sessionHandler.EditSegment)
					r.Post("/burnin", sessionHandler.BurnIn)
					r.Post("/transcript/download", sessionHandler.DownloadTranscript)
				})
			})

			// Media
			r.Get("/video/{name}", videoHandler.ServeVideo)
			r.Get("/download/{name}", videoHandler.ServeDownload)

			// Jobs
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Delete("/jobs/{id}", jobHandler.CancelJob)

			// User
			r.Put("/user/history/{name}", userHandler.SavePosition)
			r.Get("/user/history/{name}", userHandler.GetPosition)
		})
	})

	return r
}
