package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clearhealth/clearhealth-ai/internal/http/handlers"
	httpmiddleware "github.com/clearhealth/clearhealth-ai/internal/http/middleware"
	"github.com/clearhealth/clearhealth-ai/internal/webchat"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Sessions           *handlers.SessionHandler
	Stats              *handlers.StatsHandler
	WebChat            *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Per-IP request budget for the session API; zero disables limiting.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (health, metrics, operational snapshot)
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Stats != nil {
			public.Get("/stats", cfg.Stats.GetStats)
		}
	})

	// Session API
	r.Route("/sessions", func(sessions chi.Router) {
		if cfg.RateLimitPerSec > 0 {
			sessions.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
		}

		sessions.Post("/", cfg.Sessions.Create)
		sessions.Route("/{sessionID}", func(s chi.Router) {
			s.Get("/", cfg.Sessions.Get)
			s.Post("/mode", cfg.Sessions.SelectMode)
			s.Post("/back", cfg.Sessions.Back)
			s.Post("/file", cfg.Sessions.SelectFile)
			s.Post("/sample", cfg.Sessions.LoadSample)
			s.Post("/reset", cfg.Sessions.Reset)
			s.Get("/result", cfg.Sessions.Result)

			s.Post("/audio/play", cfg.Sessions.AudioPlay)
			s.Post("/audio/stop", cfg.Sessions.AudioStop)

			s.Post("/specialists", cfg.Sessions.FindSpecialists)
			s.Delete("/specialists", cfg.Sessions.ClearSpecialists)

			s.Post("/chat/open", cfg.Sessions.OpenChat)
			s.Post("/chat/close", cfg.Sessions.CloseChat)
			s.Get("/chat", cfg.Sessions.ChatLog)
			s.Post("/chat/messages", cfg.Sessions.ChatSend)
		})
	})

	// WebSocket chat transport
	if cfg.WebChat != nil {
		r.Get("/chat/ws", cfg.WebChat.HandleWebSocket)
	}

	return r
}
