package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/vidforge/vidforge/internal/auth"
	"github.com/vidforge/vidforge/internal/catalog"
	"github.com/vidforge/vidforge/internal/docs"
	"github.com/vidforge/vidforge/internal/httputil"
	"github.com/vidforge/vidforge/internal/intake"
	"github.com/vidforge/vidforge/internal/notify"
	"github.com/vidforge/vidforge/internal/ratelimit"
	"github.com/vidforge/vidforge/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// UploadStorage presigns browser uploads for accepted intake files.
type UploadStorage interface {
	UploadURL(ctx context.Context, key string, contentType string, contentLength int64) (string, error)
}

type Config struct {
	Pinger    Pinger
	Catalog   catalog.Source
	Storage   UploadStorage
	Directory auth.Directory
	JWTSecret string
	TokenTTL  time.Duration
	BaseURL   string
	Processor intake.Processor

	// Notifier hears about sessions that complete or fail. Optional.
	Notifier notify.Notifier

	// ResultPoster is shown on the processed result player.
	ResultPoster string

	Clock      clockwork.Clock
	EnableDocs bool
}

type Server struct {
	router      chi.Router
	pinger      Pinger
	catalog     catalog.Source
	storage     UploadStorage
	authHandler *auth.Handler
	intakes     *intakeRegistry
	clock       clockwork.Clock
	enableDocs  bool
	stop        context.CancelFunc
}

func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.SeedSource{}
	}
	if cfg.Directory == nil {
		cfg.Directory = auth.NewStaticDirectory(nil)
	}
	if cfg.Processor == nil {
		cfg.Processor = &intake.SimulatedProcessor{Clock: cfg.Clock}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(apiSecurityHeaders(cfg.BaseURL))

	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		router:      r,
		pinger:      cfg.Pinger,
		catalog:     cfg.Catalog,
		storage:     cfg.Storage,
		authHandler: auth.NewHandler(cfg.Directory, cfg.JWTSecret, cfg.TokenTTL),
		intakes:     newIntakeRegistry(cfg.Clock, cfg.Processor, cfg.ResultPoster, cfg.Notifier),
		clock:       cfg.Clock,
		enableDocs:  cfg.EnableDocs,
		stop:        stop,
	}
	s.routes(ctx)
	s.intakes.startCleanup(ctx)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work and cancels in-flight intake processing.
func (s *Server) Close() {
	s.stop()
	s.intakes.resetAll()
}

func (s *Server) newLimiter(ctx context.Context, rps float64, burst int) *ratelimit.Limiter {
	l := ratelimit.NewLimiter(s.clock, rps, burst)
	l.StartCleanup(ctx)
	return l
}

func (s *Server) routes(ctx context.Context) {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)
	if s.enableDocs {
		s.router.Mount("/api/docs", docs.Routes())
	}

	authLimiter := s.newLimiter(ctx, 0.5, 5)
	s.router.With(authLimiter.Middleware).Post("/api/auth/login", s.authHandler.Login)

	videoLimiter := s.newLimiter(ctx, 5, 20)
	s.router.Route("/api/videos", func(r chi.Router) {
		r.Use(videoLimiter.Middleware)
		r.Use(s.authHandler.Middleware)
		r.Get("/", s.handleListVideos)
		r.Get("/{id}", s.handleGetVideo)
		r.Get("/{id}/download", s.handleDownloadVideo)
	})

	intakeLimiter := s.newLimiter(ctx, 2, 10)
	s.router.Route("/api/intake", func(r chi.Router) {
		r.Use(intakeLimiter.Middleware)
		r.With(s.authHandler.OptionalMiddleware).Post("/", s.handleSubmitIntake)
		r.Group(func(r chi.Router) {
			r.Use(s.authHandler.Middleware)
			r.Get("/", s.handleGetIntake)
			r.Post("/reset", s.handleResetIntake)
			r.Get("/player", s.handleIntakePlayer)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.Limits())
}
