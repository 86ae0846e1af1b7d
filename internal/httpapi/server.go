package httpapi

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 16

// Options configures [New].
type Options struct {
	// Logger receives access and error logs. Defaults to zerolog.Nop().
	Logger *zerolog.Logger
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
	// PublicPathPrefixes overrides the engine's gate allow-list.
	PublicPathPrefixes []string
}

// Server routes HTTP requests to an engine.
type Server struct {
	engine  *goSession.Engine
	logger  zerolog.Logger
	metrics http.Handler
	public  []string
}

// New returns a Server for engine.
func New(engine *goSession.Engine, opts Options) *Server {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Server{
		engine:  engine,
		logger:  logger.With().Str("component", "httpapi").Logger(),
		metrics: opts.Metrics,
		public:  opts.PublicPathPrefixes,
	}
}

// Handler returns the full route tree. Every route outside the public
// prefixes requires a live session.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/jwt/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/jwt/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/auth/jwt/logout", s.handleLogout)
	mux.HandleFunc("POST /api/auth/jwt/revoke", s.handleRevoke)
	mux.HandleFunc("POST /api/auth/jwt/password-reset/request", s.handleResetRequest)
	mux.HandleFunc("POST /api/auth/jwt/password-reset/confirm", s.handleResetConfirm)

	mux.HandleFunc("GET /api/me", s.handleMe)

	mux.HandleFunc("GET /healthz/liveness", s.handleLiveness)
	mux.HandleFunc("GET /healthz/readiness", s.handleReadiness)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	gated := middleware.Gate(s.engine, s.public...)(mux)
	return s.requestContext(gated)
}
