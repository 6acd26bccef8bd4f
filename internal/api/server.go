package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Chatter       Chatter            // Required
	Conversations ConversationReader // Required
	Cache         CacheResetter      // Required
	Pool          *pgxpool.Pool      // Optional: nil degrades /ready to liveness
}

// Server is the JSON/SSE API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chatter == nil {
		return nil, errors.New("chatter is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation reader is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("cache resetter is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		chatter: cfg.Chatter,
		store:   cfg.Conversations,
		cache:   cfg.Cache,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.stream)
	mux.HandleFunc("GET /api/chat/{id}", ch.history)
	mux.HandleFunc("GET /api/chats", ch.list)
	mux.HandleFunc("POST /api/chat/{id}/reset", ch.reset)

	// Middleware stack (outermost first): Recovery → Logging → Routes.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack via a top-level mux.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
