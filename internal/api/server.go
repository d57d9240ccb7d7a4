// Package api exposes the document store over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/serroba/docstore/internal/acl"
	"github.com/serroba/docstore/internal/db"
	"github.com/serroba/docstore/internal/metrics"
	"github.com/serroba/docstore/internal/ws"
	"golang.org/x/time/rate"
)

// Server handles HTTP requests for the document store.
type Server struct {
	router   chi.Router
	db       *db.DB
	hub      *ws.Hub
	checker  *acl.Checker
	metrics  *metrics.Metrics
	log      *slog.Logger
	upgrader websocket.Upgrader
	writes   *rate.Limiter

	requireUser bool
}

// Config holds configuration for creating a server.
type Config struct {
	DB      *db.DB
	Hub     *ws.Hub
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// Checker authorizes generated writes. Imports go through the
	// database's validation hook instead.
	Checker *acl.Checker
	// RequireUser rejects requests without an X-User-Id header.
	RequireUser bool
	// WriteRate caps write requests per second; 0 means unlimited.
	WriteRate float64
	// WriteBurst is the number of writes allowed above WriteRate at once.
	WriteBurst int
}

// NewServer creates a new API server. A nil Hub disables the websocket feed.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		db:          cfg.DB,
		hub:         cfg.Hub,
		checker:     cfg.Checker,
		metrics:     cfg.Metrics,
		log:         logger,
		requireUser: cfg.RequireUser,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
	if cfg.WriteRate > 0 {
		s.writes = rate.NewLimiter(rate.Limit(cfg.WriteRate), max(cfg.WriteBurst, 1))
	}

	s.setupRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.log, s.metrics))

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(UserMiddleware(s.requireUser))

		r.Get("/", s.handleInfo)

		r.Get("/_all_docs", s.handleAllDocs)
		r.Post("/_all_docs", s.handleAllDocs)
		r.Get("/_changes", s.handleChanges)

		if s.hub != nil {
			r.Get("/_changes/ws", s.handleChangesWebSocket)
		}

		r.Get("/_design/{name}", s.handleGetDocument)
		r.Get("/{docID}", s.handleGetDocument)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(s.writes))

			r.Post("/_bulk_docs", s.handleBulkDocs)
			r.Put("/_design/{name}", s.handlePutDocument)
			r.Delete("/_design/{name}", s.handleDeleteDocument)
			r.Put("/{docID}", s.handlePutDocument)
			r.Delete("/{docID}", s.handleDeleteDocument)
		})
	})

	s.router = r
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.db.Info(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, info)
}
