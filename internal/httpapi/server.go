package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/service"
)

type Dependencies struct {
	Logger    *zap.Logger
	Addr      string
	Access    *service.AccessService
	Reports   *service.ReportService
	Directory *service.DirectoryService

	// Now defaults to time.Now; it anchors the weekly window and defaults
	// for month queries.
	Now func() time.Time
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     chi.Router
	access     *service.AccessService
	reports    *service.ReportService
	directory  *service.DirectoryService
	now        func() time.Time
}

func NewServer(d Dependencies) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}

	r := chi.NewRouter()
	s := &Server{
		logger:    d.Logger,
		router:    r,
		access:    d.Access,
		reports:   d.Reports,
		directory: d.Directory,
		now:       d.Now,
	}

	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(d.Logger))

	r.Get("/healthz", s.handleHealthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/card_events", s.handleCardEvent)

		r.Get("/events/recent", s.handleRecentEvents)
		r.Delete("/events", s.handleClearAllEvents)

		r.Get("/rankings/weekly", s.handleWeeklyRanking)
		r.Get("/rankings/monthly", s.handleMonthlyRanking)
		r.Get("/rankings/all", s.handleAllTimeRanking)
		r.Get("/calendar", s.handleCalendar)

		r.Get("/users", s.handleListUsers)
		r.Post("/users", s.handleCreateUser)
		r.Delete("/users/{userID}", s.handleDeleteUser)
		r.Delete("/users/{userID}/events", s.handleClearUserEvents)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	return s.httpServer.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
