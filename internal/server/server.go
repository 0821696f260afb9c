package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"storefront/menu/internal/domain"
	"storefront/menu/internal/menu"
	"storefront/menu/internal/render"
	"storefront/menu/internal/repository"
	"storefront/menu/internal/search"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// MenuService is what the HTTP layer needs from the menu service
type MenuService interface {
	Menus(ctx context.Context) *domain.GroupedMap
	Menu(ctx context.Context, parent string, layout menu.Layout) domain.ColumnSet
	Columns(ctx context.Context, layout menu.Layout) []domain.ParentColumns
	RequestRefresh(ctx context.Context, reason string) (string, error)
	LastRefresh(ctx context.Context) (time.Time, error)
	LatestSnapshot(ctx context.Context) (*domain.MenuSnapshot, error)
}

// Suggester serves debounced search suggestions
type Suggester interface {
	Suggest(ctx context.Context, sessionID, query string) ([]domain.Suggestion, error)
}

type Server struct {
	menus     MenuService
	suggester Suggester
	timeout   time.Duration
}

func New(menus MenuService, suggester Suggester, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		menus:     menus,
		suggester: suggester,
		timeout:   timeout,
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status", s.handleStatus)
	r.Get("/suggest", s.handleSuggest)
	r.Post("/refresh", s.handleRefresh)

	r.Route("/menus", func(r chi.Router) {
		r.Get("/", s.handleMenus)
		r.Get("/layout", s.handleLayout)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/{parent}", s.handleMenu)
		r.Get("/{parent}/html", s.handleMenuHTML)
	})

	return r
}

// ListenAndServe runs the HTTP server until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("🚀 Menu API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("🛑 Shutting down menu API...")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleMenus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.menus.Menus(r.Context()))
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	layout, ok := layoutFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.menus.Columns(r.Context(), layout))
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	parent, ok := parentParam(w, r)
	if !ok {
		return
	}
	layout, ok := layoutFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.menus.Menu(r.Context(), parent, layout))
}

func (s *Server) handleMenuHTML(w http.ResponseWriter, r *http.Request) {
	parent, ok := parentParam(w, r)
	if !ok {
		return
	}
	layout, ok := layoutFromQuery(w, r)
	if !ok {
		return
	}

	html, err := render.MegaMenu([]domain.ParentColumns{{
		Parent:  parent,
		Columns: s.menus.Menu(r.Context(), parent, layout),
	}})
	if err != nil {
		log.Errorf("❌ %v", err)
		writeError(w, http.StatusInternalServerError, "failed to render menu")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.menus.LatestSnapshot(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrNoSnapshot) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Errorf("❌ %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := s.menus.RequestRefresh(r.Context(), "api")
	if err != nil {
		log.Errorf("❌ %v", err)
		writeError(w, http.StatusServiceUnavailable, "refresh could not be queued")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message_id": id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	last, err := s.menus.LastRefresh(r.Context())
	if err != nil {
		log.Errorf("❌ %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read refresh state")
		return
	}

	status := map[string]any{"resource": domain.ResourceSubcategories, "last_refresh": nil}
	if !last.IsZero() {
		status["last_refresh"] = last
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	session := r.Header.Get("X-Session-ID")
	if session == "" {
		session = clientHost(r.RemoteAddr)
	}

	suggestions, err := s.suggester.Suggest(r.Context(), session, r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, search.ErrSuperseded) {
			// the client has already moved on to a newer query
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Context().Err() != nil {
			return
		}
		log.Errorf("❌ %v", err)
		writeError(w, http.StatusInternalServerError, "suggestions unavailable")
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// parentParam returns the decoded parent name. chi matches against RawPath
// when the request carries one (an escaped slash), otherwise against the
// already decoded Path.
func parentParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	parent := chi.URLParam(r, "parent")
	var err error
	if r.URL.RawPath != "" {
		parent, err = url.PathUnescape(parent)
	}
	if err != nil || parent == "" {
		writeError(w, http.StatusBadRequest, "invalid parent category")
		return "", false
	}
	return parent, true
}

func layoutFromQuery(w http.ResponseWriter, r *http.Request) (menu.Layout, bool) {
	var layout menu.Layout
	for name, dst := range map[string]*int{"chunk": &layout.ChunkSize, "cols": &layout.MaxCols} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			writeError(w, http.StatusBadRequest, "invalid "+name+" parameter")
			return menu.Layout{}, false
		}
		*dst = n
	}
	return layout, true
}

func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("❌ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).Round(time.Microsecond),
		}).Debug("request handled")
	})
}
