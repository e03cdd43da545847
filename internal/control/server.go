// Package control exposes the dock's host operations over HTTP for
// tooling: status, index triggers, cancellation, search and eject, plus
// prometheus metrics.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/report"
	"github.com/franz/media-dock/internal/service"
	"github.com/franz/media-dock/internal/storage"
)

// Config wires the server to the running dock.
type Config struct {
	Addr         string
	Orchestrator *service.Orchestrator
	Registry     *storage.Registry
	Store        *library.Store
	Events       *report.EventLogger

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the dock's HTTP control plane.
type Server struct {
	cfg    Config
	orch   *service.Orchestrator
	reg    *storage.Registry
	store  *library.Store
	events *report.EventLogger
	logger zerolog.Logger
	srv    *http.Server
}

// NewServer builds a control server. The orchestrator and registry are
// required; the store may be nil, which disables the tracks endpoint.
func NewServer(cfg Config) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		cfg:    cfg,
		orch:   cfg.Orchestrator,
		reg:    cfg.Registry,
		store:  cfg.Store,
		events: cfg.Events,
		logger: log.WithComponent("control"),
	}
}

// Router builds the chi router with the full middleware stack and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestMetrics())
	r.Use(s.requestLogger())

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/storages", s.handleStorages)
	r.Get("/api/tracks", s.handleTracks)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/browse", s.handleBrowse)
	r.Get("/api/events", s.handleEvents)

	r.Post("/api/index", s.handleIndex)
	r.Post("/api/cancel", s.handleCancel)
	r.Post("/api/eject", s.handleEject)
	r.Post("/api/stop", s.handleStop)

	return r
}

// Start runs the server until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.cfg.Addr).Msg("control server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("control server: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("control server shutdown error")
			return err
		}
		s.logger.Info().Msg("control server stopped")
		return nil
	}
}

func (s *Server) requestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			s.logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.orch.Status()

	// Refresh the mirrored gauges while we have the snapshot in hand.
	ServicePriority.Set(float64(s.orch.Machine().Priority()))
	OpenSources.Set(float64(st.OpenSources))
	if s.store != nil {
		if n, err := s.store.CountTracks(""); err == nil {
			TracksCatalogued.Set(float64(n))
		}
	}

	writeJSON(w, http.StatusOK, st)
}

type storageJSON struct {
	StorageID     string    `json:"storage_id"`
	Name          string    `json:"name"`
	Vendor        string    `json:"vendor"`
	RootURI       string    `json:"root_uri"`
	TrackCount    int       `json:"track_count"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
}

func (s *Server) handleStorages(w http.ResponseWriter, _ *http.Request) {
	if s.store == nil {
		writeError(w, errors.New("no library store configured"))
		return
	}
	recs, err := s.store.Storages()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]storageJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, storageJSON{
			StorageID:     rec.StorageID,
			Name:          rec.Name,
			Vendor:        rec.Vendor,
			RootURI:       rec.RootURI,
			TrackCount:    rec.TrackCount,
			LastSeenAt:    rec.LastSeenAt,
			LastIndexedAt: rec.LastIndexedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type trackJSON struct {
	Ref       string `json:"ref"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	Album     string `json:"album,omitempty"`
	Format    string `json:"format,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, errors.New("no library store configured"))
		return
	}
	storageID := r.URL.Query().Get("storage")
	if storageID == "" {
		writeError(w, errors.New("missing storage parameter"))
		return
	}
	limit := queryInt(r, "limit", 200)
	offset := queryInt(r, "offset", 0)

	tracks, err := s.store.TracksForStorage(storageID, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]trackJSON, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, trackJSON{
			Ref:       t.Ref,
			Path:      t.Path,
			Title:     t.Title,
			Artist:    t.Artist,
			Album:     t.Album,
			Format:    t.Format,
			SizeBytes: t.SizeBytes,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type hitJSON struct {
	Ref       string  `json:"ref"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist,omitempty"`
	Album     string  `json:"album,omitempty"`
	Path      string  `json:"path"`
	StorageID string  `json:"storage_id"`
	Score     float64 `json:"score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, errors.New("missing q parameter"))
		return
	}
	limit := queryInt(r, "limit", 20)

	hits, err := s.orch.Search(r.Context(), q, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]hitJSON, 0, len(hits))
	for _, h := range hits {
		out = append(out, hitJSON{
			Ref:       h.Ref,
			Title:     h.Title,
			Artist:    h.Artist,
			Album:     h.Album,
			Path:      h.Path,
			StorageID: h.StorageID,
			Score:     h.Score,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type entryJSON struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Dir     bool      `json:"dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	storageID := r.URL.Query().Get("storage")
	if storageID == "" {
		writeError(w, errors.New("missing storage parameter"))
		return
	}
	dir := r.URL.Query().Get("dir")

	entries, err := s.orch.LoadChildren(r.Context(), storageID, dir)
	if err != nil {
		if errors.Is(err, storage.ErrUnknownStorage) {
			writeNotFound(w)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{
			Path:    e.Path,
			Name:    e.Name,
			Dir:     e.Dir,
			Size:    e.Size,
			ModTime: e.ModTime,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type indexRequest struct {
	StorageIDs []string `json:"storage_ids"`
}

// handleIndex triggers a full library build for the named storages, or all
// attached storages when the body names none. Builds run in the background;
// consecutive builds serialize on the library-creation job slot.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("bad request body: %w", err))
			return
		}
	}
	ids := req.StorageIDs
	if len(ids) == 0 {
		ids = s.reg.StorageIDs()
	}
	if len(ids) == 0 {
		writeError(w, errors.New("no storage attached"))
		return
	}
	for _, id := range ids {
		if _, err := s.reg.LocationForID(id); err != nil {
			writeNotFound(w)
			return
		}
	}

	go func() {
		for _, id := range ids {
			job, err := s.orch.StartLibraryCreation(context.Background(), id)
			if err != nil {
				s.logger.Error().Err(err).Str("storage", id).Msg("library creation failed to start")
				return
			}
			err = job.Join(context.Background())
			IncJob(service.JobLibraryCreation, err)
			if err != nil {
				s.logger.Warn().Err(err).Str("storage", id).Msg("library creation ended with error")
				return
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"storages": ids})
}

// handleEvents serves the event logger's in-memory ring, newest last. The
// ring sees events below the disk log's level floor too.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	events := s.events.Recent()
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	if events == nil {
		events = []report.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	s.orch.CancelAllJobs()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleEject(w http.ResponseWriter, _ *http.Request) {
	if err := s.orch.Eject(); err != nil {
		if errors.Is(err, storage.ErrNoStorage) {
			writeNotFound(w)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ejected"})
}

type stopRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("bad request body: %w", err))
		return
	}
	reason, err := service.ParseStartStopReason(req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	outcome := s.orch.StopService(reason)
	IncStop(reason.String(), outcome.String())
	ServicePriority.Set(float64(s.orch.Machine().Priority()))

	code := http.StatusOK
	switch outcome {
	case service.StopRejected:
		code = http.StatusConflict
	case service.StopDeferred:
		code = http.StatusAccepted
	}
	writeJSON(w, code, map[string]string{"outcome": outcome.String()})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a generic error response
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
