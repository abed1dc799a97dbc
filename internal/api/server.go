// Package api is the HTTP surface of the engine: health and readiness, the
// status query surface, operation submission, events and live streaming.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/config"
	"github.com/AaronLay10/SentientScenes/internal/events"
	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
	"github.com/AaronLay10/SentientScenes/internal/queue"
	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// Options configures a Server.
type Options struct {
	Engine      *orchestrator.Engine
	Catalog     *scene.Catalog
	Journal     *events.Journal
	Credentials config.Credentials
	TLS         TLSConfig
	EngineID    string
	Logger      *zap.Logger
}

// Server serves the HTTP API for one engine.
type Server struct {
	engine   *orchestrator.Engine
	catalog  *scene.Catalog
	journal  *events.Journal
	auth     authConfig
	tls      TLSConfig
	engineID string
	log      *zap.Logger

	readiness *Readiness
	started   time.Time
}

// New creates a server. Engine and Journal are required.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		engine:    opts.Engine,
		catalog:   opts.Catalog,
		journal:   opts.Journal,
		auth:      newAuthConfig(opts.Credentials),
		tls:       opts.TLS,
		engineID:  opts.EngineID,
		log:       opts.Logger,
		readiness: NewReadiness(),
		started:   time.Now(),
	}
}

// Readiness returns the dependency checks reported by /ready and /metrics.
func (s *Server) Readiness() *Readiness { return s.readiness }

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/status", s.RequireAnyRole(s.statusHandler))
	mux.HandleFunc("/scenes", s.RequireAnyRole(s.scenesHandler))
	mux.HandleFunc("/events", s.RequireAnyRole(s.eventsHandler))
	mux.HandleFunc("/operations", s.RequireAnyRole(s.operationsHandler))
	mux.HandleFunc("/operations/cancel", s.RequireAnyRole(s.cancelHandler))
	mux.HandleFunc("/ws/events", s.RequireAnyRole(s.wsEventsHandler))
	mux.HandleFunc("/reset", s.RequireAdmin(s.resetHandler))
	return mux
}

// ListenAndServe serves on port until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg, err := s.tls.Load()
	if err != nil {
		return err
	}
	srv.TLSConfig = tlsCfg

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", srv.Addr), zap.Bool("tls", tlsCfg != nil), zap.Bool("auth", s.auth.enabled))
		if tlsCfg != nil {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Engine    string `json:"engine"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   "scened",
		Engine:    s.engineID,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	resp := s.readiness.Evaluate()
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, OperationResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// SceneEntry describes a catalog scene and its current state.
type SceneEntry struct {
	ID            string   `json:"id"`
	Path          string   `json:"path"`
	State         string   `json:"state"`
	InBuild       bool     `json:"in_build"`
	LoadingScreen bool     `json:"loading_screen,omitempty"`
	Collections   []string `json:"collections,omitempty"`
}

// CollectionEntry describes a catalog collection.
type CollectionEntry struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Scenes []string `json:"scenes"`
	Active bool     `json:"active"`
}

type ScenesResponse struct {
	Scenes      []SceneEntry      `json:"scenes"`
	Collections []CollectionEntry `json:"collections"`
}

func (s *Server) scenesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, OperationResponse{Error: "method not allowed"})
		return
	}
	resp := ScenesResponse{Scenes: []SceneEntry{}, Collections: []CollectionEntry{}}
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	active := s.engine.ActiveCollection()
	cols := s.catalog.Collections()
	for _, c := range cols {
		entry := CollectionEntry{ID: c.ID, Name: c.Name, Scenes: []string{}, Active: active != nil && active.ID == c.ID}
		for _, sc := range c.Scenes() {
			entry.Scenes = append(entry.Scenes, sc.ID)
		}
		resp.Collections = append(resp.Collections, entry)
	}

	for _, sc := range s.catalog.Scenes() {
		entry := SceneEntry{
			ID:            sc.ID,
			Path:          sc.Path,
			State:         string(s.engine.SceneState(sc.ID)),
			InBuild:       s.catalog.IsIncludedInBuild(sc),
			LoadingScreen: sc.IsLoadingScreen,
		}
		for _, c := range cols {
			if c.Contains(sc) {
				entry.Collections = append(entry.Collections, c.ID)
			}
		}
		resp.Scenes = append(resp.Scenes, entry)
	}
	sortScenes(resp.Scenes)
	writeJSON(w, http.StatusOK, resp)
}

func sortScenes(entries []SceneEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, OperationResponse{Error: "method not allowed"})
		return
	}
	q := r.URL.Query()
	filter := events.ParseFilter(q.Get("prefix"))
	list := filter.Apply(s.journal.Snapshot())
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, OperationResponse{Error: "limit must be a positive integer"})
			return
		}
		if n < len(list) {
			list = list[len(list)-n:]
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// OperationResponse is returned by the operation endpoints.
type OperationResponse struct {
	OK          bool   `json:"ok"`
	OperationID string `json:"operation_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// CancelRequest is the body of POST /operations/cancel.
type CancelRequest struct {
	ID string `json:"id"`
}

func (s *Server) operationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, OperationResponse{Error: "method not allowed"})
		return
	}
	var cmd orchestrator.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, OperationResponse{Error: "invalid JSON"})
		return
	}
	s.dispatch(w, cmd)
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, OperationResponse{Error: "method not allowed"})
		return
	}
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, OperationResponse{Error: "invalid JSON"})
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, OperationResponse{Error: "id required"})
		return
	}
	s.dispatch(w, orchestrator.Command{Op: orchestrator.CmdCancel, ID: req.ID})
}

// resetHandler cancels all operations and clears tracking state.
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, OperationResponse{Error: "method not allowed"})
		return
	}
	s.engine.Reset()
	writeJSON(w, http.StatusOK, OperationResponse{OK: true})
}

func (s *Server) dispatch(w http.ResponseWriter, cmd orchestrator.Command) {
	cmd.Source = "http"
	op, err := s.engine.Dispatch(cmd)
	if err != nil {
		writeJSON(w, statusFor(err), OperationResponse{Error: err.Error()})
		return
	}
	resp := OperationResponse{OK: true}
	if op != nil {
		resp.OperationID = op.ID()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrUnknownScene),
		errors.Is(err, orchestrator.ErrUnknownCollection),
		errors.Is(err, orchestrator.ErrUnknownOperation):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrPreloadPending),
		errors.Is(err, orchestrator.ErrNoPreload),
		errors.Is(err, queue.ErrCannotQueue):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrUnknownCommand),
		errors.Is(err, orchestrator.ErrInvalidRequest),
		errors.Is(err, orchestrator.ErrNotInBuild),
		errors.Is(err, orchestrator.ErrSceneNotInCollection),
		errors.Is(err, orchestrator.ErrNotLoadingScreen):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
