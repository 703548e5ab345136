// Package daemon implements the suggestion engine's daemon: an HTTP service
// listening on a Unix socket that hosts one SessionManager for the life of
// the process and speaks the query/click/close protocol a terminal or shell
// integration drives a session through.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runger/suggestengine/internal/config"
	"github.com/runger/suggestengine/internal/engine"
	"github.com/runger/suggestengine/internal/engine/session"
	"github.com/runger/suggestengine/internal/engine/sessionmanager"
	"github.com/runger/suggestengine/internal/engine/shortcut"
	applog "github.com/runger/suggestengine/internal/obslog"
)

// Version is set at build time.
var Version = "dev"

// Server is the daemon's HTTP-over-Unix-socket host. It owns exactly one
// sessionmanager.Manager for the process lifetime and keeps track of the
// open Cursors each session's queries have produced.
type Server struct {
	repo    *shortcut.Repository
	manager *sessionmanager.Manager

	httpServer *http.Server
	listener   net.Listener
	paths      *config.Paths
	logger     *slog.Logger

	startTime    time.Time
	lastActivity time.Time
	idleTimeout  time.Duration
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	// Backpressure for the session-close reporting pipeline: PreClose
	// fires a SessionStats report on every cursor close, and the queue
	// absorbs bursts of those without blocking the HTTP handler.
	statsQueue     *IngestionQueue
	circuitBreaker *CircuitBreaker

	curMu   sync.Mutex
	cursors map[string]*session.Cursor

	mu             sync.RWMutex
	commandsLogged int64

	// ReloadFn is called on SIGHUP to reload configuration.
	ReloadFn ReloadFunc
}

// ServerConfig contains configuration options for the daemon server.
type ServerConfig struct {
	// Repo is the shortcut repository backing every session (required).
	Repo *shortcut.Repository

	// Registry resolves the sources enabled for new sessions (required).
	Registry sessionmanager.SourceRegistry

	// EngineConfig supplies the per-session Engine tunables (promoted
	// count, timeouts, debounce windows); Sources and WebSource are
	// overwritten per session from Registry and the current ranking.
	EngineConfig session.Config

	// Paths is the path configuration (optional, uses defaults if nil).
	Paths *config.Paths

	// Logger is the structured logger (optional, uses default if nil).
	Logger *slog.Logger

	// IdleTimeout is the duration after which the daemon exits if idle.
	// Default: 20 minutes.
	IdleTimeout time.Duration

	// ReloadFn is called on SIGHUP to reload configuration.
	ReloadFn ReloadFunc
}

// NewServer creates a new daemon server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	paths := cfg.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	idleTimeout := cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 20 * time.Minute
	}

	statsQueue := NewIngestionQueue(0, logger)
	cb := NewCircuitBreaker(&CircuitBreakerConfig{Logger: logger})

	engCfg := cfg.EngineConfig
	if engCfg.Logger == nil {
		engCfg.Logger = logger
	}
	manager := sessionmanager.New(cfg.Repo, cfg.Registry, engCfg)

	now := time.Now()
	return &Server{
		repo:           cfg.Repo,
		manager:        manager,
		paths:          paths,
		logger:         logger,
		startTime:      now,
		lastActivity:   now,
		idleTimeout:    idleTimeout,
		shutdownChan:   make(chan struct{}),
		statsQueue:     statsQueue,
		circuitBreaker: cb,
		cursors:        make(map[string]*session.Cursor),
		ReloadFn:       cfg.ReloadFn,
	}, nil
}

// Start starts the HTTP server listening on the Unix socket.
func (s *Server) Start(ctx context.Context) error {
	if err := s.paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	socketPath := s.paths.SocketFile()
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove stale socket", "path", socketPath, "error", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.httpServer = &http.Server{Handler: s.routes()}

	if err := s.writePIDFile(); err != nil {
		listener.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	applog.LogStartup(s.logger, applog.StartupInfo{
		Version:    Version,
		SocketPath: socketPath,
		PID:        os.Getpid(),
	})

	s.wg.Add(1)
	go s.watchIdle(ctx)

	s.wg.Add(1)
	go s.drainStatsQueue(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		} else {
			errChan <- nil
		}
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
		<-errChan
		return nil
	case err := <-errChan:
		return err
	}
}

// routes builds the daemon's HTTP handler.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/click", s.handleClick)
	mux.HandleFunc("/v1/close", s.handleClose)
	mux.HandleFunc("/v1/session/close", s.handleSessionClose)
	mux.HandleFunc("/debug/sessions", s.handleDebugSessions)
	mux.HandleFunc("/debug/ranking", s.handleDebugRanking)
	return mux
}

// queryRequest is the body of POST /v1/query: one keystroke in an
// incrementally-refined session.
type queryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type queryResponse struct {
	CursorID    string              `json:"cursor_id"`
	Suggestions []engine.Suggestion `json:"suggestions"`
	IsPending   bool                `json:"is_pending"`
	MoreIndex   int                 `json:"more_index,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.touchActivity()

	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if !s.circuitBreaker.Allow() {
		writeError(w, http.StatusTooManyRequests, "query burst in progress, sampled")
		return
	}

	eng, ok := s.manager.Session(req.SessionID)
	if !ok {
		var err error
		eng, err = s.manager.StartSession(r.Context(), req.SessionID, s.onSessionClose)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	cur := eng.Query(r.Context(), req.Query, time.Now().UnixMilli())
	cursorID := uuid.NewString()

	s.curMu.Lock()
	s.cursors[cursorID] = cur
	s.curMu.Unlock()

	s.incrementCommandsLogged()

	snap := cur.Snapshot()
	writeJSON(w, http.StatusOK, queryResponse{
		CursorID:    cursorID,
		Suggestions: snap.Suggestions,
		IsPending:   snap.IsPending,
		MoreIndex:   snap.MoreIndex,
	})
}

type clickRequest struct {
	CursorID string `json:"cursor_id"`
	Position int    `json:"position"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	s.touchActivity()

	var req clickRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cur, ok := s.lookupCursor(req.CursorID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown cursor_id")
		return
	}

	result := cur.Click(req.Position)
	writeJSON(w, http.StatusOK, result)
}

type closeRequest struct {
	CursorID      string `json:"cursor_id"`
	MaxDisplayPos int    `json:"max_display_pos"`
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.touchActivity()

	var req closeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cur, ok := s.lookupCursor(req.CursorID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown cursor_id")
		return
	}

	cur.PreClose(req.MaxDisplayPos)

	s.curMu.Lock()
	delete(s.cursors, req.CursorID)
	s.curMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

type sessionCloseRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	s.touchActivity()

	var req sessionCloseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.manager.CloseSession(req.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDebugSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"active_sessions": s.manager.ActiveSessionCount()})
}

func (s *Server) handleDebugRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.repo.GetSourceRanking(r.Context(), sessionmanager.DefaultPriorClicks, sessionmanager.DefaultPriorImpressions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ranking": ranking})
}

func (s *Server) lookupCursor(cursorID string) (*session.Cursor, bool) {
	s.curMu.Lock()
	defer s.curMu.Unlock()
	cur, ok := s.cursors[cursorID]
	return cur, ok
}

// onSessionClose is handed to every session's Engine as its close callback.
// The engine has already started the repository write; this just queues
// the stats for whatever downstream reporting the daemon wants to do
// without blocking the cursor-close request.
func (s *Server) onSessionClose(stats engine.SessionStats) {
	if s.statsQueue.Enqueue(Event{Type: "session_stats", Payload: stats, Timestamp: time.Now()}) {
		applog.LogEventDropped(s.logger, "session stats queue full")
	}
}

// drainStatsQueue periodically flushes queued session-close events. For now
// this just logs them; it's the hook a future analytics sink attaches to.
func (s *Server) drainStatsQueue(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			for _, ev := range s.statsQueue.DequeueN(64) {
				stats, ok := ev.Payload.(engine.SessionStats)
				if !ok {
					continue
				}
				s.logger.Debug("session stats flushed",
					"query", stats.Query,
					"clicked", stats.Clicked != nil,
					"impressions", len(stats.SourceImpressions),
				)
			}
		}
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		applog.LogShutdown(s.logger, "requested")

		close(s.shutdownChan)

		if s.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.httpServer.Shutdown(shutdownCtx)
		}

		s.wg.Wait()

		if s.listener != nil {
			s.listener.Close()
		}

		s.cleanup()

		s.logger.Info("daemon stopped")
	})
}

// cleanup removes the socket and PID file.
func (s *Server) cleanup() {
	socketPath := s.paths.SocketFile()
	pidPath := s.paths.PIDFile()

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove socket", "path", socketPath, "error", err)
	}
	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove PID file", "path", pidPath, "error", err)
	}
}

// writePIDFile writes the current process ID to the PID file.
func (s *Server) writePIDFile() error {
	pidPath := s.paths.PIDFile()
	pid := os.Getpid()
	return os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", pid)), 0600)
}

// touchActivity updates the last activity timestamp.
func (s *Server) touchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// getLastActivity returns the last activity timestamp.
func (s *Server) getLastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// incrementCommandsLogged safely increments the commands logged counter.
func (s *Server) incrementCommandsLogged() {
	s.mu.Lock()
	s.commandsLogged++
	s.mu.Unlock()
}

// getCommandsLogged returns the number of queries served.
func (s *Server) getCommandsLogged() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commandsLogged
}

// watchIdle monitors for idle timeout and initiates shutdown once every
// session is closed and no activity has arrived within idleTimeout.
func (s *Server) watchIdle(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		case <-ticker.C:
			if s.manager.ActiveSessionCount() == 0 {
				since := time.Since(s.getLastActivity())
				if since > s.idleTimeout {
					s.logger.Info("idle timeout reached",
						"idle_duration", since,
						"timeout", s.idleTimeout,
					)
					go s.Shutdown()
					return
				}
			}
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
