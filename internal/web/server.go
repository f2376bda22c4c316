// Package web serves the archive engine over HTTP: a JSON API, a
// server-sent event stream and a WebSocket carrying live state snapshots,
// and optionally the archive documents themselves under /data/.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/asheshgoplani/archive-deck/internal/archive"
	"github.com/asheshgoplani/archive-deck/internal/logging"
)

var webLog = logging.ForComponent(logging.CompWeb)

// Engine is the part of *archive.Engine the server drives.
type Engine interface {
	Snapshot() archive.Snapshot
	Subscribe() (<-chan struct{}, func())
	Navigate(ctx context.Context, action archive.Action) (string, error)
	SelectDate(ctx context.Context, date string) error
	OpenResult(ctx context.Context, date string) error
	SetQuery(q string)
	SearchNow()
	Search(ctx context.Context, q string) ([]archive.Result, error)
	DismissNotice()
}

// History is the back/forward side of the navigation context.
type History interface {
	Back() bool
	Forward() bool
	Query() string
}

// Config defines runtime options for the web server.
type Config struct {
	ListenAddr string
	Token      string
	// DataDir, when set, is served under /data/ as an archive origin.
	DataDir string
	Engine  Engine
	History History
}

// Server wraps an HTTP server for archive-deck web mode.
type Server struct {
	cfg        Config
	httpServer *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer creates a new web server with routes and middleware. Engine
// may be nil when only serving data.
func NewServer(cfg Config) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8421"
	}

	s := &Server{cfg: cfg}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.StripPrefix("/static/", s.staticFileServer()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := map[string]any{
			"ok":     true,
			"engine": cfg.Engine != nil,
			"data":   cfg.DataDir != "",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	if cfg.DataDir != "" {
		mux.Handle("/data/", http.StripPrefix("/data/", dataFileServer(cfg.DataDir)))
	}
	if cfg.Engine != nil {
		mux.HandleFunc("/api/state", s.handleState)
		mux.HandleFunc("/api/navigate", s.handleNavigate)
		mux.HandleFunc("/api/select", s.handleSelect)
		mux.HandleFunc("/api/open", s.handleOpen)
		mux.HandleFunc("/api/query", s.handleQuery)
		mux.HandleFunc("/api/search", s.handleSearch)
		mux.HandleFunc("/api/notice/dismiss", s.handleDismissNotice)
		mux.HandleFunc("/api/history/", s.handleHistory)
		mux.HandleFunc("/events", s.handleEvents)
		mux.HandleFunc("/ws", s.handleWS)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           withRecover(withRequestLog(mux)),
		BaseContext:       func(_ net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          logging.NewStdLogger(logging.CompHTTP),
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the configured HTTP handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until shutdown or error.
// Returns nil on graceful shutdown.
func (s *Server) Start() error {
	webLog.Info("server_listening", slog.String("addr", s.cfg.ListenAddr))
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelBase != nil {
		// Signal long-lived handlers (SSE/WS) to stop promptly.
		s.cancelBase()
	}

	err := s.httpServer.Shutdown(ctx)
	if err == nil {
		return nil
	}

	// Long-lived connections may still block graceful shutdown. Force close
	// as a fallback so Ctrl+C exits promptly.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("graceful shutdown timed out and force close failed: %w", closeErr)
		}
		return nil
	}
	return err
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				webLog.Error("panic",
					slog.String("recover", fmt.Sprintf("%v", rec)),
					slog.String("path", r.URL.Path))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRequestLog aggregates request counts per path prefix.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Aggregate(logging.CompHTTP, "request",
			slog.String("method", r.Method),
			slog.String("route", routeOf(r.URL.Path)))
		next.ServeHTTP(w, r)
	})
}

func routeOf(path string) string {
	for _, prefix := range []string{"/data/", "/static/", "/api/history/"} {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return prefix
		}
	}
	return path
}

func (s *Server) String() string {
	return fmt.Sprintf("web-server(addr=%s, data=%q, auth=%t)", s.cfg.ListenAddr, s.cfg.DataDir, s.cfg.Token != "")
}
