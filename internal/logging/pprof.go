package logging

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

const pprofAddr = "localhost:6060"

// pprofMux registers the profiling endpoints on their own mux so nothing
// leaks onto http.DefaultServeMux.
func pprofMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// startPprof serves profiles on localhost; [logs] pprof_enabled turns it on.
func startPprof() {
	srv := &http.Server{
		Addr:              pprofAddr,
		Handler:           pprofMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		Logger().Info("pprof_listening", slog.String("addr", pprofAddr))
		if err := srv.ListenAndServe(); err != nil {
			Logger().Warn("pprof_stopped", slog.String("error", err.Error()))
		}
	}()
}
