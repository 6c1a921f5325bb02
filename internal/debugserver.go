package internal

import (
	"expvar"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

// StartDebugServer exposes pprof and expvar on a side listener, meant for a
// localhost address. No-op when addr is empty. The listener lives for the
// whole process; there is nothing to shut down gracefully about profiling.
func StartDebugServer(log *slog.Logger, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("debug server listening", "addr", addr)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("debug server stopped", "error", err)
		}
	}()
}
