package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readyTimeout = 2 * time.Second

// readyCheck is one backend pinged by /readyz.
type readyCheck struct {
	name string
	ping func(context.Context) error
}

// routes holds what the HTTP surface needs. A nil rpc handler is not mounted.
type routes struct {
	log   Logger
	ready []readyCheck
	rpc   http.Handler
}

func registerHTTP(mux *http.ServeMux, rt routes) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		for _, c := range rt.ready {
			if err := c.ping(r.Context()); err != nil {
				rt.log.Info("readyz.not_ready", "backend", c.name, "err", err)
				http.Error(w, c.name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	if rt.rpc != nil {
		mux.Handle("GET /rpc", rt.rpc)
	}
}
