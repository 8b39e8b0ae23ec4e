// Package httpapi exposes the gateway over HTTP: the Nix binary cache
// protocol's narinfo/nar lookup endpoints, plus an upload/delete surface
// used to seed and evict the object store directly.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/prn-tf/nixgate/internal/gateway"
	"github.com/prn-tf/nixgate/internal/metrics"
)

// nixCacheInfo is the static body Nix clients fetch to learn this cache's
// store directory and priority before issuing any narinfo lookups.
const nixCacheInfo = "StoreDir: /nix/store\nWantMassQuery: 1\nPriority: 30\n"

// Config bundles the dependencies the router needs.
type Config struct {
	Gateway        *gateway.Gateway
	Registry       *prometheus.Registry
	MetricsEnabled bool
	MetricsPath    string
	Logger         zerolog.Logger
}

// NewRouter builds the full HTTP handler tree for the gateway.
func NewRouter(cfg Config) http.Handler {
	h := &handler{gw: cfg.Gateway, log: cfg.Logger.With().Str("component", "httpapi").Logger()}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/nix-cache-info", h.handleCacheInfo)

	if cfg.MetricsEnabled && cfg.Registry != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Get(path, metrics.Handler(cfg.Registry).ServeHTTP)
	}

	r.Head("/*", h.handleHead)
	r.Get("/*", h.handleGet)
	r.Put("/*", h.handlePut)
	r.Delete("/*", h.handleDelete)

	return r
}

type handler struct {
	gw  *gateway.Gateway
	log zerolog.Logger
}

func (h *handler) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/x-nix-cache-info")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(nixCacheInfo))
}

// key extracts the store-path key from the wildcard route, restoring the
// leading slash callers like Gateway.ResolveMirror expect.
func key(r *http.Request) string {
	return "/" + chi.URLParam(r, "*")
}
