package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/nixgate/internal/gateway"
	"github.com/prn-tf/nixgate/internal/metrics"
	"github.com/prn-tf/nixgate/internal/rescache"
	"github.com/prn-tf/nixgate/internal/sigv4"
)

func newTestRouter(t *testing.T, mirror, origin *httptest.Server) http.Handler {
	t.Helper()
	var mirrors, origins []*url.URL
	if mirror != nil {
		u, err := url.Parse(mirror.URL)
		require.NoError(t, err)
		mirrors = []*url.URL{u}
	}
	if origin != nil {
		u, err := url.Parse(origin.URL)
		require.NoError(t, err)
		origins = []*url.URL{u}
	}

	reg := prometheus.NewRegistry()
	gw := gateway.New(gateway.Config{
		Mirrors:        mirrors,
		Origins:        origins,
		Signer:         sigv4.New("AKIATEST", "secret", "us-east-1", sigv4.ServiceS3),
		Cache:          rescache.NewMemoryCache(1024, time.Minute),
		MirrorDeadline: 2 * time.Second,
		OriginDeadline: 2 * time.Second,
		MaxRedirects:   10,
		PresignExpiry:  5 * time.Minute,
		Metrics:        metrics.New(reg),
		Logger:         zerolog.Nop(),
	})

	return NewRouter(Config{
		Gateway:        gw,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
		Logger:         zerolog.Nop(),
	})
}

func TestNixCacheInfo(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/nix-cache-info", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "StoreDir: /nix/store")
}

func TestHeadNotFound(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer mirror.Close()

	r := newTestRouter(t, mirror, nil)
	req := httptest.NewRequest(http.MethodHead, "/nix/store/abc.narinfo", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeadFound(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mirror.Close()

	r := newTestRouter(t, mirror, nil)
	req := httptest.NewRequest(http.MethodHead, "/nix/store/abc.narinfo", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	require.Contains(t, rec.Header().Get("Location"), mirror.URL)
}

func TestHeadFallsThroughToOrigin(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer mirror.Close()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer origin.Close()

	r := newTestRouter(t, mirror, origin)
	req := httptest.NewRequest(http.MethodHead, "/nix/store/abc.narinfo", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), origin.URL)
}

func TestGetRedirectsToMirror(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mirror.Close()

	r := newTestRouter(t, mirror, nil)
	req := httptest.NewRequest(http.MethodGet, "/nix/store/abc.narinfo", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), mirror.URL)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.NotEmpty(t, body)
}
