package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/nixgate/internal/rescache"
	"github.com/prn-tf/nixgate/internal/sigv4"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func newTestGateway(t *testing.T, mirrors, origins []*url.URL, objectStore *httptest.Server) *Gateway {
	t.Helper()
	var osURL *url.URL
	if objectStore != nil {
		osURL = mustURL(t, objectStore.URL)
	}
	return New(Config{
		Mirrors:             mirrors,
		Origins:             origins,
		ObjectStoreEndpoint: osURL,
		Signer:              sigv4.New("AKIATEST", "secret", "us-east-1", sigv4.ServiceS3),
		Cache:               rescache.NewMemoryCache(1024, time.Minute),
		MirrorDeadline:      2 * time.Second,
		OriginDeadline:      2 * time.Second,
		MaxRedirects:        10,
		PresignExpiry:       5 * time.Minute,
		Logger:              zerolog.Nop(),
	})
}

func TestResolveMirrorHitsObjectStore(t *testing.T) {
	objectStore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer objectStore.Close()

	g := newTestGateway(t, nil, nil, objectStore)

	url, found, err := g.ResolveMirror(context.Background(), "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.True(t, found)
	require.NotEmpty(t, url)

	state, ok, err := g.cache.Get(context.Background(), "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rescache.KindMirror, state.Kind)
}

func TestResolveMirrorPrefersPlainMirrorOverMiss(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer mirror.Close()

	g := newTestGateway(t, []*url.URL{mustURL(t, mirror.URL)}, nil, nil)

	url, found, err := g.ResolveMirror(context.Background(), "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, url, mirror.URL)
}

func TestResolveMirrorAllAbsentCachesNegative(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer mirror.Close()
	objectStore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer objectStore.Close()

	g := newTestGateway(t, []*url.URL{mustURL(t, mirror.URL)}, nil, objectStore)

	_, found, err := g.ResolveMirror(context.Background(), "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.False(t, found)

	state, ok, err := g.cache.Get(context.Background(), "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rescache.KindAbsentFromMirror, state.Kind)
}

func TestExistsFallsThroughToOrigin(t *testing.T) {
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer mirror.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer origin.Close()

	g := newTestGateway(t, []*url.URL{mustURL(t, mirror.URL)}, []*url.URL{mustURL(t, origin.URL)}, nil)

	url, found, err := g.Exists(context.Background(), "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, url, origin.URL)
}

func TestResolveOriginFollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "5")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	defer final.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/nix/store/abc.narinfo", http.StatusFound)
	}))
	defer origin.Close()

	g := newTestGateway(t, nil, []*url.URL{mustURL(t, origin.URL)}, nil)

	_, resp, found, err := g.ResolveOrigin(context.Background(), "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.True(t, found)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestResolveOriginTooManyRedirectsFails(t *testing.T) {
	var handler http.HandlerFunc
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	handler = func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+r.URL.Path, http.StatusFound)
	}
	mux.HandleFunc("/", handler)

	g := newTestGateway(t, nil, []*url.URL{mustURL(t, server.URL)}, nil)
	g.maxRedirects = 2

	_, _, found, err := g.ResolveOrigin(context.Background(), "/loop")
	require.NoError(t, err)
	require.False(t, found)
}

func TestFetchTeesOriginAndUploads(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("payload-bytes"))
	}))
	defer origin.Close()

	var uploaded []byte
	var mu sync.Mutex
	uploadDone := make(chan struct{})
	objectStore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodPut {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			uploaded = b
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
			close(uploadDone)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer objectStore.Close()

	g := newTestGateway(t, nil, []*url.URL{mustURL(t, origin.URL)}, objectStore)

	result, found, err := g.Fetch(context.Background(), "/nix/store/abc.narinfo")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, result.Redirect)

	body, err := io.ReadAll(result.Body)
	require.NoError(t, err)
	require.Equal(t, "payload-bytes", string(body))

	select {
	case <-uploadDone:
	case <-time.After(2 * time.Second):
		t.Fatal("upload did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "payload-bytes", string(uploaded))
}

func TestFetchNotFoundEverywhere(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer origin.Close()

	g := newTestGateway(t, nil, []*url.URL{mustURL(t, origin.URL)}, nil)

	result, found, err := g.Fetch(context.Background(), "/nix/store/missing.narinfo")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, result)
}
