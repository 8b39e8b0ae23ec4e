// Package gateway implements the read-through caching core: resolving a
// Nix store-path key against configured mirrors and the object store,
// falling back to a race across upstream origins, and warming the object
// store from whichever origin answered by teeing the response body.
package gateway

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/nixgate/internal/metrics"
	"github.com/prn-tf/nixgate/internal/rescache"
	"github.com/prn-tf/nixgate/internal/sigv4"
)

// Gateway holds everything needed to resolve and fetch store-path keys.
type Gateway struct {
	client *http.Client

	mirrors []*url.URL
	origins []*url.URL

	// objectStoreEndpoint is the virtual-hosted-style bucket endpoint,
	// e.g. https://my-bucket.s3.us-east-1.amazonaws.com, used both as the
	// first-submitted probe of the mirror race (HEAD) and as the
	// upload/delete target.
	objectStoreEndpoint *url.URL
	signer              *sigv4.Signer

	cache rescache.Cache

	mirrorDeadline time.Duration
	originDeadline time.Duration
	maxRedirects   int
	presignExpiry  time.Duration

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// Config bundles the construction parameters for New.
type Config struct {
	Client *http.Client

	Mirrors             []*url.URL
	Origins             []*url.URL
	ObjectStoreEndpoint *url.URL
	Signer              *sigv4.Signer

	Cache rescache.Cache

	MirrorDeadline time.Duration
	OriginDeadline time.Duration
	MaxRedirects   int
	PresignExpiry  time.Duration

	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// New builds a Gateway. The caller's http.Client should follow no
// redirects (redirects are handled explicitly by the origin resolver so it
// can cap the hop count and learn the final URL it resolved to).
func New(cfg Config) *Gateway {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Gateway{
		client:              client,
		mirrors:             cfg.Mirrors,
		origins:             cfg.Origins,
		objectStoreEndpoint: cfg.ObjectStoreEndpoint,
		signer:              cfg.Signer,
		cache:               cfg.Cache,
		mirrorDeadline:      cfg.MirrorDeadline,
		originDeadline:      cfg.OriginDeadline,
		maxRedirects:        cfg.MaxRedirects,
		presignExpiry:       cfg.PresignExpiry,
		metrics:             cfg.Metrics,
		log:                 cfg.Logger.With().Str("component", "gateway").Logger(),
	}
}

// observeRace records a race's duration and outcome if metrics are wired.
func (g *Gateway) observeRace(tier string, started time.Time, found bool) {
	if g.metrics == nil {
		return
	}
	g.metrics.RaceDuration.WithLabelValues(tier).Observe(time.Since(started).Seconds())
	outcome := "miss"
	if found {
		outcome = "hit"
	}
	g.metrics.ProbeOutcomes.WithLabelValues(tier, outcome).Inc()
}

// observeCache records a cache lookup outcome if metrics are wired.
func (g *Gateway) observeCache(kind string) {
	if g.metrics != nil {
		g.metrics.CacheLookups.WithLabelValues(kind).Inc()
	}
}

// ObjectStoreURL builds the virtual-hosted-style bucket endpoint from an
// S3-compatible endpoint and bucket name, per the spec's bucket addressing
// rule: "{bucket}.{host}".
func ObjectStoreURL(endpoint *url.URL, bucket string) *url.URL {
	u := *endpoint
	u.Host = bucket + "." + endpoint.Host
	return &u
}

// joinKey joins a mirror/origin/object-store base URL with a request key,
// trimming the leading slash the HTTP layer hands us and any trailing
// slash on the base so the joined path has exactly one slash between them.
func joinKey(base *url.URL, key string) *url.URL {
	u := *base
	key = strings.TrimPrefix(key, "/")
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + key
	return &u
}

func is2xx(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

func is3xx(statusCode int) bool {
	return statusCode >= 300 && statusCode < 400
}
