package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/prn-tf/nixgate/internal/rescache"
)

// originResult pairs the resolved URL with the live, unread response body
// from whichever origin (or re-probed cached URL) answered. The caller
// owns resp.Body and must close it.
type originResult struct {
	url  string
	resp *http.Response
}

// ResolveOrigin answers "fetch this key from an origin", consulting the
// cache first. A cached Mirror/Origin URL is re-fetched directly (it is
// very likely still good, and skips racing every origin again); a cached
// AbsentFromOrigin short-circuits to not-found. Anything else falls
// through to a full race across every configured origin.
func (g *Gateway) ResolveOrigin(ctx context.Context, key string) (string, *http.Response, bool, error) {
	state, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		return "", nil, false, err
	}
	if ok {
		switch state.Kind {
		case rescache.KindMirror, rescache.KindOrigin:
			if res, err := g.fetchOnce(ctx, state.URL); err == nil {
				return res.url, res.resp, true, nil
			}
		case rescache.KindAbsentFromOrigin:
			return "", nil, false, nil
		}
	}

	started := time.Now()
	res, err := g.raceOrigins(ctx, key)
	g.observeRace("origin", started, err == nil)
	if err != nil {
		if insertErr := g.cache.Insert(ctx, key, rescache.AbsentFromOrigin()); insertErr != nil {
			g.log.Warn().Err(insertErr).Str("key", key).Msg("failed to cache absent-from-origin state")
		}
		return "", nil, false, nil
	}

	if err := g.cache.Insert(ctx, key, rescache.Origin(res.url)); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("failed to cache origin resolution")
	}
	return res.url, res.resp, true, nil
}

func (g *Gateway) raceOrigins(ctx context.Context, key string) (originResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.originDeadline)
	defer cancel()

	tasks := make([]func(context.Context) (originResult, error), 0, len(g.origins))
	for _, origin := range g.origins {
		start := joinKey(origin, key).String()
		tasks = append(tasks, func(ctx context.Context) (originResult, error) {
			return g.followRedirects(ctx, start)
		})
	}

	return raceFirstSuccess(ctx, tasks)
}

// fetchOnce issues a single GET with no redirect following, used to
// re-validate a URL the cache already resolved to.
func (g *Gateway) fetchOnce(ctx context.Context, target string) (originResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return originResult{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return originResult{}, err
	}
	if !is2xx(resp.StatusCode) {
		resp.Body.Close()
		return originResult{}, ErrUpstreamStatus
	}
	return originResult{url: target, resp: resp}, nil
}

// followRedirects GETs target, following any 3xx Location header up to
// maxRedirects hops, and returns the final 2xx response along with the
// URL that actually served it.
func (g *Gateway) followRedirects(ctx context.Context, target string) (originResult, error) {
	for hop := 0; ; hop++ {
		if hop > g.maxRedirects {
			return originResult{}, ErrTooManyRedirects
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return originResult{}, err
		}
		resp, err := g.client.Do(req)
		if err != nil {
			return originResult{}, err
		}

		switch {
		case is2xx(resp.StatusCode):
			return originResult{url: target, resp: resp}, nil
		case is3xx(resp.StatusCode):
			location := resp.Header.Get("Location")
			resp.Body.Close()
			if location == "" {
				return originResult{}, ErrUpstreamStatus
			}
			next, err := resp.Request.URL.Parse(location)
			if err != nil {
				return originResult{}, err
			}
			target = next.String()
		default:
			resp.Body.Close()
			return originResult{}, ErrUpstreamStatus
		}
	}
}
