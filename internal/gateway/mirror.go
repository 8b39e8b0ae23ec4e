package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/prn-tf/nixgate/internal/rescache"
)

// ResolveMirror answers "does this key exist on a mirror or the object
// store right now", consulting the cache first. A cache hit for any kind
// other than Mirror is authoritative and returned without re-probing:
// Origin/AbsentFromOrigin mean the mirror tier was already exhausted for
// this key, and AbsentFromMirror means the last mirror race already came
// up empty (the caller should move on to ResolveOrigin).
func (g *Gateway) ResolveMirror(ctx context.Context, key string) (string, bool, error) {
	if state, ok, err := g.cache.Get(ctx, key); err != nil {
		return "", false, err
	} else if ok {
		g.observeCache(state.Kind.String())
		if state.Kind == rescache.KindMirror {
			return state.URL, true, nil
		}
		return "", false, nil
	}
	g.observeCache("miss")

	started := time.Now()
	url, err := g.raceMirrors(ctx, key)
	g.observeRace("mirror", started, err == nil)
	if err != nil {
		if insertErr := g.cache.Insert(ctx, key, rescache.AbsentFromMirror()); insertErr != nil {
			g.log.Warn().Err(insertErr).Str("key", key).Msg("failed to cache absent-from-mirror state")
		}
		return "", false, nil
	}

	if err := g.cache.Insert(ctx, key, rescache.Mirror(url)); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("failed to cache mirror resolution")
	}
	return url, true, nil
}

// raceMirrors probes the object store first (it tends to answer fastest
// and is usually the freshest copy after an upload) and then every
// configured mirror, returning the URL of whichever answers 2xx first.
func (g *Gateway) raceMirrors(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.mirrorDeadline)
	defer cancel()

	tasks := make([]func(context.Context) (string, error), 0, len(g.mirrors)+1)

	if g.objectStoreEndpoint != nil {
		tasks = append(tasks, func(ctx context.Context) (string, error) {
			return g.probeObjectStore(ctx, key)
		})
	}
	for _, mirror := range g.mirrors {
		mirrorURL := joinKey(mirror, key)
		tasks = append(tasks, func(ctx context.Context) (string, error) {
			return g.probeMirrorGET(ctx, mirrorURL.String())
		})
	}

	return raceFirstSuccess(ctx, tasks)
}

func (g *Gateway) probeMirrorGET(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if !is2xx(resp.StatusCode) {
		return "", ErrUpstreamStatus
	}
	return target, nil
}

func (g *Gateway) probeObjectStore(ctx context.Context, key string) (string, error) {
	target := joinKey(g.objectStoreEndpoint, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return "", err
	}
	if err := g.signer.Sign(req); err != nil {
		return "", err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if !is2xx(resp.StatusCode) {
		return "", ErrUpstreamStatus
	}

	expiry := g.presignExpiry
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return g.signer.SignURL(target.String(), expiry)
}
