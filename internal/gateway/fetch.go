package gateway

import (
	"context"
	"io"
	"net/http"
)

// FetchResult is the outcome of Fetch for a key that does exist.
type FetchResult struct {
	// Redirect is set when the key was found on a mirror or the object
	// store. The caller should answer with a redirect to this URL
	// rather than streaming any bytes itself.
	Redirect string

	// Body, Header and ContentLength are set when the key was found
	// only by racing the origins. The caller streams Body to the client
	// while Fetch concurrently uploads the same bytes to the object
	// store to warm it for the next request.
	Body          io.ReadCloser
	Header        http.Header
	ContentLength int64
}

// Exists answers a HEAD request: does key resolve on a mirror, the
// object store, or an origin. It checks the mirror tier first and, on a
// miss, falls through to the origin race, returning the resolved URL
// either way so the caller can set a Location header on the response.
func (g *Gateway) Exists(ctx context.Context, key string) (string, bool, error) {
	if url, found, err := g.ResolveMirror(ctx, key); err != nil {
		return "", false, err
	} else if found {
		return url, true, nil
	}

	url, resp, found, err := g.ResolveOrigin(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	resp.Body.Close()
	return url, true, nil
}

// Fetch resolves key and, if found, prepares either a redirect or a teed
// origin stream for the caller to serve.
func (g *Gateway) Fetch(ctx context.Context, key string) (*FetchResult, bool, error) {
	if url, found, err := g.ResolveMirror(ctx, key); err != nil {
		return nil, false, err
	} else if found {
		return &FetchResult{Redirect: url}, true, nil
	}

	_, resp, found, err := g.ResolveOrigin(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	contentLength := resp.ContentLength
	header := resp.Header.Clone()

	clientBody, uploadBody := Tee(ctx, resp.Body)

	if g.metrics != nil {
		g.metrics.InFlightFetches.Inc()
	}
	uploadCtx := context.WithoutCancel(ctx)
	go func() {
		if err := g.Upload(uploadCtx, key, contentLength, uploadBody); err != nil {
			g.log.Warn().Err(err).Str("key", key).Msg("background upload to object store failed")
		}
		if g.metrics != nil {
			g.metrics.InFlightFetches.Dec()
		}
	}()

	return &FetchResult{
		Body:          clientBody,
		Header:        header,
		ContentLength: contentLength,
	}, true, nil
}
