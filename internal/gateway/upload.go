package gateway

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prn-tf/nixgate/internal/rescache"
)

// Upload signs and PUTs body to the object store under key. On a 2xx
// response it caches a Mirror resolution pointing at a freshly presigned
// GET URL for the object, so the next request for this key is served from
// the object store without re-racing the mirror tier. On failure the
// cache is left untouched: a prior valid resolution for key must not be
// destroyed just because this upload attempt failed.
func (g *Gateway) Upload(ctx context.Context, key string, size int64, body io.ReadCloser) error {
	target := joinKey(g.objectStoreEndpoint, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), body)
	if err != nil {
		return err
	}
	if size >= 0 {
		req.ContentLength = size
		req.Header.Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if err := g.signer.Sign(req); err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.observeUpload("transport_error")
		return err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		g.observeUpload("rejected")
		return ErrUpstreamStatus
	}

	expiry := g.presignExpiry
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	signedURL, err := g.signer.SignURL(target.String(), expiry)
	if err != nil {
		return err
	}
	if err := g.cache.Insert(ctx, key, rescache.Mirror(signedURL)); err != nil {
		g.log.Warn().Err(err).Str("key", key).Msg("failed to cache resolution after upload")
	}
	g.observeUpload("ok")
	if size > 0 && g.metrics != nil {
		g.metrics.TeeBytes.Add(float64(size))
	}
	return nil
}

func (g *Gateway) observeUpload(outcome string) {
	if g.metrics != nil {
		g.metrics.UploadOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (g *Gateway) observeDelete(outcome string) {
	if g.metrics != nil {
		g.metrics.DeleteOutcomes.WithLabelValues(outcome).Inc()
	}
}

// Delete signs and issues a DELETE against the object store for key, and
// removes any cached resolution so the key is re-resolved from scratch on
// the next request.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	target := joinKey(g.objectStoreEndpoint, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target.String(), nil)
	if err != nil {
		return err
	}
	if err := g.signer.Sign(req); err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.observeDelete("transport_error")
		return err
	}
	defer resp.Body.Close()

	if !is2xx(resp.StatusCode) {
		g.observeDelete("rejected")
		return ErrUpstreamStatus
	}

	g.observeDelete("ok")
	return g.cache.Remove(ctx, key)
}
