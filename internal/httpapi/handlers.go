package httpapi

import (
	"io"
	"net/http"
	"strconv"
)

func (h *handler) handleHead(w http.ResponseWriter, r *http.Request) {
	url, found, err := h.gw.Exists(r.Context(), key(r))
	if err != nil {
		h.log.Error().Err(err).Str("key", key(r)).Msg("exists check failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Location", url)
	w.WriteHeader(http.StatusOK)
}

func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	result, found, err := h.gw.Fetch(r.Context(), key(r))
	if err != nil {
		h.log.Error().Err(err).Str("key", key(r)).Msg("fetch failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if result.Redirect != "" {
		http.Redirect(w, r, result.Redirect, http.StatusTemporaryRedirect)
		return
	}

	for k, values := range result.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	if result.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	defer result.Body.Close()
	if _, err := io.Copy(w, result.Body); err != nil {
		h.log.Warn().Err(err).Str("key", key(r)).Msg("client stream interrupted")
	}
}

func (h *handler) handlePut(w http.ResponseWriter, r *http.Request) {
	size := r.ContentLength
	if size < 0 {
		if n, ok := parseContentLengthHeader(r.Header.Get("Content-Length")); ok {
			size = n
		}
	}

	if err := h.gw.Upload(r.Context(), key(r), size, r.Body); err != nil {
		h.log.Error().Err(err).Str("key", key(r)).Msg("upload failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.Delete(r.Context(), key(r)); err != nil {
		h.log.Error().Err(err).Str("key", key(r)).Msg("delete failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func parseContentLengthHeader(s string) (int64, bool) {
	if s == "" {
		return -1, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1, false
	}
	return n, true
}
