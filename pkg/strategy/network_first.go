package strategy

import (
	"errors"
	"net/http"

	"github.com/Sternrassler/asset-cache/pkg/cache"
)

// networkFirst tries the network and stores successful responses. When the
// network fails it serves the most recent copy from any store, then the
// offline page for documents.
func (h *Handler) networkFirst(req *http.Request, a Assignment) (*http.Response, string, error) {
	ctx := req.Context()
	key := cache.NewKey(req)

	resp, err := h.network.RoundTrip(req)
	if err == nil {
		if cache.IsCacheable(resp) {
			resp = h.storeOnComplete(req, resp, h.openStore(ctx, a), key)
		}
		return resp, outcomeNetwork, nil
	}

	entry, matchErr := h.storage.Match(ctx, key)
	if matchErr == nil {
		h.logger.Info().
			Str("url", key.URL).
			Err(err).
			Msg("Serving from cache (offline)")
		return cache.EntryToResponse(entry, req), outcomeStale, nil
	}
	if !errors.Is(matchErr, cache.ErrCacheMiss) {
		h.logger.Warn().Err(matchErr).Str("url", key.URL).Msg("Cache match error")
	}

	if a.Document {
		h.logger.Info().
			Str("url", key.URL).
			Err(err).
			Msg("Serving offline page")
		return OfflineResponse(req, h.offlinePage), outcomeOffline, nil
	}

	return nil, "", &FetchError{URL: key.URL, Strategy: a.Kind, Err: err}
}
