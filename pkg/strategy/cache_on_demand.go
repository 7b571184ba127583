package strategy

import (
	"net/http"

	"github.com/Sternrassler/asset-cache/pkg/cache"
)

// cacheOnDemand is used for video. Nothing is fetched ahead of time; a video
// is stored only after it was requested and only from a full 200 body.
// Partial (206) responses are passed through and never stored.
func (h *Handler) cacheOnDemand(req *http.Request, a Assignment) (*http.Response, string, error) {
	ctx := req.Context()
	key := cache.NewKey(req)
	store := h.openStore(ctx, a)
	entry := h.match(ctx, store, key)

	if entry != nil {
		now := h.now()
		if !entry.IsStale(a.MaxAge, now) {
			h.logger.Debug().
				Str("url", key.URL).
				Str("store", a.Store).
				Msg("Video served from cache")
			return cache.EntryToResponse(entry, req), outcomeCache, nil
		}
		h.logger.Info().
			Str("url", key.URL).
			Dur("age", entry.Age(now)).
			Dur("max_age", a.MaxAge).
			Msg("Video expired, fetching again")
	}

	resp, err := h.network.RoundTrip(req)
	if err != nil {
		if entry != nil {
			h.logger.Info().
				Str("url", key.URL).
				Err(err).
				Msg("Network failed, serving expired video")
			return cache.EntryToResponse(entry, req), outcomeStale, nil
		}
		return nil, "", &FetchError{URL: key.URL, Strategy: a.Kind, Err: err}
	}

	switch {
	case cache.IsComplete(resp):
		h.logger.Debug().Str("url", key.URL).Str("store", a.Store).Msg("Caching full video")
		resp = h.storeOnComplete(req, resp, store, key)
	case resp.StatusCode == http.StatusPartialContent:
		cache.PartialSkipped.WithLabelValues(a.Store).Inc()
		h.logger.Debug().Str("url", key.URL).Msg("Partial response (206), not cached")
	}
	return resp, outcomeNetwork, nil
}
