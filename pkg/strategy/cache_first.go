package strategy

import (
	"context"
	"net/http"

	"github.com/Sternrassler/asset-cache/pkg/cache"
)

// cacheFirst serves a fresh cached copy without touching the network. Hits
// past the revalidation threshold also start one background refresh. Misses
// and expired entries go to the network; an expired entry is still served if
// the network then fails.
func (h *Handler) cacheFirst(req *http.Request, a Assignment) (*http.Response, string, error) {
	ctx := req.Context()
	key := cache.NewKey(req)
	store := h.openStore(ctx, a)
	entry := h.match(ctx, store, key)

	if entry != nil {
		now := h.now()
		if !entry.IsStale(a.MaxAge, now) {
			age := entry.Age(now)
			h.logger.Debug().
				Str("url", key.URL).
				Dur("age", age).
				Dur("max_age", a.MaxAge).
				Msg("Serving from cache")

			if age >= a.revalidateThreshold() {
				h.revalidator.Go(ctx, a.Kind, key.URL, func(jobCtx context.Context) error {
					return h.refresh(jobCtx, req, store, key, cache.IsCacheable)
				})
			}
			return cache.EntryToResponse(entry, req), outcomeCache, nil
		}
	}

	resp, err := h.network.RoundTrip(req)
	if err != nil {
		if entry != nil {
			h.logger.Info().
				Str("url", key.URL).
				Err(err).
				Msg("Network failed, serving stale cache")
			return cache.EntryToResponse(entry, req), outcomeStale, nil
		}
		return nil, "", &FetchError{URL: key.URL, Strategy: a.Kind, Err: err}
	}

	if cache.IsCacheable(resp) {
		resp = h.storeOnComplete(req, resp, store, key)
	}
	return resp, outcomeNetwork, nil
}
