package strategy

import (
	"context"
	"net/http"

	"github.com/Sternrassler/asset-cache/pkg/cache"
)

// staleWhileRevalidate answers from cache at once when it can and refreshes
// the entry in the background. Without a cached copy the network response is
// awaited and stored.
func (h *Handler) staleWhileRevalidate(req *http.Request, a Assignment) (*http.Response, string, error) {
	ctx := req.Context()
	key := cache.NewKey(req)
	store := h.openStore(ctx, a)

	if entry := h.match(ctx, store, key); entry != nil {
		h.revalidator.Go(ctx, a.Kind, key.URL, func(jobCtx context.Context) error {
			return h.refresh(jobCtx, req, store, key, cache.IsCacheable)
		})
		return cache.EntryToResponse(entry, req), outcomeCache, nil
	}

	resp, err := h.network.RoundTrip(req)
	if err != nil {
		return nil, "", &FetchError{URL: key.URL, Strategy: a.Kind, Err: err}
	}

	if cache.IsCacheable(resp) {
		resp = h.storeOnComplete(req, resp, store, key)
	}
	return resp, outcomeNetwork, nil
}
