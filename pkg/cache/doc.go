// Package cache provides the named, versioned cache stores used by the
// offline asset delivery layer.
//
// A Storage holds any number of Stores. Each Store maps a request identity
// (method + URL) to a captured response. Stores are created on first open and
// are only ever removed as a whole, either during version migration or by an
// explicit clear.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	storage := cache.NewRedisStorage(redisClient)
//
//	store, err := storage.Open(ctx, "images-cache-v2.4.0")
//	if err != nil {
//		return err
//	}
//
//	entry, err := store.Match(ctx, cache.NewKey(req))
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the network
//	}
//
// # Writing Responses
//
// Entries are only written for complete responses. StoreOnComplete wraps a
// live response so the entry is written once the caller has consumed the
// whole body; a body closed early is never persisted.
//
//	if cache.IsCacheable(resp) {
//		resp = cache.StoreOnComplete(ctx, resp, store, key, time.Now, logger)
//	}
//
// # Metrics
//
//   - asset_cache_hits_total{store} - Cache hits
//   - asset_cache_misses_total{store} - Cache misses
//   - asset_cache_writes_total{store} - Entries written
//   - asset_cache_partial_skipped_total{store} - 206 responses not persisted
//   - asset_cache_errors_total{operation} - Storage backend errors
//   - asset_cache_stores_deleted_total - Whole stores removed
package cache
