// Package cache provides an optional Redis-backed cache for GET
// responses from the Planet API.
//
// Entries live as long as the server's Expires header allows, falling
// back to a short default when the header is missing. The session
// consults the cache before admitting a GET request through the limiter,
// so a cache hit consumes neither a concurrency slot nor rate budget.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{URL: "https://api.planet.com/data/v1/searches?a=1"}
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the API
//	}
//
// # Metrics
//
// The cache exports Prometheus metrics:
//
//   - planet_cache_hits_total - responses served from cache
//   - planet_cache_misses_total - cache misses
//   - planet_cache_size_bytes - bytes written to the cache
//   - planet_cache_errors_total{operation} - cache operation errors
package cache
