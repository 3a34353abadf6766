// Package cachemdw is responsible for caching the responses to read requests of a batch
// package can work with any underlying storage which implements simple cache.Cache interface
//
// ServiceCache.CachingProcessor wraps the batch.RequestProcessor forwarding requests to the
// backend. Requests that can be cached are answered from the cache when present, otherwise
// they are forwarded and successful responses are stored for later requests.
//
// Every response to a cacheable request carries the CacheHeaderKey header set to
// HIT or MISS, which the batch response writer combines into one status for the batch.
package cachemdw
