// Package batchmdw is responsible for the middleware used to handle batch requests.

// The primary export is CreateBatchProcessingMiddleware which decodes the
// multipart/mixed body posted to the $batch endpoint, executes every part with
// a batch.Handler and writes the results back as a multipart/mixed response.

// Each response is written as an application/http part echoing the Content-ID
// of its request. A change set that succeeded is written as a nested
// multipart/mixed part holding one response per request, a change set that
// failed is written as the single response it failed with.

// The cache status header set by cachemdw on the individual responses is
// combined into one value for the batch response:
//   - `HIT` when all independent requests are cache hits
//   - `MISS` when all independent requests are cache misses
//   - `PARTIAL` when there is a mix of cache hits and misses
package batchmdw
