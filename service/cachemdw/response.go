package cachemdw

import (
	"net/http"
	"strings"

	"github.com/kava-labs/odata-batch-service/batch"
)

// QueryResponse represents the structure which stored in the cache for every cacheable request
type QueryResponse struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
	// HeaderMap is a map of HTTP headers which is cached along with the response body
	HeaderMap map[string]string `json:"header_map"`
}

// toResponse builds a fresh batch response from the cached values
func (q *QueryResponse) toResponse() *batch.Response {
	response := batch.NewResponse(q.StatusCode, q.Body)
	for name, value := range q.HeaderMap {
		response.Header.Set(name, value)
	}
	return response
}

// IsCacheable checks if the request is cacheable.
// Only reads addressing a resource directly are cached, and
// clients can opt out with a Cache-Control directive.
func IsCacheable(req *batch.Request) bool {
	if req == nil {
		return false
	}

	if req.Method != http.MethodGet {
		return false
	}

	// a reference only has a meaning within its change set
	if req.Reference != nil {
		return false
	}

	if req.Header != nil && hasCacheControlDirective(req.Header.Values("Cache-Control"), "no-cache", "no-store") {
		return false
	}

	return true
}

// IsCacheableResponse returns true in case of:
// - the response has status 200
// - the response does not forbid shared caching
func IsCacheableResponse(res *batch.Response) bool {
	if res == nil || res.StatusCode != http.StatusOK {
		return false
	}

	return !hasCacheControlDirective(res.Header.Values("Cache-Control"), "no-store", "private")
}

func hasCacheControlDirective(values []string, directives ...string) bool {
	for _, value := range values {
		for _, field := range strings.Split(value, ",") {
			field = strings.ToLower(strings.TrimSpace(field))
			for _, directive := range directives {
				if field == directive || strings.HasPrefix(field, directive+"=") {
					return true
				}
			}
		}
	}

	return false
}

// getHeadersToCache gets header map which has to be cached along with the response body
func getHeadersToCache(header http.Header, whitelistedHeaders []string) map[string]string {
	headersToCache := make(map[string]string, 0)

	for _, headerName := range whitelistedHeaders {
		headerValue := header.Get(headerName)
		if headerValue == "" {
			continue
		}

		headersToCache[headerName] = headerValue
	}

	return headersToCache
}
