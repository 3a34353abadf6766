package cachemdw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kava-labs/odata-batch-service/batch"
	"github.com/kava-labs/odata-batch-service/clients/cache"
	"github.com/kava-labs/odata-batch-service/logging"
)

const (
	CacheHeaderKey          = "X-OData-Batch-Cache-Status"
	CacheHitHeaderValue     = "HIT"
	CacheMissHeaderValue    = "MISS"
	CachePartialHeaderValue = "PARTIAL"
)

// Response headers stored along with a cached body when no other list is configured
var DefaultWhitelistedHeaders = []string{
	"Content-Type",
	"OData-Version",
	"ETag",
	"Preference-Applied",
}

type Config struct {
	// TTL for cached responses
	// TTL should be either greater than zero or equal to -1, -1 means cache indefinitely
	CacheTTL time.Duration
}

// ServiceCache is responsible for caching batch requests and provides the corresponding processor
// ServiceCache can work with any underlying storage which implements simple cache.Cache interface
type ServiceCache struct {
	cacheClient cache.Cache
	// cachePrefix is used as prefix for any key in the cache
	cachePrefix        string
	cacheEnabled       bool
	whitelistedHeaders []string

	config *Config

	*logging.ServiceLogger
}

func NewServiceCache(
	cacheClient cache.Cache,
	cachePrefix string,
	cacheEnabled bool,
	whitelistedHeaders []string,
	config *Config,
	logger *logging.ServiceLogger,
) *ServiceCache {
	if whitelistedHeaders == nil {
		whitelistedHeaders = DefaultWhitelistedHeaders
	}

	return &ServiceCache{
		cacheClient:        cacheClient,
		cachePrefix:        cachePrefix,
		cacheEnabled:       cacheEnabled,
		whitelistedHeaders: whitelistedHeaders,
		config:             config,
		ServiceLogger:      logger,
	}
}

// GetCachedQueryResponse calculates cache key for request and then tries to get it from cache.
func (c *ServiceCache) GetCachedQueryResponse(
	ctx context.Context,
	req *batch.Request,
) (*batch.Response, error) {
	// if request isn't cacheable - there is no point to try to get it from cache so exit early with an error
	if !IsCacheable(req) {
		return nil, ErrRequestIsNotCacheable
	}

	key, err := GetQueryKey(c.cachePrefix, req)
	if err != nil {
		return nil, err
	}

	queryResponseInJSON, err := c.cacheClient.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var queryResponse QueryResponse
	if err := json.Unmarshal(queryResponseInJSON, &queryResponse); err != nil {
		return nil, err
	}

	return queryResponse.toResponse(), nil
}

// CacheQueryResponse calculates cache key for request and then saves response to the cache.
func (c *ServiceCache) CacheQueryResponse(
	ctx context.Context,
	req *batch.Request,
	res *batch.Response,
) error {
	// don't cache uncacheable requests
	if !IsCacheable(req) {
		return ErrRequestIsNotCacheable
	}

	// don't cache uncacheable responses
	if !IsCacheableResponse(res) {
		return ErrResponseIsNotCacheable
	}

	key, err := GetQueryKey(c.cachePrefix, req)
	if err != nil {
		return err
	}

	queryResponse := &QueryResponse{
		StatusCode: res.StatusCode,
		Body:       res.Body,
		HeaderMap:  getHeadersToCache(res.Header, c.whitelistedHeaders),
	}
	queryResponseInJSON, err := json.Marshal(queryResponse)
	if err != nil {
		return err
	}

	return c.cacheClient.Set(ctx, key, queryResponseInJSON, c.config.CacheTTL)
}

// CachingProcessor returns a batch.RequestProcessor which works in the following way:
// - if the cache is disabled or the request isn't cacheable - forwards to next
// - if a response is in the cache - returns it marked as a cache hit
// - otherwise forwards to next, caches the response if it is cacheable
// and returns it marked as a cache miss
func (c *ServiceCache) CachingProcessor(next batch.RequestProcessor) batch.RequestProcessor {
	return batch.RequestProcessorFunc(func(ctx context.Context, req *batch.Request) (*batch.Response, error) {
		if !c.cacheEnabled || !IsCacheable(req) {
			return next.Process(ctx, req)
		}

		cachedResponse, err := c.GetCachedQueryResponse(ctx, req)
		if err == nil {
			c.Logger.Trace().
				Str("method", req.Method).
				Str("uri", req.RequestURI()).
				Msg("serving request from cache")

			cachedResponse.Header.Set(CacheHeaderKey, CacheHitHeaderValue)
			return cachedResponse, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			// log unexpected error
			c.Logger.Error().
				Err(err).
				Msg("error during getting response from cache")
		}

		response, err := next.Process(ctx, req)
		if err != nil {
			return nil, err
		}

		if err := c.CacheQueryResponse(ctx, req, response); err != nil && !errors.Is(err, ErrResponseIsNotCacheable) {
			c.Logger.Error().Msgf("can't validate and cache response: %v", err)
		}

		if response.Header == nil {
			response.Header = make(http.Header)
		}
		response.Header.Set(CacheHeaderKey, CacheMissHeaderValue)

		return response, nil
	})
}

// IsCacheHitHeaders reports whether header marks a response served from the cache
func IsCacheHitHeaders(header http.Header) bool {
	return header.Get(CacheHeaderKey) == CacheHitHeaderValue
}

func (c *ServiceCache) Healthcheck(ctx context.Context) error {
	return c.cacheClient.Healthcheck(ctx)
}

func (c *ServiceCache) IsCacheEnabled() bool {
	return c.cacheEnabled
}
