package cachemdw

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kava-labs/odata-batch-service/batch"
)

type CacheItemType int

const (
	CacheItemTypeQuery CacheItemType = iota + 1
)

func (t CacheItemType) String() string {
	switch t {
	case CacheItemTypeQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Request headers that change the representation returned for
// the same uri, and so are part of the cache key
var KeyHeaders = []string{
	"Accept",
	"Accept-Language",
	"OData-MaxVersion",
	"OData-Version",
	"Prefer",
}

func BuildCacheKey(cachePrefix string, cacheItemType CacheItemType, parts []string) string {
	fullParts := append(
		[]string{
			cachePrefix,
			cacheItemType.String(),
		},
		parts...,
	)

	return strings.Join(fullParts, ":")
}

// GetQueryKey calculates cache key for request
func GetQueryKey(
	cachePrefix string,
	req *batch.Request,
) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request shouldn't be nil")
	}

	data := make([]byte, 0)
	data = append(data, []byte(req.Method)...)
	data = append(data, ' ')
	data = append(data, []byte(req.RequestURI())...)

	if req.Header != nil {
		for _, name := range KeyHeaders {
			for _, value := range req.Header.Values(name) {
				data = append(data, '\n')
				data = append(data, []byte(strings.ToLower(name)+":"+value)...)
			}
		}
	}

	hashedReq := crypto.Keccak256Hash(data)

	parts := []string{
		req.Method,
		hashedReq.Hex(),
	}

	return BuildCacheKey(cachePrefix, CacheItemTypeQuery, parts), nil
}
