package main_test

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-service/clients/database/postgres"
	"github.com/kava-labs/odata-batch-service/logging"
	"github.com/kava-labs/odata-batch-service/service"
	"github.com/kava-labs/odata-batch-service/service/batchmdw"
	"github.com/kava-labs/odata-batch-service/service/cachemdw"
)

var (
	testContext = context.Background()

	testServiceLogger = func() logging.ServiceLogger {
		logger, err := logging.New("ERROR")
		if err != nil {
			panic(err)
		}
		return logger
	}()

	batchServiceURL      = os.Getenv("TEST_BATCH_SERVICE_URL")
	batchServiceRootPath = envOrDefault("TEST_BATCH_SERVICE_ROOT_PATH", "/")
	// entitySet is a collection of the backend service the tests read from
	entitySet = envOrDefault("TEST_ENTITY_SET", "Entities")

	databaseURL      = os.Getenv("TEST_DATABASE_ENDPOINT_URL")
	databasePassword = os.Getenv("DATABASE_PASSWORD")
	databaseUsername = os.Getenv("DATABASE_USERNAME")
	databaseName     = os.Getenv("DATABASE_NAME")
	databaseConfig   = postgres.DatabaseConfig{
		DatabaseName:        databaseName,
		DatabaseEndpointURL: databaseURL,
		DatabaseUsername:    databaseUsername,
		DatabasePassword:    databasePassword,
		SSLEnabled:          false,
		QueryLoggingEnabled: false,
		Logger:              &testServiceLogger,
	}

	redisURL      = os.Getenv("TEST_REDIS_ENDPOINT_URL")
	redisPassword = os.Getenv("REDIS_PASSWORD")
	cachePrefix   = envOrDefault("CACHE_PREFIX", "odata-batch")
)

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newBatchServiceClient(t *testing.T) *service.BatchServiceClient {
	if batchServiceURL == "" {
		t.Skip("TEST_BATCH_SERVICE_URL is not set. skipping e2e test")
	}

	client, err := service.NewBatchServiceClient(service.BatchServiceClientConfig{
		BatchServiceHostname: batchServiceURL,
		ServiceRootPath:      batchServiceRootPath,
	})
	require.NoError(t, err)

	// the service may still be connecting to its dependencies
	err = backoff.Retry(func() error {
		request, err := service.CreateRequest(testContext, http.MethodGet, batchServiceURL+service.HealthcheckPath, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		return service.Call(*client, request, nil)
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 20))
	require.NoError(t, err)

	return client
}

func queryBatch(boundary string, queries ...string) []byte {
	var body strings.Builder
	for i, query := range queries {
		fmt.Fprintf(&body, "--%s\r\nContent-Type: application/http\r\nContent-Transfer-Encoding: binary\r\nContent-ID: q%d\r\n\r\n", boundary, i+1)
		fmt.Fprintf(&body, "GET %s HTTP/1.1\r\nAccept: application/json\r\n\r\n", query)
	}
	fmt.Fprintf(&body, "--%s--\r\n", boundary)
	return []byte(body.String())
}

func readResponseParts(t *testing.T, res *service.BatchResponse) []*multipart.Part {
	mediaType, params, err := mime.ParseMediaType(res.ContentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(strings.NewReader(string(res.Body)), params["boundary"])

	var parts []*multipart.Part
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return parts
		}
		require.NoError(t, err)
		parts = append(parts, part)
	}
}

func TestE2ETestBatchServiceAnswersEveryPart(t *testing.T) {
	client := newBatchServiceClient(t)

	body := queryBatch("batch_e2e", entitySet+"?$top=1", entitySet+"?$top=2", entitySet+"?$count=true&$top=0")

	res, err := client.PostBatch(testContext, "multipart/mixed; boundary=batch_e2e", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Header.Get(batchmdw.BatchIDHeaderKey))

	parts := readResponseParts(t, res)
	require.Len(t, parts, 3)
	for i, part := range parts {
		assert.Equal(t, fmt.Sprintf("q%d", i+1), part.Header.Get("Content-ID"))
		assert.Equal(t, "application/http", part.Header.Get("Content-Type"))
	}
}

func TestE2ETestBatchServiceRejectsMalformedBatch(t *testing.T) {
	client := newBatchServiceClient(t)

	body := queryBatch("batch_e2e", entitySet)
	body = body[:len(body)-len("--batch_e2e--\r\n")]

	res, err := client.PostBatch(testContext, "multipart/mixed; boundary=batch_e2e", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, string(res.Body), "MISSING_CLOSE_DELIMITER")
}

func TestE2ETestBatchServiceCreatesMetricForEachRequest(t *testing.T) {
	client := newBatchServiceClient(t)
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_ENDPOINT_URL is not set. skipping metrics e2e test")
	}

	db, err := postgres.NewClient(databaseConfig)
	require.NoError(t, err)
	defer db.Close()

	before, err := client.GetDatabaseStatus(testContext)
	require.NoError(t, err)
	require.True(t, before.MetricDatabaseEnabled)

	res, err := client.PostBatch(testContext, "multipart/mixed; boundary=batch_e2e", queryBatch("batch_e2e", entitySet, entitySet+"?$top=1"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	batchID := res.Header.Get(batchmdw.BatchIDHeaderKey)

	// metrics are saved in the background
	err = backoff.Retry(func() error {
		found := 0
		var cursor int64
		for {
			metrics, next, err := db.ListBatchRequestMetricsWithPagination(testContext, cursor, 1000)
			if err != nil {
				return backoff.Permanent(err)
			}
			for _, metric := range metrics {
				if metric.BatchID == batchID {
					found++
				}
			}
			if next == 0 {
				break
			}
			cursor = next
		}
		if found != 2 {
			return fmt.Errorf("found %d metrics for batch %s", found, batchID)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 50))
	require.NoError(t, err)
}

func TestE2ETestBatchServiceCachesIndependentQueries(t *testing.T) {
	client := newBatchServiceClient(t)
	if redisURL == "" {
		t.Skip("TEST_REDIS_ENDPOINT_URL is not set. skipping cache e2e test")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: redisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	keys, err := redisClient.Keys(testContext, cachePrefix+":query:*").Result()
	require.NoError(t, err)
	if len(keys) > 0 {
		require.NoError(t, redisClient.Del(testContext, keys...).Err())
	}

	body := queryBatch("batch_e2e", entitySet+"?$top=3")

	first, err := client.PostBatch(testContext, "multipart/mixed; boundary=batch_e2e", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, cachemdw.CacheMissHeaderValue, first.Header.Get(cachemdw.CacheHeaderKey))

	keys, err = redisClient.Keys(testContext, cachePrefix+":query:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)

	second, err := client.PostBatch(testContext, "multipart/mixed; boundary=batch_e2e", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, cachemdw.CacheHitHeaderValue, second.Header.Get(cachemdw.CacheHeaderKey))
}
