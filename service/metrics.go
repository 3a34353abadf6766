package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kava-labs/odata-batch-service/batch"
	"github.com/kava-labs/odata-batch-service/clients/database"
	"github.com/kava-labs/odata-batch-service/logging"
	"github.com/kava-labs/odata-batch-service/service/batchmdw"
	"github.com/kava-labs/odata-batch-service/service/cachemdw"
)

// createMetricsProcessor returns a processor which times every request
// handled by next and saves a batch request metric for it in the background
func createMetricsProcessor(next batch.RequestProcessor, db database.MetricsDatabase, logger *logging.ServiceLogger) batch.RequestProcessor {
	return batch.RequestProcessorFunc(func(ctx context.Context, req *batch.Request) (*batch.Response, error) {
		requestTime := time.Now()
		response, err := next.Process(ctx, req)
		latency := time.Since(requestTime)

		metric := &database.BatchRequestMetric{
			Method:                      req.Method,
			Path:                        req.ODataPath,
			ContentID:                   req.ContentID,
			ResponseLatencyMilliseconds: latency.Milliseconds(),
			RequestTime:                 requestTime,
		}

		if info, ok := batchmdw.BatchInfoFromContext(ctx); ok {
			metric.BatchID = info.ID
			metric.Hostname = info.Hostname
			if info.UserAgent != "" {
				userAgent := info.UserAgent
				metric.UserAgent = &userAgent
			}
		}

		if err != nil {
			metric.StatusCode = batch.ErrorResponse(err).StatusCode
		} else {
			metric.StatusCode = response.StatusCode
			metric.CacheHit = cachemdw.IsCacheHitHeaders(response.Header)
		}

		// save metric in the background so the batch is not held up by the database
		go func() {
			if saveErr := db.SaveBatchRequestMetric(context.Background(), metric); saveErr != nil {
				logger.Error().Msg(fmt.Sprintf("error %s saving metric %+v", saveErr, metric))
			}
		}()

		return response, err
	})
}
