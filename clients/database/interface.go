package database

import "context"

type MetricsDatabase interface {
	SaveBatchRequestMetric(ctx context.Context, metric *BatchRequestMetric) error
	ListBatchRequestMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*BatchRequestMetric, int64, error)
	CountBatchRequestMetrics(ctx context.Context) (int64, error)
	DeleteBatchRequestMetricsOlderThanNDays(ctx context.Context, days int64) error
	HealthCheck() error
}
