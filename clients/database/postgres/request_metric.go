package postgres

import (
	"context"
	"fmt"

	"github.com/kava-labs/odata-batch-service/clients/database"
)

const (
	BatchRequestMetricsTableName = "batch_request_metrics"
)

// SaveBatchRequestMetric saves metric to the
// database, returning error (if any)
func (c *Client) SaveBatchRequestMetric(ctx context.Context, metric *database.BatchRequestMetric) error {
	if c.db == nil {
		return database.ErrDatabaseNotConfigured
	}

	brm := convertBatchRequestMetric(metric)
	_, err := c.db.NewInsert().Model(brm).Exec(ctx)
	if err != nil {
		return err
	}

	metric.ID = brm.ID

	return nil
}

// ListBatchRequestMetricsWithPagination returns a page of max
// `limit` BatchRequestMetrics from the offset specified by`cursor`
// error (if any) along with a cursor to use to fetch the next page
// if the cursor is 0 no more pages exists.
func (c *Client) ListBatchRequestMetricsWithPagination(ctx context.Context, cursor int64, limit int) ([]*database.BatchRequestMetric, int64, error) {
	if c.db == nil {
		return nil, 0, database.ErrDatabaseNotConfigured
	}

	var batchRequestMetrics []BatchRequestMetric
	var nextCursor int64

	err := c.db.NewSelect().Model(&batchRequestMetrics).Where("id > ?", cursor).Order("id ASC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	// look up the id of the last
	if limit > 0 && len(batchRequestMetrics) == limit {
		nextCursor = batchRequestMetrics[limit-1].ID
	}

	metrics := make([]*database.BatchRequestMetric, 0, len(batchRequestMetrics))
	for _, metric := range batchRequestMetrics {
		metrics = append(metrics, metric.ToBatchRequestMetric())
	}

	// otherwise leave nextCursor as 0 to signal no more rows
	return metrics, nextCursor, nil
}

// CountBatchRequestMetrics returns the total number of stored batch request metrics
func (c *Client) CountBatchRequestMetrics(ctx context.Context) (int64, error) {
	if c.db == nil {
		return 0, database.ErrDatabaseNotConfigured
	}

	count, err := c.db.NewSelect().Model((*BatchRequestMetric)(nil)).Count(ctx)

	return int64(count), err
}

// DeleteBatchRequestMetricsOlderThanNDays deletes
// all batch request metrics older than the specified
// days, returning error (if any).
// Used during pruning process.
func (c *Client) DeleteBatchRequestMetricsOlderThanNDays(ctx context.Context, n int64) error {
	if c.db == nil {
		return database.ErrDatabaseNotConfigured
	}

	_, err := c.db.NewDelete().Model((*BatchRequestMetric)(nil)).Where(fmt.Sprintf("request_time < now() - interval '%d' day", n)).Exec(ctx)

	return err
}
