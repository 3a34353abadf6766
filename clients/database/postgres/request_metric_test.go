package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-service/clients/database"
)

func TestUnitTestNoDatabaseSave(t *testing.T) {
	db := &Client{}

	brm := &database.BatchRequestMetric{}
	err := db.SaveBatchRequestMetric(context.Background(), brm)
	require.ErrorIs(t, err, database.ErrDatabaseNotConfigured)
}

func TestUnitTestNoDatabaseListBatchRequestMetricsWithPagination(t *testing.T) {
	db := &Client{}

	_, _, err := db.ListBatchRequestMetricsWithPagination(context.Background(), 0, 0)
	require.ErrorIs(t, err, database.ErrDatabaseNotConfigured)
}

func TestUnitTestNoDatabaseCountBatchRequestMetrics(t *testing.T) {
	db := &Client{}

	_, err := db.CountBatchRequestMetrics(context.Background())
	require.ErrorIs(t, err, database.ErrDatabaseNotConfigured)
}

func TestUnitTestNoDatabaseDeleteBatchRequestMetricsOlderThanNDays(t *testing.T) {
	db := &Client{}

	err := db.DeleteBatchRequestMetricsOlderThanNDays(context.Background(), 0)
	require.ErrorIs(t, err, database.ErrDatabaseNotConfigured)
}

func TestUnitTestBatchRequestMetricConversion(t *testing.T) {
	userAgent := "odata-client/1.0"
	metric := &database.BatchRequestMetric{
		BatchID:    "5c0d6a4e-5f5c-4bb8-9d1f-0b2ad1a5f001",
		Method:     "PATCH",
		Path:       "/Entities(42)",
		ContentID:  "2",
		StatusCode: 204,
		UserAgent:  &userAgent,
	}

	require.Equal(t, metric, convertBatchRequestMetric(metric).ToBatchRequestMetric())
}
