package service

// DatabaseStatusResponse wraps values
// returned by calls to /status/database
type DatabaseStatusResponse struct {
	MetricDatabaseEnabled    bool  `json:"metric_database_enabled"`    // whether batch request metrics are collected
	TotalBatchRequestMetrics int64 `json:"total_batch_request_metrics"` // number of stored batch request metrics
}
