package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/kava-labs/odata-batch-service/clients/database"
)

// BatchRequestMetric is the row stored for every request
// of a batch forwarded by the batch service
type BatchRequestMetric struct {
	bun.BaseModel `bun:"table:batch_request_metrics,alias:brm"`

	ID                          int64 `bun:",pk,autoincrement"`
	BatchID                     string
	Method                      string
	Path                        string
	ContentID                   string
	StatusCode                  int
	ResponseLatencyMilliseconds int64
	RequestTime                 time.Time
	Hostname                    string
	UserAgent                   *string
	CacheHit                    bool
}

func (brm *BatchRequestMetric) ToBatchRequestMetric() *database.BatchRequestMetric {
	return &database.BatchRequestMetric{
		ID:                          brm.ID,
		BatchID:                     brm.BatchID,
		Method:                      brm.Method,
		Path:                        brm.Path,
		ContentID:                   brm.ContentID,
		StatusCode:                  brm.StatusCode,
		ResponseLatencyMilliseconds: brm.ResponseLatencyMilliseconds,
		RequestTime:                 brm.RequestTime,
		Hostname:                    brm.Hostname,
		UserAgent:                   brm.UserAgent,
		CacheHit:                    brm.CacheHit,
	}
}

func convertBatchRequestMetric(metric *database.BatchRequestMetric) *BatchRequestMetric {
	return &BatchRequestMetric{
		ID:                          metric.ID,
		BatchID:                     metric.BatchID,
		Method:                      metric.Method,
		Path:                        metric.Path,
		ContentID:                   metric.ContentID,
		StatusCode:                  metric.StatusCode,
		ResponseLatencyMilliseconds: metric.ResponseLatencyMilliseconds,
		RequestTime:                 metric.RequestTime,
		Hostname:                    metric.Hostname,
		UserAgent:                   metric.UserAgent,
		CacheHit:                    metric.CacheHit,
	}
}
