package database

import "time"

// BatchRequestMetric contains request metrics for a single
// request of a batch forwarded by the batch service
type BatchRequestMetric struct {
	ID int64
	// BatchID is shared by every request of the same batch
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
