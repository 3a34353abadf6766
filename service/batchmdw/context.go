package batchmdw

import (
	"context"
	"time"
)

type batchInfoContextKey struct{}

// BatchInfo describes the batch request a sub-request belongs to
type BatchInfo struct {
	ID         string
	Hostname   string
	UserAgent  string
	ReceivedAt time.Time
}

// WithBatchInfo returns a copy of ctx carrying info
func WithBatchInfo(ctx context.Context, info BatchInfo) context.Context {
	return context.WithValue(ctx, batchInfoContextKey{}, info)
}

// BatchInfoFromContext returns the BatchInfo stored in ctx by the middleware
func BatchInfoFromContext(ctx context.Context) (BatchInfo, bool) {
	info, ok := ctx.Value(batchInfoContextKey{}).(BatchInfo)
	return info, ok
}
