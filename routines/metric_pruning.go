// package routines provides configuration and logic
// for running background routines such as metric pruning
// for removing historical batch request metrics
package routines

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kava-labs/odata-batch-service/clients/database"
	"github.com/kava-labs/odata-batch-service/logging"
)

var ErrInvalidPruningInterval = errors.New("metric pruning interval must be greater than zero")

// MetricPruningRoutineConfig wraps values used
// for creating a new metric pruning routine
type MetricPruningRoutineConfig struct {
	Interval                     time.Duration
	StartDelay                   time.Duration
	MaxRequestMetricsHistoryDays int64
	Database                     database.MetricsDatabase
	Logger                       *logging.ServiceLogger
}

// MetricPruningRoutine can be used to
// run a background routine on a configurable interval
// to prune historical request metrics
type MetricPruningRoutine struct {
	id                           string
	interval                     time.Duration
	startDelay                   time.Duration
	maxRequestMetricsHistoryDays int64
	db                           database.MetricsDatabase
	*logging.ServiceLogger
}

// Run runs the metric pruning routine until ctx is done, returning
// error (if any) from starting the routine and an error channel which
// any errors encountered during running will be sent on
func (mpr *MetricPruningRoutine) Run(ctx context.Context) (<-chan error, error) {
	errorChannel := make(chan error, 1)

	go func() {
		defer close(errorChannel)

		select {
		case <-ctx.Done():
			return
		case <-time.After(mpr.startDelay):
		}

		ticker := time.NewTicker(mpr.interval)
		defer ticker.Stop()

		for {
			mpr.prune(ctx, errorChannel)

			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				mpr.Trace().Msg(fmt.Sprintf("%s tick at %+v", mpr.id, tick))
			}
		}
	}()

	return errorChannel, nil
}

func (mpr *MetricPruningRoutine) prune(ctx context.Context, errorChannel chan<- error) {
	mpr.Debug().Msg(fmt.Sprintf("%s pruning batch request metrics older than %d days", mpr.id, mpr.maxRequestMetricsHistoryDays))

	err := mpr.db.DeleteBatchRequestMetricsOlderThanNDays(ctx, mpr.maxRequestMetricsHistoryDays)
	if err == nil {
		return
	}

	mpr.Error().Msg(fmt.Sprintf("%s error %s pruning batch request metrics", mpr.id, err))

	// never block the routine on a reader that went away
	select {
	case errorChannel <- err:
	default:
	}
}

// NewMetricPruningRoutine creates a new metric pruning routine
// using the provided config, returning the routine and error (if any)
func NewMetricPruningRoutine(config MetricPruningRoutineConfig) (*MetricPruningRoutine, error) {
	if config.Interval <= 0 {
		return nil, ErrInvalidPruningInterval
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &MetricPruningRoutine{
		id:                           uuid.New().String(),
		interval:                     config.Interval,
		startDelay:                   config.StartDelay,
		maxRequestMetricsHistoryDays: config.MaxRequestMetricsHistoryDays,
		db:                           config.Database,
		ServiceLogger:                logger,
	}, nil
}
