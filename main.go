// package main reads & validates configuration for the batch service
// and if the config is valid starts and monitors an instance of the batch service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kava-labs/odata-batch-service/config"
	"github.com/kava-labs/odata-batch-service/logging"
	"github.com/kava-labs/odata-batch-service/routines"
	"github.com/kava-labs/odata-batch-service/service"
)

var (
	serviceConfig config.Config
	serviceLogger logging.ServiceLogger
)

func init() {
	serviceConfig = config.ReadConfig()

	err := config.Validate(serviceConfig)

	if err != nil {
		panic(err)
	}

	serviceLogger, err = logging.New(serviceConfig.LogLevel)

	if err != nil {
		panic(err)
	}
}

func startMetricPruningRoutine(ctx context.Context, batchService service.BatchService) {
	if !serviceConfig.MetricPruningEnabled {
		serviceLogger.Info().Msg("skipping starting metric pruning routine since it is disabled via config")

		return
	}

	metricPruningRoutineConfig := routines.MetricPruningRoutineConfig{
		Interval:                     serviceConfig.MetricPruningRoutineInterval,
		StartDelay:                   serviceConfig.MetricPruningRoutineDelayFirstRun,
		MaxRequestMetricsHistoryDays: int64(serviceConfig.MetricPruningMaxRequestMetricsHistoryDays),
		Database:                     batchService.Database,
		Logger:                       &serviceLogger,
	}

	metricPruningRoutine, err := routines.NewMetricPruningRoutine(metricPruningRoutineConfig)

	if err != nil {
		serviceLogger.Error().Msg(fmt.Sprintf("error %s creating metric pruning routine with config %+v", err, metricPruningRoutineConfig))

		return
	}

	errChan, err := metricPruningRoutine.Run(ctx)

	if err != nil {
		serviceLogger.Error().Msg(fmt.Sprintf("error %s starting metric pruning routine with config %+v", err, metricPruningRoutineConfig))

		return
	}

	serviceLogger.Info().Msg("started metric pruning routine")

	// monitor and log any errors emitted by the routine
	go func() {
		for routineErr := range errChan {
			serviceLogger.Error().Msg(fmt.Sprintf("metric pruning routine encountered error %s", routineErr))
		}
	}()
}

func main() {
	serviceLogger.Debug().Msg(fmt.Sprintf("initial config: %+v", serviceConfig))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batchService, err := service.New(ctx, serviceConfig, &serviceLogger)

	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", err))
	}

	startMetricPruningRoutine(ctx, batchService)

	shutdownComplete := make(chan struct{})
	go func() {
		defer close(shutdownComplete)

		<-ctx.Done()

		serviceLogger.Info().Msg("shutting down batch service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := batchService.Shutdown(shutdownCtx); err != nil {
			serviceLogger.Error().Msg(fmt.Sprintf("error %s shutting down batch service", err))
		}
	}()

	serviceLogger.Info().Msg(fmt.Sprintf("batch service listening on port %s", serviceConfig.BatchServicePort))

	if err := batchService.Run(); err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("batch service stopped with error %s", err))
	}

	// wait for in flight batches to drain
	<-shutdownComplete
}
