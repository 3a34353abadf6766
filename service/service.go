// package service provides functions and methods
// for creating and running the api of the batch service
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/kava-labs/odata-batch-service/batch"
	"github.com/kava-labs/odata-batch-service/clients/cache"
	"github.com/kava-labs/odata-batch-service/clients/database"
	"github.com/kava-labs/odata-batch-service/clients/database/noop"
	"github.com/kava-labs/odata-batch-service/clients/database/postgres"
	"github.com/kava-labs/odata-batch-service/clients/database/postgres/migrations"
	"github.com/kava-labs/odata-batch-service/config"
	"github.com/kava-labs/odata-batch-service/logging"
	"github.com/kava-labs/odata-batch-service/service/batchmdw"
	"github.com/kava-labs/odata-batch-service/service/cachemdw"
)

const (
	BatchPathSuffix  = "$batch"
	HealthcheckPath  = "/healthcheck"
	ServicecheckPath = "/servicecheck"
)

// BatchService represents an instance of the batch service API
type BatchService struct {
	Database database.MetricsDatabase
	Cache    *cachemdw.ServiceCache
	Handler  *batch.Handler

	httpServer *http.Server
	config     config.Config
	*logging.ServiceLogger
}

// New returns a new BatchService with the specified config and error (if any)
func New(ctx context.Context, config config.Config, serviceLogger *logging.ServiceLogger) (BatchService, error) {
	service := BatchService{
		config:        config,
		ServiceLogger: serviceLogger,
	}

	db, err := createDatabaseClient(ctx, config, serviceLogger)
	if err != nil {
		return BatchService{}, err
	}
	service.Database = db

	serviceCache, err := createServiceCache(config, serviceLogger)
	if err != nil {
		return BatchService{}, err
	}
	service.Cache = serviceCache

	// requests are timed including cache lookups, so cache hits show up in the metrics
	var processor batch.RequestProcessor = NewBackendProcessor(BackendProcessorConfig{
		BackendURL:        config.BackendURL,
		BaseURI:           config.BatchServiceRootPath,
		RequestsPerSecond: config.BackendRequestsPerSecond,
		RequestBurst:      config.BackendRequestBurst,
		Timeout:           config.BackendTimeout,
		Logger:            serviceLogger,
	})
	processor = serviceCache.CachingProcessor(processor)
	if config.MetricDatabaseEnabled {
		processor = createMetricsProcessor(processor, db, serviceLogger)
	}

	handler, err := batch.NewHandler(batch.HandlerConfig{
		RequestProcessor: processor,
		PartConcurrency:  config.PartConcurrency,
		Logger:           serviceLogger,
	})
	if err != nil {
		return BatchService{}, err
	}
	service.Handler = handler

	// create an http router for registering handlers for a given route
	mux := http.NewServeMux()

	batchMiddleware := batchmdw.CreateBatchProcessingMiddleware(handler, &batchmdw.BatchMiddlewareConfig{
		ServiceLogger: serviceLogger,
		BaseURI:       config.BatchServiceRootPath,
		MaxBodyBytes:  config.MaxBodyBytes,
	})

	// register the batch handler for the $batch resource of the service root
	mux.Handle(BatchPath(config.BatchServiceRootPath), createRequestLoggingMiddleware(batchMiddleware, serviceLogger))

	// register healthcheck handler that can be used during deployment and operations
	// to determine if the service is ready to receive requests
	mux.HandleFunc(HealthcheckPath, createHealthcheckHandler(&service))

	// register servicecheck handler that can be used during deployment and operations
	// to determine if the service is ready to receive requests
	mux.HandleFunc(ServicecheckPath, createServicecheckHandler(&service))

	// register database status handler
	mux.HandleFunc(DatabaseStatusPath, createDatabaseStatusHandler(&service))

	// create an http server for the caller to start at their own discretion
	service.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", config.BatchServicePort),
		Handler:           createRecoveryMiddleware(mux, serviceLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return service, nil
}

// BatchPath returns the path of the $batch resource of the service root rootPath
func BatchPath(rootPath string) string {
	return strings.TrimSuffix(rootPath, "/") + "/" + BatchPathSuffix
}

// HTTPHandler returns the http handler serving the batch service API
func (service *BatchService) HTTPHandler() http.Handler {
	return service.httpServer.Handler
}

// createServiceCache creates the response cache, backed by redis when
// a redis endpoint is configured and by process memory otherwise
func createServiceCache(config config.Config, logger *logging.ServiceLogger) (*cachemdw.ServiceCache, error) {
	var cacheClient cache.Cache = cache.NewInMemoryCache()

	if config.CacheEnabled && config.RedisEndpointURL != "" {
		redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
			Address:  config.RedisEndpointURL,
			Password: config.RedisPassword,
			DB:       0,
		}, logger)
		if err != nil {
			logger.Error().Msg(fmt.Sprintf("error %s creating redis cache client", err))
			return nil, err
		}
		cacheClient = redisCache
	}

	serviceCache := cachemdw.NewServiceCache(
		cacheClient,
		config.CachePrefix,
		config.CacheEnabled,
		cachemdw.DefaultWhitelistedHeaders,
		&cachemdw.Config{CacheTTL: config.CacheTTL},
		logger,
	)

	return serviceCache, nil
}

// createDatabaseClient connects to the metrics database, running any
// pending migrations, or returns a noop database when metrics are disabled
func createDatabaseClient(ctx context.Context, config config.Config, logger *logging.ServiceLogger) (database.MetricsDatabase, error) {
	if !config.MetricDatabaseEnabled {
		logger.Debug().Msg("metric database disabled, not collecting batch request metrics")
		return noop.New(), nil
	}

	databaseConfig := postgres.DatabaseConfig{
		DatabaseName:                     config.DatabaseName,
		DatabaseEndpointURL:              config.DatabaseEndpointURL,
		DatabaseUsername:                 config.DatabaseUserName,
		DatabasePassword:                 config.DatabasePassword,
		SSLEnabled:                       config.DatabaseSSLEnabled,
		QueryLoggingEnabled:              config.DatabaseQueryLoggingEnabled,
		ReadTimeoutSeconds:               config.DatabaseReadTimeoutSeconds,
		WriteTimeoutSeconds:              config.DatabaseWriteTimeoutSeconds,
		DatabaseMaxIdleConnections:       config.DatabaseMaxIdleConnections,
		DatabaseMaxOpenConnections:       config.DatabaseMaxOpenConnections,
		DatabaseConnectionMaxIdleSeconds: int64(config.DatabaseConnectionMaxIdleTime.Seconds()),
		Logger:                           logger,
	}

	db, err := postgres.NewClient(databaseConfig)
	if err != nil {
		logger.Error().Msg(fmt.Sprintf("error %s creating database client", err))
		return nil, err
	}

	// wait for the database to accept connections before migrating
	err = backoff.Retry(func() error {
		healthErr := db.HealthCheck()
		if healthErr != nil {
			logger.Debug().Msg(fmt.Sprintf("database not ready: %s", healthErr))
		}
		return healthErr
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if config.RunDatabaseMigrations {
		migrationCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		applied, err := db.Migrate(migrationCtx, *migrations.Migrations)
		if err != nil {
			logger.Error().Msg(fmt.Sprintf("error %s running migrations on database", err))
			return nil, err
		}

		logger.Info().Msg(fmt.Sprintf("run migrations %+v \n last group %+v \n unapplied %+v", applied, applied.LastGroup(), applied.Unapplied()))
	}

	return db, nil
}

// Run runs the batch service, returning error (if any) in the event
// the batch service stops
func (service *BatchService) Run() error {
	err := service.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting new batches and waits for the
// ones in flight to complete or ctx to be done
func (service *BatchService) Shutdown(ctx context.Context) error {
	return service.httpServer.Shutdown(ctx)
}
