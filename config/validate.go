package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ValidLogLevels     = [4]string{"TRACE", "DEBUG", "INFO", "ERROR"}
	ErrEmptyBackendURL = errors.New("backend url must not be empty")
)

// Validate validates the provided config
// returning a list of errors that can be unwrapped with `errors.Unwrap`
// or nil if the config is valid
func Validate(config Config) error {
	var validLogLevel bool
	var allErrs error

	for _, validLevel := range ValidLogLevels {
		if config.LogLevel == validLevel {
			validLogLevel = true
			break
		}
	}

	if !validLogLevel {
		allErrs = fmt.Errorf("invalid %s specified %s, supported values are %v", LOG_LEVEL_ENVIRONMENT_KEY, config.LogLevel, ValidLogLevels)
	}

	_, err := ParseBackendURL(config.BackendURLRaw)

	if err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s: %w", BATCH_BACKEND_URL_ENVIRONMENT_KEY, config.BackendURLRaw, err))
	}

	_, err = strconv.Atoi(config.BatchServicePort)

	if err != nil {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s", BATCH_SERVICE_PORT_ENVIRONMENT_KEY, config.BatchServicePort))
	}

	if !strings.HasPrefix(config.BatchServiceRootPath, "/") {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must start with /", BATCH_SERVICE_ROOT_PATH_ENVIRONMENT_KEY, config.BatchServiceRootPath))
	}

	if config.MaxBodyBytes <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be greater than zero", BATCH_MAX_BODY_BYTES_ENVIRONMENT_KEY, config.MaxBodyBytes))
	}

	if config.PartConcurrency < 1 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", BATCH_PART_CONCURRENCY_ENVIRONMENT_KEY, config.PartConcurrency))
	}

	if config.BackendRequestsPerSecond < 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %v, must not be negative", BACKEND_REQUESTS_PER_SECOND_ENVIRONMENT_KEY, config.BackendRequestsPerSecond))
	}

	if config.BackendRequestsPerSecond > 0 && config.BackendRequestBurst < 1 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1 when rate limiting", BACKEND_REQUEST_BURST_ENVIRONMENT_KEY, config.BackendRequestBurst))
	}

	if config.BackendTimeout <= 0 {
		allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", BACKEND_TIMEOUT_SECONDS_ENVIRONMENT_KEY, config.BackendTimeout))
	}

	if config.CacheEnabled {
		if config.RedisEndpointURL == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", REDIS_ENDPOINT_URL_ENVIRONMENT_KEY, config.RedisEndpointURL))
		}
		if config.CacheTTL <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", CACHE_TTL_SECONDS_ENVIRONMENT_KEY, config.CacheTTL))
		}
		if strings.Contains(config.CachePrefix, ":") {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not contain colon symbol", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
		}
		if config.CachePrefix == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", CACHE_PREFIX_ENVIRONMENT_KEY, config.CachePrefix))
		}
	}

	if config.MetricDatabaseEnabled {
		if config.DatabaseEndpointURL == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY, config.DatabaseEndpointURL))
		}
		if config.DatabaseUserName == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", DATABASE_USERNAME_ENVIRONMENT_KEY, config.DatabaseUserName))
		}
		if config.DatabaseName == "" {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must not be empty", DATABASE_NAME_ENVIRONMENT_KEY, config.DatabaseName))
		}
		if config.DatabaseMaxOpenConnections < 1 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY, config.DatabaseMaxOpenConnections))
		}
	}

	if config.MetricPruningEnabled {
		if !config.MetricDatabaseEnabled {
			allErrs = errors.Join(allErrs, fmt.Errorf("%s requires %s", METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY, METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY))
		}
		if config.MetricPruningMaxRequestMetricsHistoryDays < 1 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %d, must be at least 1", METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY, config.MetricPruningMaxRequestMetricsHistoryDays))
		}
		if config.MetricPruningRoutineInterval <= 0 {
			allErrs = errors.Join(allErrs, fmt.Errorf("invalid %s specified %s, must be greater than zero", METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, config.MetricPruningRoutineInterval))
		}
	}

	return allErrs
}
