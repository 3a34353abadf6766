// package config provides functions and values
// for reading and validating batch service configuration
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	LogLevel                                  string
	BatchServicePort                          string
	BatchServiceRootPath                      string
	BackendURLRaw                             string
	BackendURL                                url.URL
	MaxBodyBytes                              int64
	PartConcurrency                           int
	BackendRequestsPerSecond                  float64
	BackendRequestBurst                       int
	BackendTimeout                            time.Duration
	CacheEnabled                              bool
	RedisEndpointURL                          string
	RedisPassword                             string
	CacheTTL                                  time.Duration
	CachePrefix                               string
	MetricDatabaseEnabled                     bool
	DatabaseName                              string
	DatabaseEndpointURL                       string
	DatabaseUserName                          string
	DatabasePassword                          string
	DatabaseSSLEnabled                        bool
	DatabaseQueryLoggingEnabled               bool
	DatabaseMaxIdleConnections                int64
	DatabaseMaxOpenConnections                int64
	DatabaseConnectionMaxIdleTime             time.Duration
	DatabaseReadTimeoutSeconds                int64
	DatabaseWriteTimeoutSeconds               int64
	RunDatabaseMigrations                     bool
	MetricPruningEnabled                      bool
	MetricPruningRoutineInterval              time.Duration
	MetricPruningRoutineDelayFirstRun         time.Duration
	MetricPruningMaxRequestMetricsHistoryDays int
}

const (
	LOG_LEVEL_ENVIRONMENT_KEY                                       = "LOG_LEVEL"
	DEFAULT_LOG_LEVEL                                               = "INFO"
	BATCH_SERVICE_PORT_ENVIRONMENT_KEY                              = "BATCH_SERVICE_PORT"
	DEFAULT_BATCH_SERVICE_PORT                                      = "7777"
	BATCH_SERVICE_ROOT_PATH_ENVIRONMENT_KEY                         = "BATCH_SERVICE_ROOT_PATH"
	DEFAULT_BATCH_SERVICE_ROOT_PATH                                 = "/"
	BATCH_BACKEND_URL_ENVIRONMENT_KEY                               = "BATCH_BACKEND_URL"
	BATCH_MAX_BODY_BYTES_ENVIRONMENT_KEY                            = "BATCH_MAX_BODY_BYTES"
	DEFAULT_BATCH_MAX_BODY_BYTES                                    = 10 << 20
	BATCH_PART_CONCURRENCY_ENVIRONMENT_KEY                          = "BATCH_PART_CONCURRENCY"
	DEFAULT_BATCH_PART_CONCURRENCY                                  = 1
	BACKEND_REQUESTS_PER_SECOND_ENVIRONMENT_KEY                     = "BACKEND_REQUESTS_PER_SECOND"
	DEFAULT_BACKEND_REQUESTS_PER_SECOND                             = 0
	BACKEND_REQUEST_BURST_ENVIRONMENT_KEY                           = "BACKEND_REQUEST_BURST"
	DEFAULT_BACKEND_REQUEST_BURST                                   = 1
	BACKEND_TIMEOUT_SECONDS_ENVIRONMENT_KEY                         = "BACKEND_TIMEOUT_SECONDS"
	DEFAULT_BACKEND_TIMEOUT_SECONDS                                 = 30
	CACHE_ENABLED_ENVIRONMENT_KEY                                   = "CACHE_ENABLED"
	REDIS_ENDPOINT_URL_ENVIRONMENT_KEY                              = "REDIS_ENDPOINT_URL"
	REDIS_PASSWORD_ENVIRONMENT_KEY                                  = "REDIS_PASSWORD"
	CACHE_TTL_SECONDS_ENVIRONMENT_KEY                               = "CACHE_TTL_SECONDS"
	DEFAULT_CACHE_TTL_SECONDS                                       = 60
	CACHE_PREFIX_ENVIRONMENT_KEY                                    = "CACHE_PREFIX"
	DEFAULT_CACHE_PREFIX                                            = "odata-batch"
	METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY                         = "METRIC_DATABASE_ENABLED"
	DATABASE_NAME_ENVIRONMENT_KEY                                   = "DATABASE_NAME"
	DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY                           = "DATABASE_ENDPOINT_URL"
	DATABASE_USERNAME_ENVIRONMENT_KEY                               = "DATABASE_USERNAME"
	DATABASE_PASSWORD_ENVIRONMENT_KEY                               = "DATABASE_PASSWORD"
	DATABASE_SSL_ENABLED_ENVIRONMENT_KEY                            = "DATABASE_SSL_ENABLED"
	DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY                  = "DATABASE_QUERY_LOGGING_ENABLED"
	DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY                   = "DATABASE_MAX_IDLE_CONNECTIONS"
	DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS                           = 5
	DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY                   = "DATABASE_MAX_OPEN_CONNECTIONS"
	DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS                           = 20
	DATABASE_CONNECTION_MAX_IDLE_TIME_ENVIRONMENT_KEY               = "DATABASE_CONNECTION_MAX_IDLE_TIME_SECONDS"
	DEFAULT_DATABASE_CONNECTION_MAX_IDLE_TIME_SECONDS               = 5
	DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY                   = "DATABASE_READ_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_READ_TIMEOUT_SECONDS                           = 60
	DATABASE_WRITE_TIMEOUT_SECONDS_ENVIRONMENT_KEY                  = "DATABASE_WRITE_TIMEOUT_SECONDS"
	DEFAULT_DATABASE_WRITE_TIMEOUT_SECONDS                          = 10
	RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY                         = "RUN_DATABASE_MIGRATIONS"
	METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY                          = "METRIC_PRUNING_ENABLED"
	METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY         = "METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS                 = 86400
	METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_ENVIRONMENT_KEY  = "METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS"
	DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS          = 10
	METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY = "METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS"
	DEFAULT_METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS         = 45
)

// EnvOrDefault fetches an environment variable value, or if not set returns the fallback value
func EnvOrDefault(key string, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// EnvOrDefaultInt fetches an int environment variable value, or if not set
// or not an int returns the fallback value
func EnvOrDefaultInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		intVal, err := strconv.Atoi(val)
		if err != nil {
			return fallback
		}
		return intVal
	}
	return fallback
}

// EnvOrDefaultInt64 fetches an int64 environment variable value, or if not set
// or not an int returns the fallback value
func EnvOrDefaultInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		intVal, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fallback
		}
		return intVal
	}
	return fallback
}

// EnvOrDefaultFloat64 fetches a float environment variable value, or if not set
// or not a float returns the fallback value
func EnvOrDefaultFloat64(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		floatVal, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fallback
		}
		return floatVal
	}
	return fallback
}

// EnvOrDefaultBool fetches a boolean environment variable value, or if not set
// or not a boolean returns the fallback value
func EnvOrDefaultBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		boolVal, err := strconv.ParseBool(val)
		if err != nil {
			return fallback
		}
		return boolVal
	}
	return fallback
}

// ParseBackendURL parses the url of the OData service requests of a
// batch are forwarded to, returning the parsed url and error (if any)
func ParseBackendURL(raw string) (url.URL, error) {
	if raw == "" {
		return url.URL{}, ErrEmptyBackendURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return url.URL{}, fmt.Errorf("error %s parsing backend url %s", err, raw)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return url.URL{}, fmt.Errorf("backend url %s must be absolute", raw)
	}

	return *parsed, nil
}

// ReadConfig attempts to parse service config from environment values
// the returned config may be invalid and should be validated via the `Validate`
// function of the Config package before use
func ReadConfig() Config {
	rawBackendURL := os.Getenv(BATCH_BACKEND_URL_ENVIRONMENT_KEY)
	// best effort to parse, callers are responsible for validating
	// before using any values read
	parsedBackendURL, _ := ParseBackendURL(rawBackendURL)

	return Config{
		LogLevel:                                  EnvOrDefault(LOG_LEVEL_ENVIRONMENT_KEY, DEFAULT_LOG_LEVEL),
		BatchServicePort:                          EnvOrDefault(BATCH_SERVICE_PORT_ENVIRONMENT_KEY, DEFAULT_BATCH_SERVICE_PORT),
		BatchServiceRootPath:                      EnvOrDefault(BATCH_SERVICE_ROOT_PATH_ENVIRONMENT_KEY, DEFAULT_BATCH_SERVICE_ROOT_PATH),
		BackendURLRaw:                             rawBackendURL,
		BackendURL:                                parsedBackendURL,
		MaxBodyBytes:                              EnvOrDefaultInt64(BATCH_MAX_BODY_BYTES_ENVIRONMENT_KEY, DEFAULT_BATCH_MAX_BODY_BYTES),
		PartConcurrency:                           EnvOrDefaultInt(BATCH_PART_CONCURRENCY_ENVIRONMENT_KEY, DEFAULT_BATCH_PART_CONCURRENCY),
		BackendRequestsPerSecond:                  EnvOrDefaultFloat64(BACKEND_REQUESTS_PER_SECOND_ENVIRONMENT_KEY, DEFAULT_BACKEND_REQUESTS_PER_SECOND),
		BackendRequestBurst:                       EnvOrDefaultInt(BACKEND_REQUEST_BURST_ENVIRONMENT_KEY, DEFAULT_BACKEND_REQUEST_BURST),
		BackendTimeout:                            time.Duration(EnvOrDefaultInt(BACKEND_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_BACKEND_TIMEOUT_SECONDS)) * time.Second,
		CacheEnabled:                              EnvOrDefaultBool(CACHE_ENABLED_ENVIRONMENT_KEY, false),
		RedisEndpointURL:                          os.Getenv(REDIS_ENDPOINT_URL_ENVIRONMENT_KEY),
		RedisPassword:                             os.Getenv(REDIS_PASSWORD_ENVIRONMENT_KEY),
		CacheTTL:                                  time.Duration(EnvOrDefaultInt(CACHE_TTL_SECONDS_ENVIRONMENT_KEY, DEFAULT_CACHE_TTL_SECONDS)) * time.Second,
		CachePrefix:                               EnvOrDefault(CACHE_PREFIX_ENVIRONMENT_KEY, DEFAULT_CACHE_PREFIX),
		MetricDatabaseEnabled:                     EnvOrDefaultBool(METRIC_DATABASE_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseName:                              os.Getenv(DATABASE_NAME_ENVIRONMENT_KEY),
		DatabaseEndpointURL:                       os.Getenv(DATABASE_ENDPOINT_URL_ENVIRONMENT_KEY),
		DatabaseUserName:                          os.Getenv(DATABASE_USERNAME_ENVIRONMENT_KEY),
		DatabasePassword:                          os.Getenv(DATABASE_PASSWORD_ENVIRONMENT_KEY),
		DatabaseSSLEnabled:                        EnvOrDefaultBool(DATABASE_SSL_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseQueryLoggingEnabled:               EnvOrDefaultBool(DATABASE_QUERY_LOGGING_ENABLED_ENVIRONMENT_KEY, false),
		DatabaseMaxIdleConnections:                EnvOrDefaultInt64(DATABASE_MAX_IDLE_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_IDLE_CONNECTIONS),
		DatabaseMaxOpenConnections:                EnvOrDefaultInt64(DATABASE_MAX_OPEN_CONNECTIONS_ENVIRONMENT_KEY, DEFAULT_DATABASE_MAX_OPEN_CONNECTIONS),
		DatabaseConnectionMaxIdleTime:             time.Duration(EnvOrDefaultInt(DATABASE_CONNECTION_MAX_IDLE_TIME_ENVIRONMENT_KEY, DEFAULT_DATABASE_CONNECTION_MAX_IDLE_TIME_SECONDS)) * time.Second,
		DatabaseReadTimeoutSeconds:                EnvOrDefaultInt64(DATABASE_READ_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_READ_TIMEOUT_SECONDS),
		DatabaseWriteTimeoutSeconds:               EnvOrDefaultInt64(DATABASE_WRITE_TIMEOUT_SECONDS_ENVIRONMENT_KEY, DEFAULT_DATABASE_WRITE_TIMEOUT_SECONDS),
		RunDatabaseMigrations:                     EnvOrDefaultBool(RUN_DATABASE_MIGRATIONS_ENVIRONMENT_KEY, false),
		MetricPruningEnabled:                      EnvOrDefaultBool(METRIC_PRUNING_ENABLED_ENVIRONMENT_KEY, false),
		MetricPruningRoutineInterval:              time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_INTERVAL_SECONDS)) * time.Second,
		MetricPruningRoutineDelayFirstRun:         time.Duration(EnvOrDefaultInt(METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_ROUTINE_DELAY_FIRST_RUN_SECONDS)) * time.Second,
		MetricPruningMaxRequestMetricsHistoryDays: EnvOrDefaultInt(METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS_ENVIRONMENT_KEY, DEFAULT_METRIC_PRUNING_MAX_REQUEST_METRICS_HISTORY_DAYS),
	}
}
