// package postgres implements the metrics database on postgres using bun
package postgres

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"

	"github.com/kava-labs/odata-batch-service/clients/database"
	"github.com/kava-labs/odata-batch-service/logging"
)

var (
	ErrEmptyEndpointURL  = errors.New("database endpoint url must not be empty")
	ErrEmptyUsername     = errors.New("database username must not be empty")
	ErrEmptyDatabaseName = errors.New("database name must not be empty")
)

// DatabaseConfig contains values for creating a
// new connection to a postgres database
type DatabaseConfig struct {
	DatabaseName                     string
	DatabaseEndpointURL              string
	DatabaseUsername                 string
	DatabasePassword                 string
	ReadTimeoutSeconds               int64
	WriteTimeoutSeconds              int64
	DatabaseMaxIdleConnections       int64
	DatabaseConnectionMaxIdleSeconds int64
	DatabaseMaxOpenConnections       int64
	SSLEnabled                       bool
	QueryLoggingEnabled              bool
	Logger                           *logging.ServiceLogger
}

// Client wraps a connection to a postgres database
type Client struct {
	db     *bun.DB
	logger *logging.ServiceLogger
}

var _ database.MetricsDatabase = (*Client)(nil)

// NewClient returns a new connection to the specified
// postgres data and error (if any)
func NewClient(config DatabaseConfig) (*Client, error) {
	if config.DatabaseEndpointURL == "" {
		return nil, ErrEmptyEndpointURL
	}
	if config.DatabaseUsername == "" {
		return nil, ErrEmptyUsername
	}
	if config.DatabaseName == "" {
		return nil, ErrEmptyDatabaseName
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	options := []pgdriver.Option{
		pgdriver.WithAddr(config.DatabaseEndpointURL),
		pgdriver.WithUser(config.DatabaseUsername),
		pgdriver.WithPassword(config.DatabasePassword),
		pgdriver.WithDatabase(config.DatabaseName),
		pgdriver.WithReadTimeout(time.Second * time.Duration(config.ReadTimeoutSeconds)),
		pgdriver.WithWriteTimeout(time.Second * time.Duration(config.WriteTimeoutSeconds)),
	}

	if config.SSLEnabled {
		options = append(options, pgdriver.WithTLSConfig(&tls.Config{InsecureSkipVerify: false}))
	} else {
		options = append(options, pgdriver.WithInsecure(true))
	}

	pgOptions := pgdriver.NewConnector(options...)

	logger.Debug().Msg(fmt.Sprintf("creating database client for %s/%s", config.DatabaseEndpointURL, config.DatabaseName))

	// connect to the database
	sqldb := sql.OpenDB(pgOptions)

	// configure connection limits
	// https://go.dev/doc/database/manage-connections#connection_pool_properties
	sqldb.SetMaxIdleConns(int(config.DatabaseMaxIdleConnections))
	sqldb.SetConnMaxIdleTime(time.Second * time.Duration(config.DatabaseConnectionMaxIdleSeconds))
	sqldb.SetMaxOpenConns(int(config.DatabaseMaxOpenConnections))

	db := bun.NewDB(sqldb, pgdialect.New())

	// set up logging on database if requested
	if config.QueryLoggingEnabled {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return &Client{
		db:     db,
		logger: logger,
	}, nil
}

// HealthCheck returns an error if the database can not
// be connected to and queried, nil otherwise
func (c *Client) HealthCheck() error {
	if c.db == nil {
		return database.ErrDatabaseNotConfigured
	}

	return c.db.Ping()
}

// Migrate runs any migrations not yet applied to the database
func (c *Client) Migrate(ctx context.Context, migrations migrate.Migrations) (*migrate.MigrationSlice, error) {
	return database.Migrate(ctx, c.db, migrations, c.logger)
}

// Close closes the connections to the database
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
