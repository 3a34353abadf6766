package database

import "errors"

var ErrDatabaseNotConfigured = errors.New("metrics database is not configured")
