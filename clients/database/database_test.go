package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"
)

func TestUnitTestMigrateNoDatabase(t *testing.T) {
	migrations, err := Migrate(context.Background(), nil, migrate.Migrations{}, nil)
	require.ErrorIs(t, err, ErrDatabaseNotConfigured)
	require.Empty(t, *migrations)
}
