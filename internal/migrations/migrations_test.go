package migrations

import (
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/require"
)

func TestDriverURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/pricing?sslmode=disable", DriverURL("postgres://u:p@db:5432/pricing?sslmode=disable"))
	require.Equal(t, "pgx5://db/pricing", DriverURL("postgresql://db/pricing"))
	require.Equal(t, "pgx5://db/pricing", DriverURL("pgx5://db/pricing"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(files, "sql/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(files, "sql/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))

	src, err := iofs.New(files, "sql")
	require.NoError(t, err)
	first, err := src.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), first)
	next, err := src.Next(first)
	require.NoError(t, err)
	require.Equal(t, uint(2), next)
}
