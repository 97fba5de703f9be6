package postgres

import (
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molscore/pkg/errors"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationFiles, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	body, err := io.ReadAll(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS score_runs")

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	body, err = io.ReadAll(down)
	require.NoError(t, err)
	assert.Contains(t, string(body), "DROP TABLE IF EXISTS score_runs")

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
	up, _, err = src.ReadUp(next)
	require.NoError(t, err)
	body, err = io.ReadAll(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ADD COLUMN IF NOT EXISTS valid")
}

func TestMigrator_DownRejectsNonPositiveSteps(t *testing.T) {
	m := NewMigrator(PostgresConfig{Host: "localhost", Port: 5432, Database: "molscore"}, nil)
	for _, steps := range []int{0, -1} {
		err := m.Down(steps)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))
	}
}
