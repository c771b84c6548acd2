//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
	"github.com/davidleathers/gstbooks/internal/domain/reconciliation"
	"github.com/davidleathers/gstbooks/internal/domain/values"
	"github.com/davidleathers/gstbooks/internal/infrastructure/config"
	"github.com/davidleathers/gstbooks/internal/infrastructure/database"
	"github.com/davidleathers/gstbooks/internal/testutil/containers"
)

func setupRepository(t *testing.T) *ReconciliationRepository {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	pg, err := containers.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	migrator, err := database.NewMigrator(pg.ConnectionString, logger)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(0))
	require.NoError(t, migrator.Close())

	pool, err := database.NewPool(ctx, &config.DatabaseConfig{URL: pg.ConnectionString, MaxOpenConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewReconciliationRepository(pool)
}

func TestReconciliationRepository(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)
	credID := uuid.New()

	req, err := reconciliation.NewRequest(credID, "0924", "2024-25", nil, false)
	require.NoError(t, err)

	older, err := reconciliation.ParseResult(req, []byte(`{"summary":{"matched":1,"partial":0,"missingInBooks":0,"missingInReturn":0,"itcLost":"0"},"results":[{"n":1}]}`),
		time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	newer, err := reconciliation.ParseResult(req, []byte(`{"summary":{"matched":4,"partial":2,"missingInBooks":1,"missingInReturn":0,"itcLost":"980.25"},"results":[{"n":1},{"n":2}]}`),
		time.Date(2024, 10, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, repo.SaveResult(ctx, older))
	require.NoError(t, repo.SaveResult(ctx, newer))

	t.Run("latest wins", func(t *testing.T) {
		got, err := repo.LatestResult(ctx, credID, req.Period)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, got.ID)
		assert.Equal(t, 4, got.Summary.Matched)
		assert.Equal(t, "980.25", got.Summary.ITCLost.StringFixed(2))
		assert.Len(t, got.Entries, 2)
		assert.Equal(t, "2024-25", got.FinancialYear.String())
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		err := repo.SaveResult(ctx, newer)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})

	t.Run("unknown period is not found", func(t *testing.T) {
		period, err := values.NewReturnPeriod("0824")
		require.NoError(t, err)
		_, err = repo.LatestResult(ctx, credID, period)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}
