package store

import (
	stdsql "database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coup-league/coupd/pkg/database"
)

// newTestClient spins up a disposable PostgreSQL container (or, in CI,
// connects to the external service set via CI_DATABASE_URL), applies the
// embedded migrations via golang-migrate, and returns a *database.Client
// torn down when the test ends.
func newTestClient(t *testing.T) *database.Client {
	t.Helper()
	ctx := t.Context()

	var connStr string
	if ci := os.Getenv("CI_DATABASE_URL"); ci != "" {
		connStr = ci
	} else {
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("coup_test"),
			postgres.WithUsername("coup_test"),
			postgres.WithPassword("coup_test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate postgres container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	client := database.NewClientFromDB(db)
	require.NoError(t, client.Migrate())

	t.Cleanup(func() { _ = client.Close() })
	return client
}
