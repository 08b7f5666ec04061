package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/internal/auth/store/storetest"
)

// startPostgres runs a throwaway postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "authflow",
			"POSTGRES_PASSWORD": "authflow",
			"POSTGRES_DB":       "authflow",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("postgres://authflow:authflow@%s:%s/authflow?sslmode=disable", host, mappedPort.Port())
}

func TestStore(t *testing.T) {
	dsn := startPostgres(t)

	// One container, schema reset between subtests.
	storetest.RunStore(t, func(t *testing.T) store.Store {
		s, err := NewStore(context.Background(), dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		_, err = s.DB().Exec(`DROP SCHEMA public CASCADE; CREATE SCHEMA public;`)
		require.NoError(t, err)
		require.NoError(t, s.ApplyMigrations())
		return s
	})
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	require.True(t, Dialect.NumberedParams)
	require.False(t, Dialect.IsUniqueViolation(fmt.Errorf("plain")))
}
