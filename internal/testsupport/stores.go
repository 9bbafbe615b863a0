// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
)

// PostgresDSNEnv names the variable that opts the postgres engine into tests.
const PostgresDSNEnv = "FEEDING_TEST_PG_DSN"

// Logger returns a logger quiet enough for test output.
func Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

// Stores yields a fresh store for every available engine, keyed by engine
// name. Stores are closed when the test finishes.
func Stores(t *testing.T) iter.Seq2[string, repository.Store] {
	t.Helper()

	return func(yield func(string, repository.Store) bool) {
		engines := []repository.DatabaseType{
			repository.DatabaseTypeMemory,
			repository.DatabaseTypeBadger,
			repository.DatabaseTypeBolt,
		}
		if os.Getenv(PostgresDSNEnv) != "" {
			engines = append(engines, repository.DatabaseTypePostgres)
		}

		for _, engine := range engines {
			store := NewStore(t, engine)
			if !yield(string(engine), store) {
				return
			}
		}
	}
}

// NewStore opens a single store of the given engine.
func NewStore(t *testing.T, engine repository.DatabaseType) repository.Store {
	t.Helper()

	opts := repository.Options{Type: engine, Path: filepath.Join(t.TempDir(), "feeding.db")}
	if engine == repository.DatabaseTypePostgres {
		opts.DSN = os.Getenv(PostgresDSNEnv)
	}

	store, err := repository.NewStore(context.Background(), opts, Logger())
	require.NoError(t, err)

	if engine == repository.DatabaseTypePostgres {
		truncatePostgres(t, store)
	}

	t.Cleanup(func() { store.Close() })
	return store
}

func truncatePostgres(t *testing.T, store repository.Store) {
	t.Helper()
	pg, ok := store.(*repository.PostgresStore)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pg.Truncate(ctx))
}
