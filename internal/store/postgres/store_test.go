package postgres

import (
	"os"
	"testing"

	"github.com/dkeye/Interview/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) storetest.Store {
		s, err := NewStore(t.Context(), dsn)
		require.NoError(t, err)
		_, err = s.pool.Exec(t.Context(), `TRUNCATE interview_sessions`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
