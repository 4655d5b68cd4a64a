package tagreader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterDiscover(t *testing.T) {
	t.Run("registered worker is discoverable", func(t *testing.T) {
		require.NoError(t, Register("test-worker-rd", 45678))
		defer Unregister("test-worker-rd")

		port, err := Discover("test-worker-rd", time.Second)
		require.NoError(t, err)
		assert.Equal(t, 45678, port)
	})

	t.Run("unknown worker times out", func(t *testing.T) {
		_, err := Discover("test-worker-missing", 200*time.Millisecond)
		assert.ErrorIs(t, err, ErrWorkerNotFound)
	})

	t.Run("unregister removes the entry", func(t *testing.T) {
		require.NoError(t, Register("test-worker-gone", 45679))
		require.NoError(t, Unregister("test-worker-gone"))

		_, err := Discover("test-worker-gone", 200*time.Millisecond)
		assert.ErrorIs(t, err, ErrWorkerNotFound)
	})
}

func TestRegistry_List(t *testing.T) {
	t.Run("lists registered workers", func(t *testing.T) {
		require.NoError(t, Register("test-worker-list", 45680))
		defer Unregister("test-worker-list")

		workers, err := ListWorkers()
		require.NoError(t, err)

		info, ok := workers["test-worker-list"]
		require.True(t, ok)
		assert.Equal(t, 45680, info.Port)
		assert.NotZero(t, info.PID)
		assert.False(t, info.StartTime.IsZero())
	})
}
