package locks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// needs a live server, e.g. REDIS_TEST_URL=redis://localhost:6379/15
func testRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "test:"+uuid.NewString())
}

func TestRedis_OwnerOnlyRelease(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()

	ok, err := r.TryAcquireLock(ctx, "job", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.ReleaseLock(ctx, "job", "b"))
	ok, err = r.TryAcquireLock(ctx, "job", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.ReleaseLock(ctx, "job", "a"))
	ok, err = r.TryAcquireLock(ctx, "job", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_AcquireWaitsForRelease(t *testing.T) {
	r := testRedis(t)
	release, err := r.Acquire(context.Background(), "vehicle:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = r.Acquire(ctx, "vehicle:1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	again, err := r.Acquire(context.Background(), "vehicle:1")
	require.NoError(t, err)
	again()
}

func TestNewRedis_Prefix(t *testing.T) {
	r := NewRedis(nil, " ")
	assert.Equal(t, "vehicle_tax:lock:vehicle:1", r.key("vehicle:1"))

	r = NewRedis(nil, "svc:")
	assert.Equal(t, "svc:job", r.key("job"))
}
