package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/pkg/storage"
)

func newTestRegistry(maxClients int, window time.Duration) *registry {
	return newRegistry(storage.NewInMemoryStorage(), maxClients, window)
}

func TestRegisterAndGet(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(10, time.Hour)
	ctx := context.Background()

	c, err := r.Register(ctx, client.Client{ID: "farm-1", Name: "north", DatasetSize: 100})
	require.NoError(t, err)
	assert.Equal(t, client.Active, c.Status)
	assert.False(t, c.RegisteredAt.IsZero())

	got, err := r.Get(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestRegisterRepeatRefreshes(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(10, time.Hour)
	ctx := context.Background()

	_, err := r.Register(ctx, client.Client{ID: "farm-1", DatasetSize: 100})
	require.NoError(t, err)

	c, err := r.Register(ctx, client.Client{ID: "farm-1", DatasetSize: 250})
	require.NoError(t, err)
	assert.Equal(t, uint64(250), c.DatasetSize)

	total, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
}

func TestRegisterCapacity(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(2, time.Hour)
	ctx := context.Background()

	for i := range 2 {
		_, err := r.Register(ctx, client.Client{ID: fmt.Sprintf("farm-%d", i), DatasetSize: 10})
		require.NoError(t, err)
	}

	_, err := r.Register(ctx, client.Client{ID: "farm-9", DatasetSize: 10})
	assert.ErrorIs(t, err, ErrCapacity)

	// Known IDs still re-register at capacity.
	_, err = r.Register(ctx, client.Client{ID: "farm-0", DatasetSize: 10})
	assert.NoError(t, err)
}

func TestHeartbeatUnknown(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(10, time.Hour)

	_, err := r.Heartbeat(context.Background(), "ghost", client.Active, 0)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestHeartbeatModelVersionMonotonic(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(10, time.Hour)
	ctx := context.Background()

	_, err := r.Register(ctx, client.Client{ID: "farm-1", DatasetSize: 10})
	require.NoError(t, err)

	c, err := r.Heartbeat(ctx, "farm-1", client.Active, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), c.ModelVersion)

	// A stale heartbeat cannot roll the adopted version back.
	c, err = r.Heartbeat(ctx, "farm-1", client.Active, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), c.ModelVersion)
}

func TestActiveLivenessWindow(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(10, time.Hour)
	ctx := context.Background()

	base := time.Now()
	r.now = func() time.Time { return base }

	_, err := r.Register(ctx, client.Client{ID: "fresh", DatasetSize: 10})
	require.NoError(t, err)
	_, err = r.Register(ctx, client.Client{ID: "stale", DatasetSize: 10})
	require.NoError(t, err)

	// Only fresh heartbeats again, two hours later.
	r.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = r.Heartbeat(ctx, "fresh", client.Active, 0)
	require.NoError(t, err)

	active, err := r.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "fresh", active[0].ID)
}

func TestActiveExcludesInactiveStatus(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(10, time.Hour)
	ctx := context.Background()

	_, err := r.Register(ctx, client.Client{ID: "farm-1", DatasetSize: 10})
	require.NoError(t, err)
	_, err = r.Heartbeat(ctx, "farm-1", client.Inactive, 0)
	require.NoError(t, err)

	active, err := r.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSetStatusSkipsMissing(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(10, time.Hour)
	ctx := context.Background()

	_, err := r.Register(ctx, client.Client{ID: "farm-1", DatasetSize: 10})
	require.NoError(t, err)

	r.SetStatus(ctx, []string{"farm-1", "ghost"}, client.Training)

	c, err := r.Get(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, client.Training, c.Status)
}
