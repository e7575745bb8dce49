package modelstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/modelstore"
)

func model(version uint64) fl.GlobalModel {
	return fl.GlobalModel{
		Version:   version,
		Params:    fl.Params{"w": {float64(version)}},
		CreatedAt: time.Now().UTC(),
	}
}

func TestEmptyStore(t *testing.T) {
	t.Parallel()
	store, err := modelstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Current(context.Background())
	assert.ErrorIs(t, err, modelstore.ErrNoModel)
}

func TestAppendAndCurrent(t *testing.T) {
	t.Parallel()
	store, err := modelstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, model(1)))
	require.NoError(t, store.Append(ctx, model(2)))
	require.NoError(t, store.Append(ctx, model(3)))

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), current.Version)
	assert.Equal(t, fl.Params{"w": {3}}, current.Params)

	versions, err := store.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, versions)
}

func TestAppendStaleVersion(t *testing.T) {
	t.Parallel()
	store, err := modelstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, model(2)))
	assert.ErrorIs(t, store.Append(ctx, model(2)), modelstore.ErrStaleVersion)
	assert.ErrorIs(t, store.Append(ctx, model(1)), modelstore.ErrStaleVersion)
}

func TestVersionLookup(t *testing.T) {
	t.Parallel()
	store, err := modelstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, model(1)))
	require.NoError(t, store.Append(ctx, model(2)))

	got, err := store.Version(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, fl.Params{"w": {1}}, got.Params)

	_, err = store.Version(ctx, 9)
	assert.ErrorIs(t, err, modelstore.ErrVersionNotFound)
}

func TestReopenPersists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	store, err := modelstore.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, model(1)))
	require.NoError(t, store.Append(ctx, model(2)))
	require.NoError(t, store.Close())

	store, err = modelstore.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), current.Version)
}
