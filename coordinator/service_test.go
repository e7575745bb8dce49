package coordinator_test

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/modelstore"
	"github.com/agrifed/agrifed/pkg/scheduler"
	"github.com/agrifed/agrifed/pkg/storage"
	"github.com/agrifed/agrifed/round"
)

func newTestService(t *testing.T, cfg coordinator.Config) coordinator.Service {
	t.Helper()

	models, err := modelstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { models.Close() })

	svc, err := coordinator.NewService(
		cfg,
		storage.NewInMemoryStorage(),
		storage.NewInMemoryStorage(),
		models,
		scheduler.NewUniformRandom(rand.NewSource(1)),
		fl.NewFedAvgAggregator(),
		nil,
		"",
		"",
		slog.Default(),
	)
	require.NoError(t, err)

	return svc
}

func registerN(t *testing.T, svc coordinator.Service, n int) []string {
	t.Helper()
	ctx := context.Background()

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("farm-%02d", i)
		_, err := svc.RegisterClient(ctx, client.Client{
			ID:          ids[i],
			Name:        ids[i],
			DatasetSize: 100,
		})
		require.NoError(t, err)
	}

	return ids
}

func TestFullRoundLifecycle(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, coordinator.Config{MinCohort: 3, MaxCohort: 5})
	ctx := context.Background()

	registerN(t, svc, 5)

	r, err := svc.OpenRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, round.Collecting, r.State)
	require.Len(t, r.Cohort, 5)

	// Every cohort member trains the same vector, so the aggregate must
	// reproduce it exactly.
	for _, id := range r.Cohort {
		poll, err := svc.Heartbeat(ctx, id, client.Training, 0)
		require.NoError(t, err)
		assert.True(t, poll.IsParticipant)
		require.NotNil(t, poll.CurrentRoundID)

		err = svc.Submit(ctx, fl.Submission{
			RoundID:     *poll.CurrentRoundID,
			ClientID:    id,
			Params:      fl.Params{"weights": {0.25, 0.5}, "bias": {1}},
			DatasetSize: 100,
		})
		require.NoError(t, err)
	}

	done, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, round.Completed, done.State)
	assert.Equal(t, uint64(1), done.ModelVersion)

	model, err := svc.GlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Version)
	assert.InDelta(t, 0.25, model.Params["weights"][0], 1e-9)
	assert.InDelta(t, 0.5, model.Params["weights"][1], 1e-9)
	assert.InDelta(t, 1.0, model.Params["bias"][0], 1e-9)

	summary, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), summary.TotalClients)
	assert.Equal(t, uint64(1), summary.RoundsCompleted)
	assert.Equal(t, uint64(0), summary.RoundsFailed)
	assert.Nil(t, summary.CurrentRoundID)

	// The cohort is released back to active once the round settles.
	assert.Eventually(t, func() bool {
		c, err := svc.GetClient(ctx, r.Cohort[0])

		return err == nil && c.Status == client.Active
	}, time.Second, 10*time.Millisecond)
}

func TestOpenRoundNotEnoughClients(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, coordinator.Config{MinCohort: 3, MaxCohort: 5})

	registerN(t, svc, 2)

	_, err := svc.OpenRound(context.Background())
	assert.ErrorIs(t, err, coordinator.ErrNotEnoughClients)
}

func TestOpenRoundAlreadyRunning(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, coordinator.Config{MinCohort: 3, MaxCohort: 5})
	ctx := context.Background()

	registerN(t, svc, 5)

	_, err := svc.OpenRound(ctx)
	require.NoError(t, err)

	_, err = svc.OpenRound(ctx)
	assert.ErrorIs(t, err, coordinator.ErrRoundInProgress)
}

func TestSubmitUnregisteredClient(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, coordinator.Config{MinCohort: 3, MaxCohort: 5})
	ctx := context.Background()

	registerN(t, svc, 5)

	r, err := svc.OpenRound(ctx)
	require.NoError(t, err)

	err = svc.Submit(ctx, fl.Submission{
		RoundID:     r.ID,
		ClientID:    "ghost",
		Params:      fl.Params{"w": {1}},
		DatasetSize: 10,
	})
	assert.ErrorIs(t, err, coordinator.ErrNotRegistered)
}

func TestCohortStatusWhileTraining(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, coordinator.Config{MinCohort: 2, MaxCohort: 3})
	ctx := context.Background()

	registerN(t, svc, 5)

	r, err := svc.OpenRound(ctx)
	require.NoError(t, err)
	require.Len(t, r.Cohort, 3)

	for _, id := range r.Cohort {
		c, err := svc.GetClient(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, client.Training, c.Status)
	}
}

func TestVersionsStrictlyIncreasing(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, coordinator.Config{MinCohort: 2, MaxCohort: 2})
	ctx := context.Background()

	registerN(t, svc, 2)

	for want := uint64(1); want <= 3; want++ {
		r, err := svc.OpenRound(ctx)
		require.NoError(t, err)

		for _, id := range r.Cohort {
			err = svc.Submit(ctx, fl.Submission{
				RoundID:     r.ID,
				ClientID:    id,
				Params:      fl.Params{"w": {float64(want)}},
				DatasetSize: 50,
			})
			require.NoError(t, err)
		}

		model, err := svc.GlobalModel(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, model.Version)

		// Heartbeats carry the adoption back; registry clamps regressions.
		_, err = svc.Heartbeat(ctx, r.Cohort[0], client.Active, model.Version)
		require.NoError(t, err)
	}

	historical, err := svc.ModelVersion(ctx, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, historical.Params["w"][0], 1e-9)
}
