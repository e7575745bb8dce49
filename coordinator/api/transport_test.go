package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/coordinator/api"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/modelstore"
	"github.com/agrifed/agrifed/pkg/scheduler"
	"github.com/agrifed/agrifed/pkg/sdk"
	"github.com/agrifed/agrifed/pkg/storage"
	"github.com/agrifed/agrifed/round"
)

func newTestServer(t *testing.T, cfg coordinator.Config) (*httptest.Server, sdk.SDK) {
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

	srv := httptest.NewServer(api.MakeHandler(svc, slog.Default(), "test-instance"))
	t.Cleanup(srv.Close)

	return srv, sdk.NewSDK(sdk.Config{CoordinatorURL: srv.URL})
}

func registerN(t *testing.T, s sdk.SDK, n int) []string {
	t.Helper()

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("farm-%02d", i)
		_, err := s.Register(sdk.Registration{ClientID: ids[i], DatasetSize: 100})
		require.NoError(t, err)
	}

	return ids
}

func TestRegisterOverHTTP(t *testing.T) {
	t.Parallel()
	_, s := newTestServer(t, coordinator.Config{MinCohort: 2, MaxCohort: 5})

	c, err := s.Register(sdk.Registration{ClientID: "farm-1", Name: "north", DatasetSize: 100})
	require.NoError(t, err)
	assert.Equal(t, "farm-1", c.ID)
	assert.Equal(t, client.Active, c.Status)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, coordinator.Config{MinCohort: 2, MaxCohort: 5})

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{
			name: "missing client id",
			body: map[string]any{"dataset_size": 100},
			code: http.StatusBadRequest,
		},
		{
			name: "zero dataset size",
			body: map[string]any{"client_id": "farm-1"},
			code: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := json.Marshal(tt.body)
			require.NoError(t, err)

			resp, err := http.Post(srv.URL+"/clients", "application/json", bytes.NewReader(data))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestRegisterCapacityConflict(t *testing.T) {
	t.Parallel()
	_, s := newTestServer(t, coordinator.Config{MaxClients: 2, MinCohort: 2, MaxCohort: 5})

	registerN(t, s, 2)

	_, err := s.Register(sdk.Registration{ClientID: "farm-99", DatasetSize: 100})
	var sdkErr *sdk.Error
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, http.StatusConflict, sdkErr.StatusCode)
	assert.Equal(t, "Capacity", sdkErr.Reason)
}

func TestHeartbeatUnknownClient(t *testing.T) {
	t.Parallel()
	_, s := newTestServer(t, coordinator.Config{MinCohort: 2, MaxCohort: 5})

	_, err := s.SendHeartbeat("ghost", sdk.Heartbeat{Status: "active"})
	var sdkErr *sdk.Error
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, http.StatusNotFound, sdkErr.StatusCode)
	assert.Equal(t, "NotRegistered", sdkErr.Reason)
}

func TestSubmitPositionalPayloadRejected(t *testing.T) {
	t.Parallel()
	srv, s := newTestServer(t, coordinator.Config{MinCohort: 2, MaxCohort: 5})

	registerN(t, s, 3)
	r, err := s.OpenRound()
	require.NoError(t, err)

	// Parameters must be a named object, not a bare array.
	body := fmt.Sprintf(`{"client_id":%q,"parameters":[1,2,3],"dataset_size":100}`, r.Cohort[0])
	resp, err := http.Post(
		fmt.Sprintf("%s/rounds/%d/submissions", srv.URL, r.ID),
		"application/json",
		bytes.NewReader([]byte(body)),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFullRoundOverHTTP(t *testing.T) {
	t.Parallel()
	_, s := newTestServer(t, coordinator.Config{MinCohort: 3, MaxCohort: 5})

	registerN(t, s, 5)

	r, err := s.OpenRound()
	require.NoError(t, err)
	assert.Equal(t, round.Collecting, r.State)
	require.Len(t, r.Cohort, 5)

	for _, id := range r.Cohort {
		poll, err := s.SendHeartbeat(id, sdk.Heartbeat{Status: "training"})
		require.NoError(t, err)
		assert.True(t, poll.IsParticipant)

		err = s.Submit(r.ID, sdk.Update{
			ClientID:    id,
			Parameters:  fl.Params{"weights": {0.2, 0.4}, "bias": {1}},
			DatasetSize: 100,
		})
		require.NoError(t, err)
	}

	model, err := s.GlobalModel()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Version)
	assert.InDelta(t, 0.2, model.Params["weights"][0], 1e-9)

	done, err := s.GetRound(r.ID)
	require.NoError(t, err)
	assert.Equal(t, round.Completed, done.State)

	summary, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.RoundsCompleted)
	assert.Equal(t, uint64(1), summary.ModelVersion)
}

func TestSubmitRejections(t *testing.T) {
	t.Parallel()
	_, s := newTestServer(t, coordinator.Config{MinCohort: 2, MaxCohort: 3})

	registerN(t, s, 5)
	r, err := s.OpenRound()
	require.NoError(t, err)
	require.Len(t, r.Cohort, 3)

	var outsider string
	for _, id := range registerN(t, s, 5) {
		if !r.Participant(id) {
			outsider = id

			break
		}
	}
	require.NotEmpty(t, outsider)

	err = s.Submit(r.ID, sdk.Update{
		ClientID:    outsider,
		Parameters:  fl.Params{"w": {1}},
		DatasetSize: 100,
	})
	var sdkErr *sdk.Error
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, http.StatusForbidden, sdkErr.StatusCode)
	assert.Equal(t, "NotParticipant", sdkErr.Reason)

	err = s.Submit(r.ID+10, sdk.Update{
		ClientID:    r.Cohort[0],
		Parameters:  fl.Params{"w": {1}},
		DatasetSize: 100,
	})
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, http.StatusNotFound, sdkErr.StatusCode)
	assert.Equal(t, "RoundNotActive", sdkErr.Reason)
}

func TestModelBeforeFirstRound(t *testing.T) {
	t.Parallel()
	_, s := newTestServer(t, coordinator.Config{MinCohort: 2, MaxCohort: 3})

	_, err := s.GlobalModel()
	var sdkErr *sdk.Error
	require.ErrorAs(t, err, &sdkErr)
	assert.Equal(t, http.StatusNotFound, sdkErr.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, coordinator.Config{MinCohort: 2, MaxCohort: 3})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
