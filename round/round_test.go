package round_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrifed/agrifed/round"
)

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, round.Collecting.Terminal())
	assert.False(t, round.Aggregating.Terminal())
	assert.True(t, round.Completed.Terminal())
	assert.True(t, round.Failed.Terminal())
}

func TestStateJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(round.Round{ID: 1, State: round.Collecting})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"collecting"`)
}

func TestParseState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		expected round.State
		ok       bool
	}{
		{in: "collecting", expected: round.Collecting, ok: true},
		{in: "aggregating", expected: round.Aggregating, ok: true},
		{in: "completed", expected: round.Completed, ok: true},
		{in: "failed", expected: round.Failed, ok: true},
		{in: "bogus", expected: round.Collecting, ok: false},
		{in: "", expected: round.Collecting, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := round.ParseState(tt.in)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestRoundJSONRoundTrip(t *testing.T) {
	t.Parallel()

	// Rounds cross the HTTP API, so decoding must invert encoding for
	// every state.
	for _, state := range []round.State{round.Collecting, round.Aggregating, round.Completed, round.Failed} {
		t.Run(state.String(), func(t *testing.T) {
			t.Parallel()
			orig := round.Round{ID: 7, State: state, Cohort: []string{"a", "b"}}

			data, err := json.Marshal(orig)
			require.NoError(t, err)

			var got round.Round
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, orig.ID, got.ID)
			assert.Equal(t, state, got.State)
			assert.Equal(t, orig.Cohort, got.Cohort)
		})
	}
}

func TestParticipant(t *testing.T) {
	t.Parallel()

	r := round.Round{Cohort: []string{"a", "b"}}
	assert.True(t, r.Participant("a"))
	assert.False(t, r.Participant("z"))
}
