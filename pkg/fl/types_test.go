package fl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrifed/agrifed/pkg/fl"
)

func TestParseParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      map[string]any
		expected fl.Params
		err      error
	}{
		{
			name:     "scalar becomes single-element vector",
			raw:      map[string]any{"bias": 0.5},
			expected: fl.Params{"bias": {0.5}},
		},
		{
			name:     "vector passes through",
			raw:      map[string]any{"weights": []any{1.0, 2.0, 3.0}},
			expected: fl.Params{"weights": {1, 2, 3}},
		},
		{
			name: "mixed scalars and vectors",
			raw:  map[string]any{"weights": []any{1.0, 2.0}, "bias": 3.0},
			expected: fl.Params{
				"weights": {1, 2},
				"bias":    {3},
			},
		},
		{
			name: "empty payload rejected",
			raw:  map[string]any{},
			err:  fl.ErrEmptyInput,
		},
		{
			name: "unnamed parameter rejected",
			raw:  map[string]any{"": 1.0},
			err:  fl.ErrUnnamedParam,
		},
		{
			name: "non-numeric value rejected",
			raw:  map[string]any{"weights": "abc"},
			err:  fl.ErrUnnamedParam,
		},
		{
			name: "non-numeric vector element rejected",
			raw:  map[string]any{"weights": []any{1.0, "x"}},
			err:  fl.ErrUnnamedParam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			params, err := fl.ParseParams(tt.raw)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, params)
		})
	}
}

func TestParamsSameSchema(t *testing.T) {
	t.Parallel()

	base := fl.Params{"w": {1, 2}, "b": {3}}

	assert.True(t, base.SameSchema(fl.Params{"w": {9, 9}, "b": {9}}))
	assert.False(t, base.SameSchema(fl.Params{"w": {9, 9}}))
	assert.False(t, base.SameSchema(fl.Params{"w": {9}, "b": {9}}))
	assert.False(t, base.SameSchema(fl.Params{"w": {9, 9}, "x": {9}}))
}

func TestParamsClone(t *testing.T) {
	t.Parallel()

	orig := fl.Params{"w": {1, 2}}
	clone := orig.Clone()
	clone["w"][0] = 99

	assert.Equal(t, 1.0, orig["w"][0])
}
