package agent

import (
	"context"
	"math"
	"math/rand"

	"github.com/agrifed/agrifed/pkg/fl"
)

// Trainer produces a local parameter update starting from the current
// global parameters. Implementations own whatever data and model the
// client trains on.
type Trainer interface {
	Train(ctx context.Context, base fl.Params) (fl.Params, map[string]float64, error)
}

// simulatedTrainer perturbs the adopted global parameters with seeded
// Gaussian noise. It stands in for a real on-device training step and
// keeps multi-client runs reproducible.
type simulatedTrainer struct {
	rng   *rand.Rand
	scale float64
	init  fl.Params
}

// NewSimulatedTrainer builds a trainer seeded for reproducibility. The
// init schema is used for the first round, before any global model
// exists.
func NewSimulatedTrainer(seed int64, scale float64, init fl.Params) Trainer {
	if scale <= 0 {
		scale = 0.1
	}

	return &simulatedTrainer{
		rng:   rand.New(rand.NewSource(seed)),
		scale: scale,
		init:  init,
	}
}

func (t *simulatedTrainer) Train(ctx context.Context, base fl.Params) (fl.Params, map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if len(base) == 0 {
		base = t.init
	}
	if len(base) == 0 {
		return nil, nil, fl.ErrEmptyInput
	}

	trained := base.Clone()
	var drift float64
	for _, vec := range trained {
		for i := range vec {
			step := t.rng.NormFloat64() * t.scale
			vec[i] += step
			drift += math.Abs(step)
		}
	}

	metrics := map[string]float64{
		"loss":     drift,
		"accuracy": 1 / (1 + drift),
	}

	return trained, metrics, nil
}
