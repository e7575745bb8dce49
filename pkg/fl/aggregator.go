package fl

import (
	"fmt"
	"sort"
)

// FedAvgAggregator computes the dataset-size-weighted arithmetic mean of
// client parameter vectors: result[k] = Σ(weight_i × value_i[k]) / Σ(weight_i).
// The weight is the client's self-reported dataset size and is not
// independently verified.
type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

// Aggregate reduces submissions into a single parameter map plus a
// weighted mean of the reported metrics. Submissions are sorted by
// client ID first so floating-point summation order, and therefore the
// result, does not depend on arrival order.
func (f *FedAvgAggregator) Aggregate(submissions []Submission) (Params, map[string]float64, error) {
	if len(submissions) == 0 {
		return nil, nil, ErrEmptyInput
	}

	ordered := make([]Submission, len(submissions))
	copy(ordered, submissions)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ClientID < ordered[j].ClientID
	})

	schema := ordered[0].Params
	for _, s := range ordered[1:] {
		if !schema.SameSchema(s.Params) {
			return nil, nil, fmt.Errorf("%w: client %s", ErrSchemaMismatch, s.ClientID)
		}
	}

	var totalWeight float64
	for _, s := range ordered {
		totalWeight += float64(s.DatasetSize)
	}
	if totalWeight == 0 {
		return nil, nil, ErrZeroWeight
	}

	result := make(Params, len(schema))
	for name, vec := range schema {
		result[name] = make([]float64, len(vec))
	}
	for _, s := range ordered {
		w := float64(s.DatasetSize)
		for name, vec := range s.Params {
			acc := result[name]
			for i, v := range vec {
				acc[i] += v * w
			}
		}
	}
	for _, vec := range result {
		for i := range vec {
			vec[i] /= totalWeight
		}
	}

	metrics := aggregateMetrics(ordered, totalWeight)

	return result, metrics, nil
}

// aggregateMetrics folds the clients' reported training metrics into a
// weighted mean snapshot. Metrics are advisory, so a key missing from
// some submissions is averaged over the submissions that report it.
func aggregateMetrics(submissions []Submission, totalWeight float64) map[string]float64 {
	sums := make(map[string]float64)
	weights := make(map[string]float64)
	for _, s := range submissions {
		w := float64(s.DatasetSize)
		for name, v := range s.Metrics {
			sums[name] += v * w
			weights[name] += w
		}
	}
	if len(sums) == 0 {
		return nil
	}

	out := make(map[string]float64, len(sums))
	for name, sum := range sums {
		if weights[name] > 0 {
			out[name] = sum / weights[name]
		}
	}

	return out
}
