package fl

import (
	"fmt"
	"time"
)

// Params is a named parameter vector. Every value is a vector; scalar
// parameters are carried as a single-element slice. Payloads without
// parameter names are rejected at the API boundary, so a Params value
// always has an explicit schema.
type Params map[string][]float64

// Clone returns a deep copy.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		vc := make([]float64, len(v))
		copy(vc, v)
		c[k] = vc
	}

	return c
}

// SameSchema reports whether two parameter maps agree on the set of
// parameter names and on the length of every named vector.
func (p Params) SameSchema(o Params) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || len(v) != len(ov) {
			return false
		}
	}

	return true
}

// ParseParams normalizes a decoded JSON object into Params. Each value
// must be a number or an array of numbers; anything else fails.
func ParseParams(raw map[string]any) (Params, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}

	p := make(Params, len(raw))
	for k, v := range raw {
		if k == "" {
			return nil, fmt.Errorf("%w: unnamed parameter", ErrUnnamedParam)
		}
		switch val := v.(type) {
		case float64:
			p[k] = []float64{val}
		case []any:
			vec := make([]float64, len(val))
			for i, e := range val {
				f, ok := e.(float64)
				if !ok {
					return nil, fmt.Errorf("%w: parameter %q element %d is not a number", ErrUnnamedParam, k, i)
				}
				vec[i] = f
			}
			p[k] = vec
		default:
			return nil, fmt.Errorf("%w: parameter %q is not numeric", ErrUnnamedParam, k)
		}
	}

	return p, nil
}

// Submission is one client's trained parameters for a round. It is held
// only for the lifetime of its round and discarded once aggregated.
type Submission struct {
	RoundID     uint64             `json:"round_id"`
	ClientID    string             `json:"client_id"`
	Params      Params             `json:"parameters"`
	DatasetSize uint64             `json:"dataset_size"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	ReceivedAt  time.Time          `json:"received_at"`
}

// GlobalModel is a published aggregate. Exactly one version is current
// at a time; prior versions are append-only history.
type GlobalModel struct {
	Version   uint64             `json:"version"`
	Params    Params             `json:"parameters"`
	Metrics   map[string]float64 `json:"performance,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Aggregator combines client submissions into a single parameter map.
type Aggregator interface {
	Aggregate(submissions []Submission) (Params, map[string]float64, error)
}
