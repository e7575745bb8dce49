package scheduler

import (
	"math/rand"
	"sort"

	"github.com/agrifed/agrifed/client"
)

type uniformRandom struct {
	rng *rand.Rand
}

// NewUniformRandom returns a Selector that draws a uniform random sample
// without replacement of size min(maxCohort, len(candidates)). The random
// source is injected so tests can pin the seed and assert exact cohort
// membership.
func NewUniformRandom(src rand.Source) Selector {
	return &uniformRandom{rng: rand.New(src)}
}

func (u *uniformRandom) SelectCohort(candidates []client.Client, maxCohort int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, ErrNoClients
	}

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}
	// Candidate order comes from map iteration upstream, so fix it
	// before shuffling to keep selection a pure function of the seed.
	sort.Strings(ids)

	u.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	n := maxCohort
	if n > len(ids) {
		n = len(ids)
	}

	return ids[:n], nil
}
