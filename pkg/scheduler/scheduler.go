package scheduler

import (
	"errors"

	"github.com/agrifed/agrifed/client"
)

var ErrNoClients = errors.New("no clients were provided")

// Selector picks the cohort for a training round from the currently
// active clients. Implementations must not mutate the candidate slice.
type Selector interface {
	SelectCohort(candidates []client.Client, maxCohort int) ([]string, error)
}
