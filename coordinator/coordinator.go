package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/round"
)

var (
	// ErrCapacity rejects registration of an unknown client once the
	// registry is full. Re-registration of a known client always works.
	ErrCapacity = errors.New("client registry is at capacity")

	ErrNotRegistered    = errors.New("client is not registered")
	ErrNotParticipant   = errors.New("client is not part of the round cohort")
	ErrStale            = errors.New("round is no longer collecting submissions")
	ErrRoundNotActive   = errors.New("no such active round")
	ErrRoundInProgress  = errors.New("a round is already in progress")
	ErrNotEnoughClients = errors.New("not enough active clients to open a round")
)

// Config bounds the coordinator. Zero values fall back to the defaults
// below.
type Config struct {
	MaxClients     int           `env:"MAX_CLIENTS"     envDefault:"100"`
	MinCohort      int           `env:"MIN_COHORT"      envDefault:"3"`
	MaxCohort      int           `env:"MAX_COHORT"      envDefault:"20"`
	RoundTimeout   time.Duration `env:"ROUND_TIMEOUT"   envDefault:"1h"`
	LivenessWindow time.Duration `env:"LIVENESS_WINDOW" envDefault:"1h"`
	ScheduleEvery  time.Duration `env:"SCHEDULE_EVERY"  envDefault:"1m"`
	SyncEvery      time.Duration `env:"SYNC_EVERY"      envDefault:"1m"`
}

func (c Config) withDefaults() Config {
	if c.MaxClients <= 0 {
		c.MaxClients = 100
	}
	if c.MinCohort <= 0 {
		c.MinCohort = 3
	}
	if c.MaxCohort < c.MinCohort {
		c.MaxCohort = c.MinCohort
	}
	if c.RoundTimeout <= 0 {
		c.RoundTimeout = time.Hour
	}
	if c.LivenessWindow <= 0 {
		c.LivenessWindow = time.Hour
	}
	if c.ScheduleEvery <= 0 {
		c.ScheduleEvery = time.Minute
	}
	if c.SyncEvery <= 0 {
		c.SyncEvery = time.Minute
	}

	return c
}

// Poll is the answer to a heartbeat: what the client should do next.
type Poll struct {
	ClientID       string        `json:"client_id"`
	Status         client.Status `json:"status"`
	CurrentRoundID *uint64       `json:"current_round_id"`
	IsParticipant  bool          `json:"is_participant"`
	Submitted      bool          `json:"submitted"`
	ModelVersion   uint64        `json:"model_version"`
}

// Summary is the operator-facing view of coordination progress.
type Summary struct {
	TotalClients    uint64  `json:"total_clients"`
	ActiveClients   uint64  `json:"active_clients"`
	CurrentRoundID  *uint64 `json:"current_round_id"`
	RoundsCompleted uint64  `json:"total_rounds_completed"`
	RoundsFailed    uint64  `json:"total_rounds_failed"`
	ModelVersion    uint64  `json:"model_version"`
}

type Service interface {
	// RegisterClient inserts a new client record or refreshes an
	// existing one's metadata.
	RegisterClient(ctx context.Context, c client.Client) (client.Client, error)

	// Heartbeat updates the client's last-seen time, status and
	// adopted model version, and reports the current round from the
	// client's point of view.
	Heartbeat(ctx context.Context, clientID string, status client.Status, modelVersion uint64) (Poll, error)

	GetClient(ctx context.Context, clientID string) (client.Client, error)
	ListClients(ctx context.Context, offset, limit uint64) (client.Page, error)

	// OpenRound evaluates the registry and opens a round on demand.
	// The scheduler cadence calls the same path.
	OpenRound(ctx context.Context) (round.Round, error)

	GetRound(ctx context.Context, roundID uint64) (round.Round, error)
	ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error)

	// Submit records one cohort member's trained parameters for a
	// collecting round.
	Submit(ctx context.Context, sub fl.Submission) error

	GlobalModel(ctx context.Context) (fl.GlobalModel, error)
	ModelVersion(ctx context.Context, version uint64) (fl.GlobalModel, error)

	Status(ctx context.Context) (Summary, error)

	// Run drives the scheduler cadence and the backend sync cycle
	// until ctx is cancelled.
	Run(ctx context.Context) error
}
