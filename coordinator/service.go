package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/modelstore"
	"github.com/agrifed/agrifed/pkg/mqtt"
	"github.com/agrifed/agrifed/pkg/scheduler"
	"github.com/agrifed/agrifed/pkg/storage"
	"github.com/agrifed/agrifed/round"
)

type service struct {
	cfg      Config
	registry *registry
	rounds   *roundManager
	selector scheduler.Selector
	models   *modelstore.Store
	bridge   *syncBridge
	logger   *slog.Logger
}

// NewService builds the coordinator. The pubsub and backendURL are
// optional: without them the coordinator still runs rounds, it just
// stops announcing them.
func NewService(cfg Config, clientsDB, roundsDB storage.Storage, models *modelstore.Store, selector scheduler.Selector, aggregator fl.Aggregator, pubsub mqtt.PubSub, backendURL, baseTopic string, logger *slog.Logger) (Service, error) {
	cfg = cfg.withDefaults()

	rounds, err := newRoundManager(roundsDB, models, aggregator, cfg.MinCohort, cfg.RoundTimeout, logger)
	if err != nil {
		return nil, err
	}

	svc := &service{
		cfg:      cfg,
		registry: newRegistry(clientsDB, cfg.MaxClients, cfg.LivenessWindow),
		rounds:   rounds,
		selector: selector,
		models:   models,
		logger:   logger,
	}

	svc.bridge = newSyncBridge(backendURL, pubsub, baseTopic, cfg.SyncEvery, svc.Status, logger)
	rounds.onTerminal = svc.roundFinished

	return svc, nil
}

func (svc *service) RegisterClient(ctx context.Context, c client.Client) (client.Client, error) {
	return svc.registry.Register(ctx, c)
}

func (svc *service) Heartbeat(ctx context.Context, clientID string, status client.Status, modelVersion uint64) (Poll, error) {
	c, err := svc.registry.Heartbeat(ctx, clientID, status, modelVersion)
	if err != nil {
		return Poll{}, err
	}

	roundID, participant, submitted := svc.rounds.PollFor(clientID)
	_, _, version := svc.rounds.Stats()

	return Poll{
		ClientID:       c.ID,
		Status:         c.Status,
		CurrentRoundID: roundID,
		IsParticipant:  participant,
		Submitted:      submitted,
		ModelVersion:   version,
	}, nil
}

func (svc *service) GetClient(ctx context.Context, clientID string) (client.Client, error) {
	return svc.registry.Get(ctx, clientID)
}

func (svc *service) ListClients(ctx context.Context, offset, limit uint64) (client.Page, error) {
	return svc.registry.List(ctx, offset, limit)
}

// OpenRound opens a round when no round is running and enough clients
// are alive. The cohort is a seeded uniform sample of the active set.
func (svc *service) OpenRound(ctx context.Context) (round.Round, error) {
	if _, running := svc.rounds.Current(); running {
		return round.Round{}, ErrRoundInProgress
	}

	active, err := svc.registry.Active(ctx)
	if err != nil {
		return round.Round{}, err
	}
	if len(active) < svc.cfg.MinCohort {
		return round.Round{}, ErrNotEnoughClients
	}

	cohort, err := svc.selector.SelectCohort(active, svc.cfg.MaxCohort)
	if err != nil {
		return round.Round{}, err
	}

	r, err := svc.rounds.Open(ctx, cohort)
	if err != nil {
		return round.Round{}, err
	}

	svc.registry.SetStatus(ctx, r.Cohort, client.Training)
	svc.bridge.NotifyRoundOpen(ctx, r.ID, r.Cohort)

	return r, nil
}

func (svc *service) GetRound(ctx context.Context, roundID uint64) (round.Round, error) {
	return svc.rounds.Get(ctx, roundID)
}

func (svc *service) ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error) {
	return svc.rounds.List(ctx, offset, limit)
}

func (svc *service) Submit(ctx context.Context, sub fl.Submission) error {
	if _, err := svc.registry.Get(ctx, sub.ClientID); err != nil {
		return err
	}

	sub.ReceivedAt = time.Now()

	return svc.rounds.Submit(ctx, sub)
}

func (svc *service) GlobalModel(ctx context.Context) (fl.GlobalModel, error) {
	return svc.models.Current(ctx)
}

func (svc *service) ModelVersion(ctx context.Context, version uint64) (fl.GlobalModel, error) {
	return svc.models.Version(ctx, version)
}

func (svc *service) Status(ctx context.Context) (Summary, error) {
	total, err := svc.registry.Count(ctx)
	if err != nil {
		return Summary{}, err
	}
	active, err := svc.registry.Active(ctx)
	if err != nil {
		return Summary{}, err
	}

	completed, failed, version := svc.rounds.Stats()

	var currentID *uint64
	if cur, ok := svc.rounds.Current(); ok {
		currentID = &cur.ID
	}

	return Summary{
		TotalClients:    total,
		ActiveClients:   uint64(len(active)),
		CurrentRoundID:  currentID,
		RoundsCompleted: completed,
		RoundsFailed:    failed,
		ModelVersion:    version,
	}, nil
}

// Run drives the scheduling cadence and the sync bridge until ctx is
// cancelled.
func (svc *service) Run(ctx context.Context) error {
	go func() {
		if err := svc.bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			svc.logger.Error("sync bridge stopped", slog.Any("error", err))
		}
	}()

	ticker := time.NewTicker(svc.cfg.ScheduleEvery)
	defer ticker.Stop()

	svc.logger.Info("round scheduler started",
		slog.Duration("cadence", svc.cfg.ScheduleEvery),
		slog.Int("min_cohort", svc.cfg.MinCohort),
		slog.Int("max_cohort", svc.cfg.MaxCohort))

	for {
		select {
		case <-ctx.Done():
			svc.logger.Info("round scheduler stopping")

			return ctx.Err()
		case <-ticker.C:
			switch _, err := svc.OpenRound(ctx); {
			case err == nil:
			case errors.Is(err, ErrRoundInProgress), errors.Is(err, ErrNotEnoughClients):
				svc.logger.Debug("skipping round evaluation", slog.Any("reason", err))
			default:
				svc.logger.Error("failed to open round", slog.Any("error", err))
			}
		}
	}
}

// roundFinished runs outside the round lock whenever a round reaches a
// terminal state.
func (svc *service) roundFinished(ev terminalEvent) {
	ctx := context.Background()

	svc.registry.SetStatus(ctx, ev.Round.Cohort, client.Active)
	svc.bridge.NotifyTerminal(ev)
}
