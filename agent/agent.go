package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/pkg/mqtt"
	"github.com/agrifed/agrifed/pkg/sdk"
)

const (
	roundOpenTopic = "rounds/open"
	roundNextTopic = "rounds/next"
)

// Service is one training participant. It registers with the
// coordinator, heartbeats on a fixed cadence, trains when selected into
// a cohort and adopts each published global model. Round announcements
// over MQTT wake it between polls; without a broker it falls back to
// the poll cadence alone.
type Service struct {
	cfg     Config
	sdk     sdk.SDK
	trainer Trainer
	pubsub  mqtt.PubSub
	logger  *slog.Logger

	// wake coalesces broker notifications into at most one pending
	// early cycle.
	wake chan struct{}

	status        client.Status
	adopted       fl.GlobalModel
	lastSubmitted uint64
}

func NewService(cfg Config, s sdk.SDK, trainer Trainer, pubsub mqtt.PubSub, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		sdk:     s,
		trainer: trainer,
		pubsub:  pubsub,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		status:  client.Active,
	}
}

// Run registers and then polls until ctx is cancelled. Transient
// coordinator errors are logged and retried on the next cycle.
func (a *Service) Run(ctx context.Context) error {
	if err := a.register(ctx); err != nil {
		return err
	}

	a.logger.Info("agent registered",
		slog.String("client_id", a.cfg.ClientID),
		slog.Uint64("dataset_size", a.cfg.DatasetSize))

	a.subscribe(ctx)

	ticker := time.NewTicker(a.cfg.PollEvery())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping", slog.String("client_id", a.cfg.ClientID))

			return ctx.Err()
		case <-a.wake:
			if err := a.cycle(ctx); err != nil {
				a.logger.Warn("poll cycle failed",
					slog.String("client_id", a.cfg.ClientID),
					slog.Any("error", err))
			}
		case <-ticker.C:
			if err := a.cycle(ctx); err != nil {
				a.logger.Warn("poll cycle failed",
					slog.String("client_id", a.cfg.ClientID),
					slog.Any("error", err))
			}
		}
	}
}

func (a *Service) register(ctx context.Context) error {
	reg := sdk.Registration{
		ClientID:    a.cfg.ClientID,
		Name:        a.cfg.Name,
		Location:    a.cfg.Location,
		DatasetSize: a.cfg.DatasetSize,
		ModelType:   a.cfg.ModelType,
	}

	op := func() error {
		_, err := a.sdk.Register(reg)
		var sdkErr *sdk.Error
		if errors.As(err, &sdkErr) && sdkErr.Reason == "Capacity" {
			return backoff.Permanent(err)
		}

		return err
	}

	return backoff.Retry(op, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
}

// subscribe hooks the coordinator's round announcements so a fresh
// round or model triggers a cycle ahead of the next tick. Announcements
// are best-effort, so a failed subscription only costs promptness.
func (a *Service) subscribe(ctx context.Context) {
	if a.pubsub == nil {
		return
	}

	for _, topic := range []string{roundOpenTopic, roundNextTopic} {
		full := a.cfg.Topic() + "/" + topic
		if err := a.pubsub.Subscribe(ctx, full, a.notify); err != nil {
			a.logger.Warn("failed to subscribe to round announcements",
				slog.String("client_id", a.cfg.ClientID),
				slog.String("topic", full),
				slog.Any("error", err))

			continue
		}
		a.logger.Info("subscribed to round announcements",
			slog.String("client_id", a.cfg.ClientID),
			slog.String("topic", full))
	}
}

func (a *Service) notify(_ string, _ map[string]any) error {
	select {
	case a.wake <- struct{}{}:
	default:
	}

	return nil
}

// cycle is one heartbeat round trip plus whatever work it demands.
func (a *Service) cycle(ctx context.Context) error {
	poll, err := a.sdk.SendHeartbeat(a.cfg.ClientID, sdk.Heartbeat{
		Status:       a.status.String(),
		ModelVersion: a.adopted.Version,
	})
	if err != nil {
		return err
	}

	if poll.ModelVersion > a.adopted.Version {
		if err := a.adopt(); err != nil {
			a.logger.Warn("failed to adopt global model",
				slog.String("client_id", a.cfg.ClientID),
				slog.Any("error", err))
		}
	}

	if poll.IsParticipant && !poll.Submitted && poll.CurrentRoundID != nil {
		// Stay in training for as long as the submission is pending so
		// heartbeats do not overwrite the coordinator's cohort marking.
		a.status = client.Training
		if err := a.train(ctx, *poll.CurrentRoundID); err != nil {
			return err
		}
	}
	a.status = client.Active

	return nil
}

func (a *Service) adopt() error {
	model, err := a.sdk.GlobalModel()
	if err != nil {
		return err
	}
	if model.Version <= a.adopted.Version {
		return nil
	}

	a.adopted = model
	a.logger.Info("adopted global model",
		slog.String("client_id", a.cfg.ClientID),
		slog.Uint64("version", model.Version))

	return nil
}

func (a *Service) train(ctx context.Context, roundID uint64) error {
	if roundID == a.lastSubmitted {
		return nil
	}

	params, metrics, err := a.trainer.Train(ctx, a.adopted.Params)
	if err != nil {
		return err
	}

	err = a.sdk.Submit(roundID, sdk.Update{
		ClientID:    a.cfg.ClientID,
		Parameters:  params,
		DatasetSize: a.cfg.DatasetSize,
		Metrics:     metrics,
	})
	var sdkErr *sdk.Error
	if errors.As(err, &sdkErr) {
		switch sdkErr.Reason {
		case "Stale", "RoundNotActive", "NotParticipant":
			a.logger.Warn("submission rejected",
				slog.String("client_id", a.cfg.ClientID),
				slog.Uint64("round_id", roundID),
				slog.String("reason", sdkErr.Reason))

			return nil
		}
	}
	if err != nil {
		return err
	}

	a.lastSubmitted = roundID
	a.logger.Info("submitted trained parameters",
		slog.String("client_id", a.cfg.ClientID),
		slog.Uint64("round_id", roundID))

	return nil
}
