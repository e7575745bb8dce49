package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/round"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) RegisterClient(ctx context.Context, c client.Client) (resp client.Client, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("client",
				slog.String("id", c.ID),
				slog.String("name", c.Name),
				slog.Uint64("dataset_size", c.DatasetSize),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register client failed", args...)

			return
		}
		lm.logger.Info("Register client completed successfully", args...)
	}(time.Now())

	return lm.svc.RegisterClient(ctx, c)
}

func (lm *loggingMiddleware) Heartbeat(ctx context.Context, clientID string, status client.Status, modelVersion uint64) (resp coordinator.Poll, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("client",
				slog.String("id", clientID),
				slog.String("status", status.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Heartbeat failed", args...)

			return
		}
		lm.logger.Debug("Heartbeat completed successfully", args...)
	}(time.Now())

	return lm.svc.Heartbeat(ctx, clientID, status, modelVersion)
}

func (lm *loggingMiddleware) GetClient(ctx context.Context, clientID string) (resp client.Client, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("client",
				slog.String("id", clientID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get client failed", args...)

			return
		}
		lm.logger.Info("Get client completed successfully", args...)
	}(time.Now())

	return lm.svc.GetClient(ctx, clientID)
}

func (lm *loggingMiddleware) ListClients(ctx context.Context, offset, limit uint64) (resp client.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List clients failed", args...)

			return
		}
		lm.logger.Info("List clients completed successfully", args...)
	}(time.Now())

	return lm.svc.ListClients(ctx, offset, limit)
}

func (lm *loggingMiddleware) OpenRound(ctx context.Context) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Open round failed", args...)

			return
		}
		args = append(args, slog.Group("round",
			slog.Uint64("id", resp.ID),
			slog.Int("cohort_size", len(resp.Cohort)),
		))
		lm.logger.Info("Open round completed successfully", args...)
	}(time.Now())

	return lm.svc.OpenRound(ctx)
}

func (lm *loggingMiddleware) GetRound(ctx context.Context, roundID uint64) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("id", roundID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round failed", args...)

			return
		}
		lm.logger.Info("Get round completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRound(ctx, roundID)
}

func (lm *loggingMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (resp round.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rounds failed", args...)

			return
		}
		lm.logger.Info("List rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRounds(ctx, offset, limit)
}

func (lm *loggingMiddleware) Submit(ctx context.Context, sub fl.Submission) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("submission",
				slog.Uint64("round_id", sub.RoundID),
				slog.String("client_id", sub.ClientID),
				slog.Uint64("dataset_size", sub.DatasetSize),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit failed", args...)

			return
		}
		lm.logger.Info("Submit completed successfully", args...)
	}(time.Now())

	return lm.svc.Submit(ctx, sub)
}

func (lm *loggingMiddleware) GlobalModel(ctx context.Context) (resp fl.GlobalModel, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get global model failed", args...)

			return
		}
		args = append(args, slog.Uint64("version", resp.Version))
		lm.logger.Debug("Get global model completed successfully", args...)
	}(time.Now())

	return lm.svc.GlobalModel(ctx)
}

func (lm *loggingMiddleware) ModelVersion(ctx context.Context, version uint64) (resp fl.GlobalModel, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("version", version),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model version failed", args...)

			return
		}
		lm.logger.Info("Get model version completed successfully", args...)
	}(time.Now())

	return lm.svc.ModelVersion(ctx, version)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (resp coordinator.Summary, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Status failed", args...)

			return
		}
		lm.logger.Debug("Status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}

func (lm *loggingMiddleware) Run(ctx context.Context) error {
	return lm.svc.Run(ctx)
}
