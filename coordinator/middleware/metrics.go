package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/round"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) RegisterClient(ctx context.Context, c client.Client) (client.Client, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "register-client").Add(1)
		mm.latency.With("method", "register-client").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RegisterClient(ctx, c)
}

func (mm *metricsMiddleware) Heartbeat(ctx context.Context, clientID string, status client.Status, modelVersion uint64) (coordinator.Poll, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "heartbeat").Add(1)
		mm.latency.With("method", "heartbeat").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Heartbeat(ctx, clientID, status, modelVersion)
}

func (mm *metricsMiddleware) GetClient(ctx context.Context, clientID string) (client.Client, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-client").Add(1)
		mm.latency.With("method", "get-client").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetClient(ctx, clientID)
}

func (mm *metricsMiddleware) ListClients(ctx context.Context, offset, limit uint64) (client.Page, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-clients").Add(1)
		mm.latency.With("method", "list-clients").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListClients(ctx, offset, limit)
}

func (mm *metricsMiddleware) OpenRound(ctx context.Context) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "open-round").Add(1)
		mm.latency.With("method", "open-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.OpenRound(ctx)
}

func (mm *metricsMiddleware) GetRound(ctx context.Context, roundID uint64) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-round").Add(1)
		mm.latency.With("method", "get-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetRound(ctx, roundID)
}

func (mm *metricsMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-rounds").Add(1)
		mm.latency.With("method", "list-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRounds(ctx, offset, limit)
}

func (mm *metricsMiddleware) Submit(ctx context.Context, sub fl.Submission) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit").Add(1)
		mm.latency.With("method", "submit").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Submit(ctx, sub)
}

func (mm *metricsMiddleware) GlobalModel(ctx context.Context) (fl.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "global-model").Add(1)
		mm.latency.With("method", "global-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GlobalModel(ctx)
}

func (mm *metricsMiddleware) ModelVersion(ctx context.Context, version uint64) (fl.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "model-version").Add(1)
		mm.latency.With("method", "model-version").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ModelVersion(ctx, version)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (coordinator.Summary, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "status").Add(1)
		mm.latency.With("method", "status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) Run(ctx context.Context) error {
	return mm.svc.Run(ctx)
}
