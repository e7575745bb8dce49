package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agrifed/agrifed/client"
	"github.com/agrifed/agrifed/coordinator"
	"github.com/agrifed/agrifed/pkg/fl"
	"github.com/agrifed/agrifed/round"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) RegisterClient(ctx context.Context, c client.Client) (client.Client, error) {
	ctx, span := tm.tracer.Start(ctx, "register-client", trace.WithAttributes(
		attribute.String("id", c.ID),
		attribute.String("name", c.Name),
	))
	defer span.End()

	return tm.svc.RegisterClient(ctx, c)
}

func (tm *tracing) Heartbeat(ctx context.Context, clientID string, status client.Status, modelVersion uint64) (coordinator.Poll, error) {
	ctx, span := tm.tracer.Start(ctx, "heartbeat", trace.WithAttributes(
		attribute.String("id", clientID),
		attribute.String("status", status.String()),
	))
	defer span.End()

	return tm.svc.Heartbeat(ctx, clientID, status, modelVersion)
}

func (tm *tracing) GetClient(ctx context.Context, clientID string) (client.Client, error) {
	ctx, span := tm.tracer.Start(ctx, "get-client", trace.WithAttributes(
		attribute.String("id", clientID),
	))
	defer span.End()

	return tm.svc.GetClient(ctx, clientID)
}

func (tm *tracing) ListClients(ctx context.Context, offset, limit uint64) (client.Page, error) {
	ctx, span := tm.tracer.Start(ctx, "list-clients", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListClients(ctx, offset, limit)
}

func (tm *tracing) OpenRound(ctx context.Context) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "open-round")
	defer span.End()

	return tm.svc.OpenRound(ctx)
}

func (tm *tracing) GetRound(ctx context.Context, roundID uint64) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "get-round", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
	))
	defer span.End()

	return tm.svc.GetRound(ctx, roundID)
}

func (tm *tracing) ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRounds(ctx, offset, limit)
}

func (tm *tracing) Submit(ctx context.Context, sub fl.Submission) error {
	ctx, span := tm.tracer.Start(ctx, "submit", trace.WithAttributes(
		attribute.Int64("round_id", int64(sub.RoundID)),
		attribute.String("client_id", sub.ClientID),
	))
	defer span.End()

	return tm.svc.Submit(ctx, sub)
}

func (tm *tracing) GlobalModel(ctx context.Context) (fl.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "global-model")
	defer span.End()

	return tm.svc.GlobalModel(ctx)
}

func (tm *tracing) ModelVersion(ctx context.Context, version uint64) (fl.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "model-version", trace.WithAttributes(
		attribute.Int64("version", int64(version)),
	))
	defer span.End()

	return tm.svc.ModelVersion(ctx, version)
}

func (tm *tracing) Status(ctx context.Context) (coordinator.Summary, error) {
	ctx, span := tm.tracer.Start(ctx, "status")
	defer span.End()

	return tm.svc.Status(ctx)
}

func (tm *tracing) Run(ctx context.Context) error {
	return tm.svc.Run(ctx)
}
