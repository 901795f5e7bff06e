package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	appendOp       = "append_op"
	recentUniqueOp = "recent_unique_op"
)

// Repository is the lookup-log interface the tracing middleware and Store
// both satisfy.
type Repository interface {
	Append(ctx context.Context, row Row) error
	RecentUnique(ctx context.Context, days, limit int) ([]Row, error)
}

var _ Repository = (*tracingMiddleware)(nil)

type tracingMiddleware struct {
	tracer trace.Tracer
	repo   Repository
}

// NewTracingMiddleware wraps repo with a span per call, on top of the
// per-statement spans Database already adds at the SQL layer.
func NewTracingMiddleware(tracer trace.Tracer, repo Repository) Repository {
	return &tracingMiddleware{tracer: tracer, repo: repo}
}

func (tm *tracingMiddleware) Append(ctx context.Context, row Row) error {
	ctx, span := tm.tracer.Start(ctx, appendOp, trace.WithAttributes(
		attribute.String("msisdn", row.MSISDN),
		attribute.String("classification", row.Classification),
	))
	defer span.End()

	return tm.repo.Append(ctx, row)
}

func (tm *tracingMiddleware) RecentUnique(ctx context.Context, days, limit int) ([]Row, error) {
	ctx, span := tm.tracer.Start(ctx, recentUniqueOp, trace.WithAttributes(
		attribute.Int("days", days),
		attribute.Int("limit", limit),
	))
	defer span.End()

	return tm.repo.RecentUnique(ctx, days, limit)
}
