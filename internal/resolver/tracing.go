package resolver

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smppgw/gateway/internal/hlr"
)

const lookupOp = "lookup_op"

// Lookupper is implemented by Resolver and its tracing decorator, so
// callers (the submit pipeline) can depend on either.
type Lookupper interface {
	Lookup(ctx context.Context, msisdn, sourceIP string) (hlr.Record, error)
}

var _ Lookupper = (*tracingMiddleware)(nil)

type tracingMiddleware struct {
	tracer trace.Tracer
	next   Lookupper
}

// NewTracingMiddleware wraps next with a span around each Lookup call.
func NewTracingMiddleware(tracer trace.Tracer, next Lookupper) Lookupper {
	return &tracingMiddleware{tracer: tracer, next: next}
}

func (tm *tracingMiddleware) Lookup(ctx context.Context, msisdn, sourceIP string) (hlr.Record, error) {
	ctx, span := tm.tracer.Start(ctx, lookupOp, trace.WithAttributes(attribute.String("msisdn", msisdn)))
	defer span.End()

	return tm.next.Lookup(ctx, msisdn, sourceIP)
}
