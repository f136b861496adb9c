// Package telemetry traces supervision work. One rollout under
// supervision is one operation span; each poll cycle and each gate
// (pipeline hook, load burst, approval pass) is a child step span.
package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "stagewatch"

	RolloutIDKey   = "stagewatch.rollout.id"
	EnvironmentKey = "stagewatch.environment"
	StageKey       = "stagewatch.stage"
)

// Tracer returns the process tracer from the globally registered provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Operation is the span covering one rollout's supervision, from follow
// or resume until the terminal status. A nil Operation is a valid no-op.
type Operation struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// StartRollout opens the operation span. With a nil tracer it returns a
// no-op operation that still carries the caller's context, so callers
// never branch on telemetry being wired and never lose cancellation.
func StartRollout(ctx context.Context, tracer trace.Tracer, rolloutID, environment string) *Operation {
	if tracer == nil {
		return &Operation{ctx: ctx}
	}
	spanCtx, span := tracer.Start(ctx, "rollout.supervise", trace.WithAttributes(
		attribute.String(RolloutIDKey, rolloutID),
		attribute.String(EnvironmentKey, environment),
	))
	return &Operation{ctx: spanCtx, tracer: tracer, span: span}
}

func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// RunStep runs fn inside a child span named id. Errors are recorded on
// the span and returned unchanged.
func (o *Operation) RunStep(ctx context.Context, id string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	if fn == nil {
		return nil
	}
	if o == nil || o.tracer == nil {
		return fn(ctx)
	}
	if ctx == nil {
		ctx = o.ctx
	}

	stepCtx, span := o.tracer.Start(ctx, id, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(stepCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	return err
}

// End closes the operation span, recording err when supervision failed.
func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}
