package hooks

import (
	"context"
	"fmt"

	"github.com/broady/httprpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/broady/httprpc/hooks"

type spanKey struct{}

type tracing struct {
	httprpc.BaseHook
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Tracing creates a hook that wraps every call in a client span named after
// the method ("Service.Method") and injects the span context into the
// outgoing headers. Nil arguments fall back to the global provider and
// propagator.
//
// The span ends when the response arrives, or when the call fails before
// that.
func Tracing(tp trace.TracerProvider, propagator propagation.TextMapPropagator) httprpc.Hook {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	return tracing{
		tracer:     tp.Tracer(tracerName),
		propagator: propagator,
	}
}

func (h tracing) BeforeRequest(c *httprpc.CallContext) error {
	m := c.Method()
	ctx, span := h.tracer.Start(c.Context(), m.FullName(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(m.Verb()),
			semconv.HTTPRouteKey.String(m.Template()),
			attribute.String("rpc.service", m.Service().ID()),
			attribute.String("rpc.method", m.Name()),
		),
	)
	ctx = context.WithValue(ctx, spanKey{}, span)
	c.SetContext(ctx)
	h.propagator.Inject(ctx, propagation.HeaderCarrier(c.Request.Header))
	return nil
}

// callSpan returns the span this hook started for the call, if any.
func callSpan(c *httprpc.CallContext) (trace.Span, bool) {
	span, ok := c.Context().Value(spanKey{}).(trace.Span)
	return span, ok && span.IsRecording()
}

func (h tracing) AfterResponse(c *httprpc.CallContext) error {
	span, ok := callSpan(c)
	if !ok {
		return nil
	}
	resp := c.Response
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(resp.StatusCode))
	if resp.Request != nil {
		span.SetAttributes(semconv.HTTPURLKey.String(resp.Request.URL.Redacted()))
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	span.End()
	return nil
}

func (h tracing) OnError(c *httprpc.CallContext, err error) {
	span, ok := callSpan(c)
	if !ok {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(httprpc.KindOf(err)))
	span.End()
}
