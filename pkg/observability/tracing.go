// Package observability provides OpenTelemetry tracing for quack
package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/quack"

var (
	tracerMu sync.RWMutex
	tracer   trace.Tracer
)

// GetTracer returns the configured tracer, or the global provider's tracer
// when Initialize has not run (a no-op unless someone installed a provider).
func GetTracer() trace.Tracer {
	tracerMu.RLock()
	t := tracer
	tracerMu.RUnlock()
	if t != nil {
		return t
	}
	return otel.Tracer(instrumentationName)
}

func setTracer(t trace.Tracer) {
	tracerMu.Lock()
	tracer = t
	tracerMu.Unlock()
}

// Span wraps a trace span and buffers attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// StartSpan starts a span named operation under ctx.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := GetTracer().Start(ctx, operation)
	return ctx, &Span{span: span}
}

// SetAttribute buffers an attribute for the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case uint32:
		attr = attribute.Int64(key, int64(v))
	case uint64:
		attr = attribute.Int64(key, int64(v))
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError marks the span failed. A nil error marks it ok.
func (s *Span) RecordError(err error) {
	if err == nil {
		s.span.SetStatus(codes.Ok, "")
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End flushes buffered attributes and ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// Trace runs fn inside a span named operation and records its error.
func Trace(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := StartSpan(ctx, operation)
	defer span.End()

	err := fn(ctx)
	span.RecordError(err)
	return err
}
