/*
Package tracing provides lightweight request tracing.

# Overview

This package implements minimal distributed tracing to follow a request
from the extension bridge through the gate and out to the analyzer. It
borrows OpenTelemetry concepts (traces, spans, propagation headers) with
an implementation small enough to read in one sitting.

# Features

- Trace context propagation via HTTP headers
- Span creation with parent-child relationships
- Automatic trace ID generation
- Gin middleware for automatic instrumentation
- Structured logging integration
- Buffered async span collection

# Usage

	// Create tracer
	tracer := tracing.New("gateway", logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("key", "value")

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation
*/
package tracing
