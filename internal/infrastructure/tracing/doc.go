/*
Package tracing gives every inbound request an id and times it.

# Overview

HTTPMiddleware continues the caller's X-Request-ID when it is a short safe
token, or issues a new "req_" ULID, and echoes it on the response. The id lives
on the request context, where Logger picks it up for log fields and
InjectTraceContext forwards it on outbound provider calls.

# Usage

	tracer := tracing.New("bloom", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "extract")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

Finished spans are buffered (1000) and logged by a background collector; when
the buffer is full new spans are dropped with a warning.
*/
package tracing
