/*
Package tracing provides lightweight request tracing for the worker host.

Spans are logged through zap once finished. Trace context travels between a
creator and a host in the X-Trace-ID and X-Span-ID headers: a RemoteSpawner
injects them into its spawn dial, and the host's HTTP middleware extracts
them, so the host's log lines for a worker share the creator's trace id.

Usage:

	tracer := tracing.New("jsworker-host", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "run")
	defer tracer.Finish(span)
	span.SetTag("worker_id", w.ID())
*/
package tracing
