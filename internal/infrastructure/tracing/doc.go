/*
Package tracing attaches trace ids to requests and logs finished spans.

# Overview

Every HTTP request gets a span. A caller may continue its own trace by
sending X-Trace-ID (and optionally X-Span-ID); otherwise a new prefixed ULID
is minted. Both ids are echoed in the response headers so a client can quote
them when reporting a problem. Finished spans are logged through zap at
debug level, or at warn when they carry an error.

# Usage

	tracer := tracing.New("ptyhost", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// inside a handler
	log := tracing.Logger(c.Request.Context(), logger)
	log.Info("Spawned session", zap.String("session_id", id))

Header values that are not short identifiers are ignored, since they end up
in logs and response headers.
*/
package tracing
