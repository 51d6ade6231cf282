// Package main is the entry point for the jsworker host server.
//
// The host runs isolated JavaScript contexts for remote creators. A creator
// dials /spawn, sends the worker blob and its option scripts, then talks to
// the context with ordinary protocol frames.
//
// Endpoints:
//   - GET /spawn: websocket spawn endpoint
//   - GET /workers, DELETE /workers/:id: running workers
//   - GET /health
//   - GET /metrics, GET /metrics/json
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000 -max-workers 64
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: stop every worker, then shut down
package main
