// Package server assembles the worker host HTTP server: configuration,
// logging, Prometheus metrics, middleware and the host routes.
package server
