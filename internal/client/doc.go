// Package client is an HTTP client for a worker host's management API.
//
// Requests go through resty on top of a retrying transport from
// go-retryablehttp, and every call is guarded by a circuit breaker so a
// dead host fails fast.
package client
