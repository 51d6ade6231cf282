// Package middleware provides HTTP middleware for the worker host API.
//
// CORS wraps gin-contrib/cors. The default configuration allows the
// methods the host serves and the websocket subprotocol header.
//
// RateLimit keeps one token bucket per client IP and forgets clients that
// have been idle for longer than RateLimitConfig.Idle. GlobalRateLimit
// shares one bucket between all clients.
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
