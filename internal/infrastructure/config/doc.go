// Package config provides 12-factor configuration management for the worker
// host and CLI.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Worker: Isolated context limits (call stack, boot timeout, frame size, host capacity)
//   - Modules: Where the bundled module table is loaded from
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - WORKER_MAX_CALL_STACK, WORKER_BOOT_TIMEOUT, WORKER_MAX_MESSAGE_BYTES, HOST_MAX_WORKERS
//   - MODULES_DIR, MODULES_PATTERN, MODULES_MANIFEST
package config
