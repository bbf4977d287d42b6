// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health checks, and graceful shutdown for the
// tenantgate gateway.
//
// Logging uses a thin wrapper over log/slog with JSON output. Metrics cover
// the auth core: logins, token refresh cycles, forced logouts, guard
// decisions, and tenant validations, plus gateway HTTP traffic.
package observability
