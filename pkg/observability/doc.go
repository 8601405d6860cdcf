// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health checks and graceful shutdown for the portal
// services.
//
// The logger is a thin wrapper over log/slog emitting JSON, with helpers to
// carry request ID, user ID and tenant ID through context. Metrics cover the
// HTTP surface plus the authorization engine (decisions by outcome), the
// permission editor (toggles, saves) and the backing stores.
package observability
