// Package api serves a read-only view of the running harvest for operators.
// Routes:
//   - GET /v1/harvest/status returns the latest Snapshot as JSON.
//
// The handler is mounted next to /metrics and /healthz on the metrics server.
package api
