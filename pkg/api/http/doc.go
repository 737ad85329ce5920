// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Synchronous voice analysis (POST /analyze_vocal)
//   - Asynchronous analysis submission and status queries
//   - Health checks
//   - Prometheus metrics
package http
