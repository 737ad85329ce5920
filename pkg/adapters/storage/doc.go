// Package storage provides analysis storage implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization, TTL and a digest index
//   - memory: In-memory for tests and single-instance deployments
package storage
