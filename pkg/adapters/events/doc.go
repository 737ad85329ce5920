// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis Streams, one consumer group per subscription
//   - memory: In-memory fan-out for tests and single-instance deployments
package events
