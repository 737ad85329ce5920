// Package workers implements the bounded pool that runs queued analyses.
//
// The worker pool manages a fixed number of goroutines that:
//   - Pull jobs from a buffered queue
//   - Hand each job to the configured handler
//   - Recover from handler panics so one bad recording cannot stop a worker
//
// Jobs still queued at shutdown are passed to the discard callback. The
// health monitor tracks worker status and records pool gauges.
package workers
