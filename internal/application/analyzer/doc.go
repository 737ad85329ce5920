// Package analyzer coordinates voice analyses.
//
// The service is responsible for:
//   - Validating and spooling uploads to temporary files
//   - Serving repeated uploads from the digest cache
//   - Decoding and running the acoustic pipeline
//   - Queueing asynchronous analyses on the worker pool
//   - Archiving recordings and requesting coaching feedback
//   - Publishing lifecycle events
package analyzer
