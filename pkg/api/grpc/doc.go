// Package grpc exposes the standard gRPC health service. The analyzer
// reports SERVING while its worker pool is healthy.
package grpc
