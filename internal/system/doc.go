// Package system reports host resource usage for the health endpoint.
package system
