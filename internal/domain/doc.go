// Package domain defines the records the service stores and publishes:
// analyses, their metrics and lifecycle events.
package domain
