// Package ports declares the interfaces the analyzer depends on. Adapters
// under pkg/adapters implement them.
package ports
