// Package llm provides vocal coach implementations backed by LLMs.
//
// The factory creates a coach based on provider configuration.
// Currently supports:
//   - Anthropic Claude
package llm
