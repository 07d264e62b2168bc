// Package llm provides the reasoning model client used by the agent loop.
package llm

import "context"

// Client is the interface the agent loop depends on. Implementations
// translate the provider wire format into the neutral types in this
// package.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// tools carries provider-format tool definitions; pass nil to force
	// a plain text response.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
