// Package core defines the core interfaces and types for the file chat service.
package core

import (
	"context"
)

// Gateway owns the outbound call to the generative model.
type Gateway interface {
	// SendChatTurn opens a conversation seeded with prompt.History and sends
	// prompt.Parts as a single message. It returns the response text.
	SendChatTurn(ctx context.Context, prompt *ChatPrompt, gen GenerationConfig) (string, error)

	// GenerateOnce issues a stateless single-shot call with provider defaults.
	GenerateOnce(ctx context.Context, parts []Segment) (string, error)
}

// Closer is implemented by gateways that hold client resources.
type Closer interface {
	Close() error
}
