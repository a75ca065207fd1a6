// Package dummy provides an offline gateway that echoes its input, useful for
// running the service locally without model credentials.
package dummy

import (
	"context"
	"fmt"
	"strings"

	"filechat/config"
	"filechat/internal/core"
	"filechat/internal/providers"
)

// Name is the registry name of this provider.
const Name = "dummy"

// DefaultPrefix starts every response.
const DefaultPrefix = "Dummy response:"

func init() {
	providers.Register(Name, func(config.ProviderConfig) (core.Gateway, error) {
		return New(""), nil
	})
}

// Provider describes what it was sent instead of calling a model.
type Provider struct {
	Prefix string
}

// New creates a dummy provider. An empty prefix uses DefaultPrefix.
func New(prefix string) *Provider {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return &Provider{Prefix: prefix}
}

// SendChatTurn summarizes the chat turn it received.
func (p *Provider) SendChatTurn(ctx context.Context, prompt *core.ChatPrompt, _ core.GenerationConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s (history: %d turns)", p.Prefix, describe(prompt.Parts), len(prompt.History)), nil
}

// GenerateOnce summarizes the parts it received.
func (p *Provider) GenerateOnce(ctx context.Context, parts []core.Segment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s", p.Prefix, describe(parts)), nil
}

// describe keeps the last non-empty line of the first text part and counts
// the remaining parts by type.
func describe(parts []core.Segment) string {
	first := "<empty prompt>"
	var texts, blobs int
	for i, seg := range parts {
		switch s := seg.(type) {
		case core.TextSegment:
			if i == 0 {
				if line := lastLine(s.Text); line != "" {
					first = line
				}
				continue
			}
			texts++
		case core.InlineBinarySegment:
			blobs++
		}
	}
	return fmt.Sprintf("%s [%d text parts, %d inline parts]", first, texts, blobs)
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
