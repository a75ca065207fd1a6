// Package gemini provides Google Gemini integration for the file chat service.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"filechat/config"
	"filechat/internal/core"
	"filechat/internal/providers"
)

// Name is the registry name of this provider.
const Name = "gemini"

var errMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

func init() {
	providers.Register(Name, func(cfg config.ProviderConfig) (core.Gateway, error) {
		return New(context.Background(), cfg.APIKey, cfg.Model), nil
	})
}

// Provider implements core.Gateway on top of the Gemini SDK
type Provider struct {
	client *genai.Client
	model  string
	// initErr is returned by every call when the client could not be built.
	initErr error
}

// New creates a Gemini provider. It never fails: without an API key (or when
// the SDK client cannot be built) the provider is still returned and every
// call reports the problem as a provider error. opts are passed to the SDK
// client after the API key.
func New(ctx context.Context, apiKey, model string, opts ...option.ClientOption) *Provider {
	p := &Provider{model: model}
	if apiKey == "" {
		slog.Warn("gemini api key not configured, model calls will fail")
		p.initErr = errMissingAPIKey
		return p
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		p.initErr = fmt.Errorf("gemini init: %w", err)
		return p
	}
	p.client = client
	return p
}

// SendChatTurn opens a chat session seeded with the prompt history and sends
// the current parts as one message.
func (p *Provider) SendChatTurn(ctx context.Context, prompt *core.ChatPrompt, gen core.GenerationConfig) (string, error) {
	if p.initErr != nil {
		return "", core.NewProviderError(Name, "gemini client unavailable", p.initErr)
	}

	parts, err := toParts(prompt.Parts)
	if err != nil {
		return "", core.NewInternalError("failed to build model input", err)
	}

	cs := p.chatModel(prompt.System, gen).StartChat()
	cs.History = toHistory(prompt.History)

	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return "", core.NewProviderError(Name, "gemini chat failed", err)
	}
	return responseText(resp)
}

// chatModel returns the model handle for a chat turn, carrying the sampling
// parameters and, when set, the system instruction.
func (p *Provider) chatModel(system string, gen core.GenerationConfig) *genai.GenerativeModel {
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(gen.Temperature)
	model.SetTopK(gen.TopK)
	model.SetTopP(gen.TopP)
	model.SetMaxOutputTokens(gen.MaxOutputTokens)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return model
}

// GenerateOnce issues a stateless request with the model's default settings.
func (p *Provider) GenerateOnce(ctx context.Context, segments []core.Segment) (string, error) {
	if p.initErr != nil {
		return "", core.NewProviderError(Name, "gemini client unavailable", p.initErr)
	}

	parts, err := toParts(segments)
	if err != nil {
		return "", core.NewInternalError("failed to build model input", err)
	}

	resp, err := p.client.GenerativeModel(p.model).GenerateContent(ctx, parts...)
	if err != nil {
		return "", core.NewProviderError(Name, "gemini generate failed", err)
	}
	return responseText(resp)
}

// Close releases the SDK client.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func toParts(segments []core.Segment) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(segments))
	for i, seg := range segments {
		switch s := seg.(type) {
		case core.TextSegment:
			parts = append(parts, genai.Text(s.Text))
		case core.InlineBinarySegment:
			data, err := base64.StdEncoding.DecodeString(s.Data)
			if err != nil {
				return nil, fmt.Errorf("segment %d: decode inline data: %w", i, err)
			}
			parts = append(parts, genai.Blob{MIMEType: s.MediaType, Data: data})
		default:
			return nil, fmt.Errorf("segment %d: unsupported segment %T", i, seg)
		}
	}
	return parts, nil
}

func toHistory(turns []core.Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		history = append(history, &genai.Content{
			Role:  t.Role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return history
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", core.NewProviderError(Name, "gemini returned no candidates", nil)
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", core.NewProviderError(Name,
			fmt.Sprintf("gemini returned an empty candidate (finish reason: %s)", cand.FinishReason), nil)
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}
