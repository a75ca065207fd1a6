package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/api/option"

	"filechat/config"
	"filechat/internal/core"
	"filechat/internal/providers"
)

func TestNew_MissingAPIKey(t *testing.T) {
	p := New(context.Background(), "", "gemini-1.5-pro")
	require.NotNil(t, p)

	_, err := p.SendChatTurn(context.Background(), &core.ChatPrompt{Parts: []core.Segment{core.TextSegment{Text: "hi"}}}, core.DefaultGenerationConfig())
	require.Error(t, err)
	e := core.AsError(err)
	assert.Equal(t, core.ErrorTypeProvider, e.Type)
	assert.Equal(t, Name, e.Provider)
	assert.Equal(t, 500, e.HTTPStatusCode())
	assert.True(t, errors.Is(err, errMissingAPIKey))

	_, err = p.GenerateOnce(context.Background(), []core.Segment{core.TextSegment{Text: "hi"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMissingAPIKey))

	assert.NoError(t, p.Close())
}

// recordingServer answers every generateContent call with a fixed candidate
// and keeps the request bodies.
type recordingServer struct {
	mu     sync.Mutex
	paths  []string
	bodies [][]byte
}

func (rs *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rs.mu.Lock()
	rs.paths = append(rs.paths, r.URL.Path)
	rs.bodies = append(rs.bodies, body)
	rs.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]}}]}`)
}

func (rs *recordingServer) last(t *testing.T) (string, []byte) {
	t.Helper()
	rs.mu.Lock()
	defer rs.mu.Unlock()
	require.NotEmpty(t, rs.bodies, "no request reached the server")
	return rs.paths[len(rs.paths)-1], rs.bodies[len(rs.bodies)-1]
}

func newRecordedProvider(t *testing.T) (*Provider, *recordingServer) {
	t.Helper()
	rs := &recordingServer{}
	srv := httptest.NewServer(rs)
	t.Cleanup(srv.Close)

	p := New(context.Background(), "test-key", "gemini-1.5-pro", option.WithEndpoint(srv.URL))
	require.NoError(t, p.initErr)
	t.Cleanup(func() { _ = p.Close() })
	return p, rs
}

func TestSendChatTurn_Request(t *testing.T) {
	p, rs := newRecordedProvider(t)
	raw := []byte{0x89, 'P', 'N', 'G'}

	text, err := p.SendChatTurn(context.Background(), &core.ChatPrompt{
		System: "Be helpful.",
		History: []core.Turn{
			{Role: core.RoleUser, Content: "hello"},
			{Role: core.RoleModel, Content: "hi"},
		},
		Parts: []core.Segment{
			core.TextSegment{Text: "What is this?"},
			core.InlineBinarySegment{Data: base64.StdEncoding.EncodeToString(raw), MediaType: "image/png"},
		},
	}, core.DefaultGenerationConfig())
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)

	path, body := rs.last(t)
	assert.True(t, strings.HasSuffix(path, "models/gemini-1.5-pro:generateContent"), path)

	assert.Equal(t, "Be helpful.", gjson.GetBytes(body, "systemInstruction.parts.0.text").String())

	gen := gjson.GetBytes(body, "generationConfig")
	assert.InDelta(t, 0.7, gen.Get("temperature").Float(), 1e-6)
	assert.Equal(t, int64(40), gen.Get("topK").Int())
	assert.InDelta(t, 0.95, gen.Get("topP").Float(), 1e-6)
	assert.Equal(t, int64(1024), gen.Get("maxOutputTokens").Int())

	contents := gjson.GetBytes(body, "contents").Array()
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Get("role").String())
	assert.Equal(t, "hello", contents[0].Get("parts.0.text").String())
	assert.Equal(t, "model", contents[1].Get("role").String())
	assert.Equal(t, "hi", contents[1].Get("parts.0.text").String())
	assert.Equal(t, "user", contents[2].Get("role").String())
	assert.Equal(t, "What is this?", contents[2].Get("parts.0.text").String())
	assert.Equal(t, "image/png", contents[2].Get("parts.1.inlineData.mimeType").String())
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), contents[2].Get("parts.1.inlineData.data").String())
}

func TestGenerateOnce_Request(t *testing.T) {
	p, rs := newRecordedProvider(t)

	text, err := p.GenerateOnce(context.Background(), []core.Segment{core.TextSegment{Text: "Summarize"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)

	_, body := rs.last(t)
	assert.False(t, gjson.GetBytes(body, "systemInstruction").Exists())
	assert.False(t, gjson.GetBytes(body, "generationConfig.temperature").Exists())
	contents := gjson.GetBytes(body, "contents").Array()
	require.Len(t, contents, 1)
	assert.Equal(t, "Summarize", contents[0].Get("parts.0.text").String())
}

func TestChatModel(t *testing.T) {
	p := New(context.Background(), "test-key", "gemini-1.5-pro")
	require.NoError(t, p.initErr)
	t.Cleanup(func() { _ = p.Close() })

	model := p.chatModel("Be helpful.", core.DefaultGenerationConfig())
	require.NotNil(t, model.Temperature)
	assert.InDelta(t, 0.7, *model.Temperature, 1e-6)
	require.NotNil(t, model.TopK)
	assert.Equal(t, int32(40), *model.TopK)
	require.NotNil(t, model.TopP)
	assert.InDelta(t, 0.95, *model.TopP, 1e-6)
	require.NotNil(t, model.MaxOutputTokens)
	assert.Equal(t, int32(1024), *model.MaxOutputTokens)
	require.NotNil(t, model.SystemInstruction)
	assert.Equal(t, []genai.Part{genai.Text("Be helpful.")}, model.SystemInstruction.Parts)

	assert.Nil(t, p.chatModel("", core.DefaultGenerationConfig()).SystemInstruction)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, providers.ListRegistered(), Name)

	gw, err := providers.Create(config.ProviderConfig{Name: Name, Model: "gemini-1.5-pro"})
	require.NoError(t, err)
	assert.IsType(t, &Provider{}, gw)
}

func TestToParts(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	parts, err := toParts([]core.Segment{
		core.TextSegment{Text: "describe"},
		core.InlineBinarySegment{Data: base64.StdEncoding.EncodeToString(raw), MediaType: "image/png"},
	})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, genai.Text("describe"), parts[0])
	assert.Equal(t, genai.Blob{MIMEType: "image/png", Data: raw}, parts[1])
}

func TestToParts_InvalidBase64(t *testing.T) {
	_, err := toParts([]core.Segment{core.InlineBinarySegment{Data: "%%%", MediaType: "image/png"}})
	assert.Error(t, err)
}

func TestToHistory(t *testing.T) {
	history := toHistory([]core.Turn{
		{Role: core.RoleUser, Content: "hello"},
		{Role: core.RoleModel, Content: "hi"},
	})
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, []genai.Part{genai.Text("hello")}, history[0].Parts)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("hi")}, history[1].Parts)
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name      string
		resp      *genai.GenerateContentResponse
		expected  string
		expectErr bool
	}{
		{
			name:      "nil response",
			resp:      nil,
			expectErr: true,
		},
		{
			name:      "no candidates",
			resp:      &genai.GenerateContentResponse{},
			expectErr: true,
		},
		{
			name: "blocked candidate",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{FinishReason: genai.FinishReasonSafety},
			}},
			expectErr: true,
		},
		{
			name: "concatenates text parts of first candidate",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{
					genai.Text("Hello, "),
					genai.Blob{MIMEType: "image/png", Data: []byte{1}},
					genai.Text("world"),
				}}},
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("ignored")}}},
			}},
			expected: "Hello, world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.resp)
			if tt.expectErr {
				require.Error(t, err)
				assert.Equal(t, core.ErrorTypeProvider, core.AsError(err).Type)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
