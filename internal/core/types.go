package core

import "time"

// Roles understood by the provider. Anything that is not RoleUser is
// treated as RoleModel.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Kind is the classification an uploaded file receives from the extractor.
type Kind string

const (
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindPDF      Kind = "pdf"
	KindDocument Kind = "document"
	KindText     Kind = "text"
)

// Inline reports whether files of this kind are sent to the provider as
// inline binary data rather than as extracted text.
func (k Kind) Inline() bool {
	return k == KindImage || k == KindAudio || k == KindVideo
}

// UploadedFile is a multipart file part persisted to the upload directory.
type UploadedFile struct {
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	MediaType    string    `json:"media_type"`
	Size         int64     `json:"size"`
	StoredAt     time.Time `json:"stored_at"`
}

// Segment is one ordered piece of a model turn. It is either a TextSegment
// or an InlineBinarySegment.
type Segment interface {
	segment()
}

// TextSegment is plain text sent to the model.
type TextSegment struct {
	Text string
}

// InlineBinarySegment is a base64 payload sent to the model with its media type.
type InlineBinarySegment struct {
	Data      string
	MediaType string
}

func (TextSegment) segment()         {}
func (InlineBinarySegment) segment() {}

// Turn is one prior message of the client-supplied conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExtractionResult is the per-file report returned by the batch endpoint.
type ExtractionResult struct {
	Name          string `json:"name"`
	Type          Kind   `json:"type"`
	Path          string `json:"path"`
	ExtractedText string `json:"extractedText,omitempty"`
}

// GenerationConfig holds the sampling parameters of a chat turn.
type GenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopK            int32   `json:"top_k"`
	TopP            float32 `json:"top_p"`
	MaxOutputTokens int32   `json:"max_output_tokens"`
}

// DefaultGenerationConfig returns the sampling parameters used when none are configured.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 1024,
	}
}

// ChatPrompt is the assembled input of one chat turn.
type ChatPrompt struct {
	// System is sent as the model's system instruction when non-empty.
	System string
	// History holds prior turns with roles already mapped to RoleUser/RoleModel.
	History []Turn
	// Parts is the current turn: the user message followed by file segments.
	Parts []Segment
}
