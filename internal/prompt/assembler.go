// Package prompt assembles model input from the user's message, the
// conversation history and the content extracted from uploads.
package prompt

import (
	"strings"

	"filechat/internal/core"
	"filechat/internal/extract"
)

// DefaultBatchPrompt is used when a batch request carries no prompt.
const DefaultBatchPrompt = "Analyze the following content:"

// Assembler builds chat and batch prompts.
type Assembler struct {
	// System is the system-intent prefix sent with every chat turn.
	System string
}

// NewAssembler creates an assembler with the given system-intent prefix.
func NewAssembler(system string) *Assembler {
	return &Assembler{System: strings.TrimSpace(system)}
}

// Chat builds one chat turn: mapped history as prior context, then the
// literal user message followed by each file segment in upload order.
// Ignored files contribute nothing.
func (a *Assembler) Chat(message string, history []core.Turn, files []extract.Extraction) *core.ChatPrompt {
	parts := make([]core.Segment, 0, len(files)+1)
	parts = append(parts, core.TextSegment{Text: message})
	parts = append(parts, fileSegments(files)...)

	return &core.ChatPrompt{
		System:  a.System,
		History: MapHistory(history),
		Parts:   parts,
	}
}

// Batch builds the single-shot prompt: the caller's prompt (or
// DefaultBatchPrompt) followed by each file segment in upload order.
func (a *Assembler) Batch(prompt string, files []extract.Extraction) []core.Segment {
	if prompt == "" {
		prompt = DefaultBatchPrompt
	}
	parts := make([]core.Segment, 0, len(files)+1)
	parts = append(parts, core.TextSegment{Text: prompt})
	return append(parts, fileSegments(files)...)
}

// Reports returns the per-file reports of every processed (non-ignored) file.
func Reports(files []extract.Extraction) []core.ExtractionResult {
	reports := make([]core.ExtractionResult, 0, len(files))
	for _, f := range files {
		if f.Ignored() {
			continue
		}
		reports = append(reports, f.Report())
	}
	return reports
}

func fileSegments(files []extract.Extraction) []core.Segment {
	segments := make([]core.Segment, 0, len(files))
	for _, f := range files {
		if seg := fileSegment(f); seg != nil {
			segments = append(segments, seg)
		}
	}
	return segments
}

// fileSegment wraps text-derived segments in a labelled block so the model
// can tell which file each text came from. Inline segments pass through.
func fileSegment(f extract.Extraction) core.Segment {
	if f.Ignored() || f.Segment == nil {
		return nil
	}
	if inline, ok := f.Segment.(core.InlineBinarySegment); ok {
		return inline
	}

	label := Label(f.Kind)
	if f.Failed {
		return core.TextSegment{Text: "\n\nUnable to extract content from " + label + ": " + f.File.OriginalName}
	}
	return core.TextSegment{Text: "\n\nContent from " + label + " (" + f.File.OriginalName + "):\n" + f.Text}
}

// Label names a file kind inside provenance blocks.
func Label(k core.Kind) string {
	switch k {
	case core.KindPDF:
		return "PDF"
	case core.KindDocument:
		return "document"
	case core.KindText:
		return "text file"
	default:
		return string(k) + " file"
	}
}
