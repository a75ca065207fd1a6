// Package extract turns stored uploads into model input: inline binary
// payloads for media files and plain text for PDF, Word and text files.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"filechat/internal/cache"
	"filechat/internal/core"
	"filechat/internal/observability"
)

// Extraction is the outcome of processing one uploaded file.
type Extraction struct {
	File core.UploadedFile
	// Kind is empty when the file's type is not supported and the file is ignored.
	Kind core.Kind
	// MediaType is the type used for classification (declared, or sniffed when
	// the client declared none).
	MediaType string
	// Segment is the model input derived from the file; nil when ignored.
	Segment core.Segment
	// Text is the extracted text, or the placeholder when Failed.
	Text string
	// Failed marks a parse or read failure that was degraded to a placeholder.
	Failed bool
	Err    error
}

// Ignored reports whether the file produced no model input.
func (e Extraction) Ignored() bool {
	return e.Kind == ""
}

// Report returns the per-file summary shown to batch callers. Inline media
// carry no text unless reading them failed, in which case the placeholder is
// reported.
func (e Extraction) Report() core.ExtractionResult {
	r := core.ExtractionResult{
		Name: e.File.OriginalName,
		Type: e.Kind,
		Path: e.File.StoredPath,
	}
	if !e.Kind.Inline() || e.Failed {
		r.ExtractedText = e.Text
	}
	return r
}

// Extractor reads stored uploads from Fs. A nil Cache disables caching.
type Extractor struct {
	Fs    afero.Fs
	Cache cache.Cache
}

// New creates an extractor reading from fs (the OS filesystem when nil).
func New(fs afero.Fs, c cache.Cache) *Extractor {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &Extractor{Fs: fs, Cache: c}
}

// Classify maps a media type to a kind. The first matching rule wins:
// image/audio/video substrings, exact application/pdf, word/openxmlformats
// substrings, exact text/plain. Anything else returns "".
func Classify(mediaType string) core.Kind {
	switch {
	case strings.Contains(mediaType, "image"):
		return core.KindImage
	case strings.Contains(mediaType, "audio"):
		return core.KindAudio
	case strings.Contains(mediaType, "video"):
		return core.KindVideo
	case mediaType == "application/pdf":
		return core.KindPDF
	case strings.Contains(mediaType, "word") || strings.Contains(mediaType, "openxmlformats"):
		return core.KindDocument
	case mediaType == "text/plain":
		return core.KindText
	default:
		return ""
	}
}

// Extract processes one file. It never returns an error: failures are
// recorded on the Extraction and degraded to a placeholder text segment so
// sibling files are unaffected.
func (x *Extractor) Extract(ctx context.Context, f core.UploadedFile) Extraction {
	log := core.Logger(ctx)
	ex := Extraction{File: f, MediaType: f.MediaType}

	data, readErr := afero.ReadFile(x.Fs, f.StoredPath)

	if needsSniffing(ex.MediaType) && readErr == nil {
		ex.MediaType = sniff(data)
	}

	ex.Kind = Classify(ex.MediaType)
	if ex.Kind == "" {
		log.Info("ignoring file with unsupported type", "name", f.OriginalName, "media_type", ex.MediaType)
		observability.ObserveExtraction("ignored", "ignored")
		return ex
	}

	if readErr != nil {
		ex.fail(readErr, fmt.Sprintf("[Unable to read %s file: %s]", ex.Kind, f.OriginalName))
		log.Error("failed to read upload", "name", f.OriginalName, "path", f.StoredPath, "error", readErr)
		observability.ObserveExtraction(string(ex.Kind), "failed")
		return ex
	}

	switch ex.Kind {
	case core.KindImage, core.KindAudio, core.KindVideo:
		ex.Segment = core.InlineBinarySegment{
			Data:      base64.StdEncoding.EncodeToString(data),
			MediaType: ex.MediaType,
		}
	case core.KindText:
		ex.Text = string(data)
		ex.Segment = core.TextSegment{Text: ex.Text}
	case core.KindPDF:
		x.extractText(ctx, &ex, data, "PDF", PDFText)
	case core.KindDocument:
		x.extractText(ctx, &ex, data, "document", DocumentText)
	}

	outcome := "ok"
	if ex.Failed {
		outcome = "failed"
	}
	observability.ObserveExtraction(string(ex.Kind), outcome)
	log.Debug("extracted upload", "name", f.OriginalName, "kind", ex.Kind, "failed", ex.Failed)
	return ex
}

// ExtractAll processes files sequentially, in order.
func (x *Extractor) ExtractAll(ctx context.Context, files []core.UploadedFile) []Extraction {
	out := make([]Extraction, 0, len(files))
	for _, f := range files {
		out = append(out, x.Extract(ctx, f))
	}
	return out
}

func (x *Extractor) extractText(ctx context.Context, ex *Extraction, data []byte, label string, parse func([]byte) (string, error)) {
	log := core.Logger(ctx)
	key := cache.Key(string(ex.Kind), data)

	if text, ok, err := x.Cache.Get(ctx, key); err != nil {
		log.Warn("extraction cache read failed", "error", err)
	} else if ok {
		ex.Text = text
		ex.Segment = core.TextSegment{Text: text}
		return
	}

	text, err := safeParse(parse, data)
	if err != nil {
		ex.fail(err, fmt.Sprintf("[Unable to extract %s content: %v]", label, err))
		log.Error("failed to extract text", "name", ex.File.OriginalName, "kind", ex.Kind, "error", err)
		return
	}

	ex.Text = text
	ex.Segment = core.TextSegment{Text: text}
	if err := x.Cache.Set(ctx, key, text); err != nil {
		log.Warn("extraction cache write failed", "error", err)
	}
}

func (ex *Extraction) fail(err error, placeholder string) {
	ex.Failed = true
	ex.Err = err
	ex.Text = placeholder
	ex.Segment = core.TextSegment{Text: placeholder}
}

// safeParse converts parser panics on malformed input into errors.
func safeParse(parse func([]byte) (string, error), data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("malformed file: %v", r)
		}
	}()
	return parse(data)
}

func needsSniffing(mediaType string) bool {
	return mediaType == "" || mediaType == "application/octet-stream"
}

// sniff detects a media type from content, dropping parameters such as
// "; charset=utf-8" so the exact-match rules still apply.
func sniff(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
