package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filechat/internal/cache"
	"filechat/internal/core"
)

// buildPDF writes a one-page PDF showing text in Helvetica, with a correct
// cross-reference table.
func buildPDF(text string) []byte {
	content := "BT /F1 24 Tf 72 720 Td (" + text + ") Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// buildDocx writes a minimal .docx archive whose body is documentXML.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)

	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Quarterly</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve"> report</w:t></w:r></w:p>
<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>
</w:body>
</w:document>`

func newExtractor(t *testing.T, files map[string][]byte) *Extractor {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, data := range files {
		require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	}
	return New(fs, nil)
}

func upload(name, mediaType string) core.UploadedFile {
	return core.UploadedFile{OriginalName: name, StoredPath: "uploads/" + name, MediaType: mediaType}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		mediaType string
		expected  core.Kind
	}{
		{"image/png", core.KindImage},
		{"image/svg+xml", core.KindImage},
		{"audio/mpeg", core.KindAudio},
		{"video/mp4", core.KindVideo},
		{"application/pdf", core.KindPDF},
		{"application/msword", core.KindDocument},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", core.KindDocument},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", core.KindDocument},
		{"text/plain", core.KindText},
		{"text/plain; charset=utf-8", ""},
		{"application/pdf; x=y", ""},
		{"text/markdown", ""},
		{"application/zip", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.mediaType))
		})
	}
}

func TestExtract_InlineBinaryRoundTrip(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x10, 0x42}

	for _, mediaType := range []string{"image/png", "audio/wav", "video/mp4", "image/svg+xml"} {
		t.Run(mediaType, func(t *testing.T) {
			x := newExtractor(t, map[string][]byte{"uploads/media.bin": payload})

			ex := x.Extract(context.Background(), upload("media.bin", mediaType))
			require.False(t, ex.Failed)

			seg, ok := ex.Segment.(core.InlineBinarySegment)
			require.True(t, ok, "expected inline binary segment, got %T", ex.Segment)
			assert.Equal(t, mediaType, seg.MediaType)

			decoded, err := base64.StdEncoding.DecodeString(seg.Data)
			require.NoError(t, err)
			assert.Equal(t, payload, decoded)

			assert.Empty(t, ex.Report().ExtractedText)
		})
	}
}

func TestExtract_PlainText(t *testing.T) {
	x := newExtractor(t, map[string][]byte{"uploads/notes.txt": []byte("hello world")})

	ex := x.Extract(context.Background(), upload("notes.txt", "text/plain"))
	assert.Equal(t, core.KindText, ex.Kind)
	assert.Equal(t, core.TextSegment{Text: "hello world"}, ex.Segment)

	report := ex.Report()
	assert.Equal(t, core.ExtractionResult{
		Name:          "notes.txt",
		Type:          core.KindText,
		Path:          "uploads/notes.txt",
		ExtractedText: "hello world",
	}, report)
}

func TestExtract_PDF(t *testing.T) {
	x := newExtractor(t, map[string][]byte{
		"uploads/good.pdf":    buildPDF("Hello PDF"),
		"uploads/corrupt.pdf": []byte("%PDF-1.4\nthis is not really a pdf"),
	})

	t.Run("well formed", func(t *testing.T) {
		ex := x.Extract(context.Background(), upload("good.pdf", "application/pdf"))
		require.False(t, ex.Failed, "unexpected error: %v", ex.Err)
		assert.Equal(t, core.KindPDF, ex.Kind)

		seg, ok := ex.Segment.(core.TextSegment)
		require.True(t, ok)
		assert.NotEmpty(t, seg.Text)
		assert.Contains(t, seg.Text, "Hello")
	})

	t.Run("corrupted", func(t *testing.T) {
		ex := x.Extract(context.Background(), upload("corrupt.pdf", "application/pdf"))
		assert.True(t, ex.Failed)
		assert.Error(t, ex.Err)

		seg, ok := ex.Segment.(core.TextSegment)
		require.True(t, ok)
		assert.Contains(t, seg.Text, "Unable to extract")
		assert.Equal(t, seg.Text, ex.Report().ExtractedText)
	})
}

func TestCollectPages(t *testing.T) {
	broken := errors.New("malformed content stream")

	t.Run("skips failing pages when others decode", func(t *testing.T) {
		text, err := collectPages(3, func(i int) (string, bool, error) {
			if i == 2 {
				return "", true, broken
			}
			return fmt.Sprintf("  page %d  ", i), true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "page 1\n\npage 3", text)
	})

	t.Run("every page failing is an error", func(t *testing.T) {
		_, err := collectPages(2, func(i int) (string, bool, error) {
			return "", true, broken
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, broken)
		assert.Contains(t, err.Error(), "page 1")
	})

	t.Run("blank pages are not failures", func(t *testing.T) {
		text, err := collectPages(2, func(i int) (string, bool, error) {
			return "", i == 1, nil
		})
		require.NoError(t, err)
		assert.Empty(t, text)
	})
}

func TestExtract_Document(t *testing.T) {
	x := newExtractor(t, map[string][]byte{
		"uploads/report.docx": buildDocx(t, sampleDocumentXML),
		"uploads/legacy.doc":  []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1},
	})

	ex := x.Extract(context.Background(), upload("report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	require.False(t, ex.Failed, "unexpected error: %v", ex.Err)
	assert.Equal(t, core.KindDocument, ex.Kind)
	assert.Equal(t, "Quarterly\t report\n\nLine one\nLine two", ex.Text)

	legacy := x.Extract(context.Background(), upload("legacy.doc", "application/msword"))
	assert.True(t, legacy.Failed)
	assert.Contains(t, legacy.Text, "Unable to extract document content")
}

func TestDocumentText_SkipsTabStopDefinitions(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Intro</w:t></w:r></w:p>
<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/><w:tab w:val="right" w:pos="9000"/></w:tabs></w:pPr><w:r><w:t>Title</w:t></w:r><w:r><w:tab/><w:t>Page 1</w:t></w:r></w:p>
</w:body>
</w:document>`

	text, err := DocumentText(buildDocx(t, doc))
	require.NoError(t, err)
	assert.Equal(t, "Intro\n\nTitle\tPage 1", text)
}

func TestDocumentText_KeepsTextAroundTextBoxes(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:v="urn:schemas-microsoft-com:vml">
<w:body>
<w:p><w:r><w:t>Before box.</w:t></w:r><w:r><w:pict><v:shape><v:textbox><w:txbxContent><w:p><w:r><w:t>Inside box</w:t></w:r></w:p></w:txbxContent></v:textbox></v:shape></w:pict></w:r><w:r><w:t xml:space="preserve"> After box.</w:t></w:r></w:p>
<w:p><w:r><w:t>Closing</w:t></w:r></w:p>
</w:body>
</w:document>`

	text, err := DocumentText(buildDocx(t, doc))
	require.NoError(t, err)
	assert.Equal(t, "Inside box\n\nBefore box. After box.\n\nClosing", text)
}

func TestExtract_UnsupportedTypeIgnored(t *testing.T) {
	x := newExtractor(t, map[string][]byte{"uploads/a.zip": []byte("PK\x03\x04")})

	ex := x.Extract(context.Background(), upload("a.zip", "application/zip"))
	assert.True(t, ex.Ignored())
	assert.Nil(t, ex.Segment)
}

func TestExtract_SniffsUndeclaredTypes(t *testing.T) {
	x := newExtractor(t, map[string][]byte{
		"uploads/doc":   buildPDF("Sniffed"),
		"uploads/notes": []byte("just some words\n"),
	})

	pdfEx := x.Extract(context.Background(), upload("doc", "application/octet-stream"))
	assert.Equal(t, core.KindPDF, pdfEx.Kind)
	assert.Equal(t, "application/pdf", pdfEx.MediaType)

	txtEx := x.Extract(context.Background(), upload("notes", ""))
	assert.Equal(t, core.KindText, txtEx.Kind)
	assert.Equal(t, "just some words\n", txtEx.Text)
}

func TestExtract_MissingFileDegrades(t *testing.T) {
	x := newExtractor(t, nil)

	ex := x.Extract(context.Background(), upload("gone.png", "image/png"))
	assert.True(t, ex.Failed)
	assert.Equal(t, core.KindImage, ex.Kind)
	assert.Equal(t, core.TextSegment{Text: "[Unable to read image file: gone.png]"}, ex.Segment)
	assert.Equal(t, "[Unable to read image file: gone.png]", ex.Report().ExtractedText)
}

func TestExtractAll_FailureDoesNotAffectSiblings(t *testing.T) {
	x := newExtractor(t, map[string][]byte{
		"uploads/bad.pdf": []byte("garbage"),
		"uploads/a.txt":   []byte("sibling text"),
		"uploads/b.png":   []byte("png"),
	})

	out := x.ExtractAll(context.Background(), []core.UploadedFile{
		upload("bad.pdf", "application/pdf"),
		upload("a.txt", "text/plain"),
		upload("b.png", "image/png"),
	})

	require.Len(t, out, 3)
	assert.True(t, out[0].Failed)
	assert.Equal(t, "sibling text", out[1].Text)
	assert.False(t, out[1].Failed)
	assert.IsType(t, core.InlineBinarySegment{}, out[2].Segment)
}

func TestExtract_UsesCache(t *testing.T) {
	data := []byte("not a parsable pdf")
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "uploads/cached.pdf", data, 0o644))

	c := cache.NewLocalCache(cache.LocalConfig{})
	require.NoError(t, c.Set(context.Background(), cache.Key(string(core.KindPDF), data), "text from cache"))

	x := New(fs, c)
	ex := x.Extract(context.Background(), upload("cached.pdf", "application/pdf"))
	assert.False(t, ex.Failed)
	assert.Equal(t, "text from cache", ex.Text)
}

func TestExtract_StoresParsedTextInCache(t *testing.T) {
	data := buildDocx(t, sampleDocumentXML)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "uploads/r.docx", data, 0o644))

	c := cache.NewLocalCache(cache.LocalConfig{})
	x := New(fs, c)
	x.Extract(context.Background(), upload("r.docx", "application/msword"))

	text, ok, err := c.Get(context.Background(), cache.Key(string(core.KindDocument), data))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, text, "Quarterly")
}

func TestSafeParse_RecoversPanics(t *testing.T) {
	_, err := safeParse(func([]byte) (string, error) { panic("index out of range") }, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index out of range")

	_, err = safeParse(func([]byte) (string, error) { return "", errors.New("plain") }, nil)
	assert.EqualError(t, err, "plain")
}

func TestDocumentText_MissingBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = DocumentText(buf.Bytes())
	assert.Error(t, err)
}
