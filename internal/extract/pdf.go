package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText returns the text of every page of a PDF, pages separated by a
// blank line. Pages that fail to decode (image-only or damaged) are skipped
// as long as another page yields text; a document whose structure cannot be
// read, or whose every page fails, is an error.
func PDFText(data []byte) (string, error) {
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	n := rdr.NumPage()
	if n == 0 {
		return "", errors.New("pdf has no pages")
	}

	return collectPages(n, func(i int) (string, bool, error) {
		pg := rdr.Page(i)
		if pg.V.IsNull() {
			return "", false, nil
		}
		txt, err := pg.GetPlainText(nil)
		return txt, true, err
	})
}

// collectPages joins the trimmed text of pages 1..n. page reports whether
// page i exists. Decode errors are tolerated unless no page produced text.
func collectPages(n int, page func(i int) (string, bool, error)) (string, error) {
	var (
		pages    = make([]string, 0, n)
		failed   int
		firstErr error
	)
	for i := 1; i <= n; i++ {
		txt, ok, err := page(i)
		if !ok {
			continue
		}
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i, err)
			}
			continue
		}
		if s := strings.TrimSpace(txt); s != "" {
			pages = append(pages, s)
		}
	}

	if len(pages) == 0 && failed > 0 {
		return "", fmt.Errorf("no page of %d could be decoded: %w", n, firstErr)
	}
	return strings.Join(pages, "\n\n"), nil
}
