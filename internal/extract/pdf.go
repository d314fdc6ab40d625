package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns one page per PDF page. Pages with no content keep their slot so
// page numbers match the PDF.
func extractPDF(content []byte) (out *extracted, err error) {
	defer func() {
		// The PDF parser panics on some malformed inputs.
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("PDF: malformed document: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	out = &extracted{pages: make([]string, numPages)}
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		out.pages[i] = text
	}

	if info := r.Trailer().Key("Info"); !info.IsNull() {
		out.title = strings.ReplaceAll(info.Key("Title").Text(), "\n", "")
	}
	if out.title == "" && numPages > 0 {
		out.title = strings.TrimSpace(strings.ReplaceAll(out.pages[0], "\n", " "))
	}
	return out, nil
}
