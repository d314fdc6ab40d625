// Package extract turns uploaded files into titled pages of text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shirabe/internal/apperr"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/pkg/utils"
)

// maxTitleLen caps titles derived from page text.
const maxTitleLen = 200

// errNoText is returned when a file parses but every page is blank.
var errNoText = errors.New("document contains no extractable text")

// Extractor extracts pages of plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// extracted is what a format reader returns: an optional document-level title and
// the text of each page in order.
type extracted struct {
	title string
	pages []string
}

// Extract reads the file at path and extracts it like ExtractBytes.
func (e *Extractor) Extract(path string) (*models.DocumentInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Extraction("extract", fmt.Errorf("read file: %w", err))
	}
	return e.ExtractBytes(content, filepath.Base(path))
}

// ExtractBytes extracts pages from content. The format is chosen by the filename's
// extension; unknown extensions are treated as plain text. Failures are
// ExtractionErrors.
func (e *Extractor) ExtractBytes(content []byte, filename string) (*models.DocumentInput, error) {
	var (
		out *extracted
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		out, err = extractPDF(content)
	case ".docx":
		out, err = extractDOCX(content)
	case ".xlsx":
		out, err = extractExcel(content)
	case ".pptx":
		out, err = extractPPTX(content)
	case ".odp":
		out, err = extractODP(content)
	case ".ods":
		out, err = extractODS(content)
	default:
		out, err = extractPlain(content)
	}
	if err != nil {
		return nil, apperr.Extraction("extract", err)
	}
	if !hasText(out.pages) {
		return nil, apperr.Extraction("extract", errNoText)
	}

	doc := &models.DocumentInput{
		Title:    documentTitle(out, filename),
		Filename: filename,
		Pages:    make([]models.PageInput, len(out.pages)),
	}
	for i, text := range out.pages {
		doc.Pages[i] = models.PageInput{Number: i + 1, Text: text}
	}
	return doc, nil
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// documentTitle prefers the document's own title, then its first non-empty line (or
// for PDFs the whole first page), then the base filename.
func documentTitle(out *extracted, filename string) string {
	if t := utils.CollapseWhitespace(out.title); t != "" {
		return utils.Truncate(t, maxTitleLen)
	}
	for _, page := range out.pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		if t := utils.CollapseWhitespace(firstLine(page)); t != "" {
			return utils.Truncate(t, maxTitleLen)
		}
	}
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
