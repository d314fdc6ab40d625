package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxCorePath holds the package metadata, including dc:title.
const docxCorePath = "docProps/core.xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	// wtTag matches <w:t>text</w:t> with any attributes.
	wtTag = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	// wpEnd marks paragraph boundaries so paragraphs become lines.
	wpEnd = regexp.MustCompile(`</w:p>`)
	// dcTitle matches the title in docProps/core.xml.
	dcTitle = regexp.MustCompile(`<dc:title[^>]*>([^<]*)</dc:title>`)

	// Override elements in [Content_Types].xml, in both attribute orders.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, contentTypesPath)
	if err != nil || data == nil {
		return ""
	}
	content := string(data)
	for _, re := range []*regexp.Regexp{partNameRe, partNameRe2} {
		if m := re.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

// extractDOCX returns the document body as a single page, one line per paragraph.
// Text is taken from every <w:t> node so run and paragraph attributes do not matter.
func extractDOCX(content []byte) (*extracted, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return nil, err
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return nil, fmt.Errorf("DOCX: %w", err)
	}
	if docXML == nil {
		return nil, fmt.Errorf("DOCX: %s not found", docPath)
	}

	var lines []string
	for _, para := range wpEnd.Split(string(docXML), -1) {
		if line := joinMatches(para, wtTag); line != "" {
			lines = append(lines, line)
		}
	}

	out := &extracted{pages: []string{strings.Join(lines, "\n")}}
	if core, err := readZipFile(zr, docxCorePath); err == nil && core != nil {
		out.title = joinMatches(string(core), dcTitle)
	}
	return out, nil
}
