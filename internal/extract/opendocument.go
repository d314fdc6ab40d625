package extract

import (
	"fmt"
	"regexp"
)

// odfContentPath is the main content inside OpenDocument zips.
const odfContentPath = "content.xml"

// OpenDocument text elements (with optional attributes). Separate patterns keep
// opening and closing tags paired.
var (
	odfTextP    = regexp.MustCompile(`<text:p(?:\s[^>]*)?>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span(?:\s[^>]*)?>([^<]*)</text:span>`)
	odfTextH    = regexp.MustCompile(`<text:h(?:\s[^>]*)?>([^<]*)</text:h>`)
)

func readODFContent(content []byte, format string) (string, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return "", err
	}
	data, err := readZipFile(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", format, err)
	}
	if data == nil {
		return "", fmt.Errorf("%s: %s not found", format, odfContentPath)
	}
	return string(data), nil
}

// extractODP returns the text of an OpenDocument presentation as a single page.
func extractODP(content []byte) (*extracted, error) {
	s, err := readODFContent(content, "ODP")
	if err != nil {
		return nil, err
	}
	return &extracted{pages: []string{joinMatches(s, odfTextP, odfTextSpan, odfTextH)}}, nil
}

// extractODS returns the cell text of an OpenDocument spreadsheet as a single page.
func extractODS(content []byte) (*extracted, error) {
	s, err := readODFContent(content, "ODS")
	if err != nil {
		return nil, err
	}
	return &extracted{pages: []string{joinMatches(s, odfTextP, odfTextSpan)}}, nil
}
