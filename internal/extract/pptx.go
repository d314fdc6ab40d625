package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// slidePath matches ppt/slides/slideN.xml and captures N.
var slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)

// extractPPTX returns one page per slide, ordered by slide number.
func extractPPTX(content []byte) (*extracted, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePath.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	out := &extracted{pages: make([]string, 0, len(slides))}
	for _, s := range slides {
		data, err := readZipFile(zr, s.name)
		if err != nil {
			return nil, fmt.Errorf("PPTX: %w", err)
		}
		out.pages = append(out.pages, joinMatches(string(data), atTag))
	}
	if core, err := readZipFile(zr, docxCorePath); err == nil && core != nil {
		out.title = joinMatches(string(core), dcTitle)
	}
	return out, nil
}
