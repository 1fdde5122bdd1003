package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

const pptxSlidePrefix = "ppt/slides/slide"

// slideNumber returns N for a ppt/slides/slideN.xml entry and false for anything else,
// including the slide relationship parts under ppt/slides/_rels.
func slideNumber(name string) (int, bool) {
	if path.Dir(name) != "ppt/slides" || !strings.HasPrefix(name, pptxSlidePrefix) || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePrefix), ".xml"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// extractPPTX returns the text of every slide in slide-number order, one DrawingML
// paragraph per line. Slides without text are skipped.
func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if n, ok := slideNumber(f.Name); ok {
			slides = append(slides, slide{num: n, file: f})
		}
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("extract PPTX: no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var texts []string
	for _, s := range slides {
		data, err := readZipFile(s.file)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: read %s: %w", s.file.Name, err)
		}
		text, err := docxParagraphs(data)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %s: %w", s.file.Name, err)
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n"), nil
}
