package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const odfContentPath = "content.xml"

// maxRepeatedCells caps table:number-columns-repeated expansion. Sheets pad rows with one
// empty cell repeated to the last column.
const maxRepeatedCells = 256

// extractODF reads content.xml from an OpenDocument package (.odp, .ods). label names the
// format in errors.
func extractODF(content []byte, label string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", label, err)
	}
	for _, f := range zr.File {
		if f.Name != odfContentPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("extract %s: read %s: %w", label, f.Name, err)
		}
		text, err := odfText(data)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", label, err)
		}
		return text, nil
	}
	return "", fmt.Errorf("extract %s: %s not found", label, odfContentPath)
}

func extractODP(content []byte) (string, error) { return extractODF(content, "ODP") }

func extractODS(content []byte) (string, error) { return extractODF(content, "ODS") }

// odfText walks an ODF content.xml. Paragraphs and headings (text:p, text:h) outside tables
// become one line each. Each table row becomes one line of tab-joined cells with trailing
// empty cells dropped; empty rows are skipped.
func odfText(contentXML []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(contentXML))
	var (
		lines     []string
		para      strings.Builder
		paraDepth int

		row      []string
		inRow    bool
		cell     []string
		inCell   bool
		cellReps int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse content: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p", "h":
				if paraDepth == 0 {
					para.Reset()
				}
				paraDepth++
			case "s":
				if paraDepth > 0 {
					para.WriteString(strings.Repeat(" ", odfCount(t, "c")))
				}
			case "tab":
				if paraDepth > 0 {
					para.WriteByte('\t')
				}
			case "line-break":
				if paraDepth > 0 {
					para.WriteByte('\n')
				}
			case "table-row":
				inRow = true
				row = row[:0]
			case "table-cell", "covered-table-cell":
				if inRow {
					inCell = true
					cell = cell[:0]
					cellReps = odfCount(t, "number-columns-repeated")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p", "h":
				if paraDepth == 0 {
					continue
				}
				paraDepth--
				if paraDepth > 0 {
					continue
				}
				if inCell {
					cell = append(cell, para.String())
				} else {
					lines = append(lines, para.String())
				}
			case "table-cell", "covered-table-cell":
				if !inCell {
					continue
				}
				inCell = false
				text := strings.Join(cell, " ")
				for i := 0; i < min(cellReps, maxRepeatedCells); i++ {
					row = append(row, text)
				}
			case "table-row":
				inRow = false
				end := len(row)
				for end > 0 && row[end-1] == "" {
					end--
				}
				if end > 0 {
					lines = append(lines, strings.Join(row[:end], "\t"))
				}
			}
		case xml.CharData:
			if paraDepth > 0 {
				para.Write(t)
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// odfCount reads a positive integer attribute by local name, defaulting to 1.
func odfCount(el xml.StartElement, local string) int {
	for _, a := range el.Attr {
		if a.Name.Local != local {
			continue
		}
		if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
