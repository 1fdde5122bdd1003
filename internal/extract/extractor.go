// Package extract turns uploaded documents into plain text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/studybuddy/internal/models"
)

// Format identifies a supported document encoding.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatDOCX  Format = "docx"
	FormatPlain Format = "plain"
	FormatXLSX  Format = "xlsx"
	FormatPPTX  Format = "pptx"
	FormatODP   Format = "odp"
	FormatODS   Format = "ods"
)

var extensionFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".txt":  FormatPlain,
	".md":   FormatPlain,
	".rst":  FormatPlain,
	".xlsx": FormatXLSX,
	".pptx": FormatPPTX,
	".odp":  FormatODP,
	".ods":  FormatODS,
}

// SupportedExtensions lists the file extensions DetectFormat accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".rst", ".xlsx", ".pptx", ".odp", ".ods"}
}

// DetectFormat maps a filename to its Format by extension, case-insensitively.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := extensionFormats[ext]; ok {
		return f, nil
	}
	if ext == "" {
		return "", fmt.Errorf("%q has no extension: %w", filepath.Base(filename), models.ErrUnsupportedContent)
	}
	return "", fmt.Errorf("extension %s: %w", ext, models.ErrUnsupportedContent)
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	if _, err := DetectFormat(path); err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	format, err := DetectFormat("document" + ext)
	if err != nil {
		return "", err
	}
	return e.ExtractFormat(format, content)
}

// ExtractFormat extracts text from content encoded as format. Unknown formats fail with
// models.ErrUnsupportedContent.
func (e *Extractor) ExtractFormat(format Format, content []byte) (string, error) {
	switch format {
	case FormatPDF:
		return extractPDF(content)
	case FormatDOCX:
		return extractDOCX(content)
	case FormatXLSX:
		return extractExcel(content)
	case FormatPPTX:
		return extractPPTX(content)
	case FormatODP:
		return extractODP(content)
	case FormatODS:
		return extractODS(content)
	case FormatPlain:
		return extractPlain(content)
	default:
		return "", fmt.Errorf("format %q: %w", format, models.ErrUnsupportedContent)
	}
}
