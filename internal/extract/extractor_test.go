package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/studybuddy/internal/models"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"notes.pdf", FormatPDF},
		{"Notes.PDF", FormatPDF},
		{"essay.docx", FormatDOCX},
		{"readme.md", FormatPlain},
		{"lecture.txt", FormatPlain},
		{"guide.rst", FormatPlain},
		{"grades.xlsx", FormatXLSX},
		{"lecture.pptx", FormatPPTX},
		{"Lecture.ODP", FormatODP},
		{"budget.ods", FormatODS},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name)
		if err != nil {
			t.Errorf("DetectFormat(%q): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestDetectFormat_unsupported(t *testing.T) {
	for _, name := range []string{"slides.ppt", "photo.png", "archive", "legacy.doc"} {
		if _, err := DetectFormat(name); !errors.Is(err, models.ErrUnsupportedContent) {
			t.Errorf("DetectFormat(%q) err=%v, want ErrUnsupportedContent", name, err)
		}
	}
}

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	content := []byte("Hello world\nLine 2")
	got, err := e.ExtractBytes(content, ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainUTF8(t *testing.T) {
	e := NewExtractor()
	content := []byte("caf\xc3\xa9") // valid UTF-8
	got, err := e.ExtractBytes(content, ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "café" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	content := []byte("hello\x80world") // invalid UTF-8
	got, err := e.ExtractBytes(content, ".rst")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	e := NewExtractor()
	got, err := e.ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_plainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor()
	got, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "File content" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_excelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	e := NewExtractor()
	got, err := e.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Searchable text" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract("/nonexistent/path/file.txt")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestExtractBytes_unknownExtension(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte("raw content"), ".xyz")
	if !errors.Is(err, models.ErrUnsupportedContent) {
		t.Errorf("err=%v, want ErrUnsupportedContent", err)
	}
}

func TestExtractFormat_unknown(t *testing.T) {
	_, err := NewExtractor().ExtractFormat(Format("image"), []byte{0x89, 'P', 'N', 'G'})
	if !errors.Is(err, models.ErrUnsupportedContent) {
		t.Errorf("err=%v, want ErrUnsupportedContent", err)
	}
}

func TestExtractBytes_invalidPDF(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a pdf"), ".pdf"); err == nil {
		t.Error("expected error for malformed PDF")
	}
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// docxWithBody returns a .docx zip whose word/document.xml body is the given XML.
func docxWithBody(body string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

// minimalDocx returns a minimal .docx zip bytes with word/document.xml containing the given text in <w:t> tags.
func minimalDocx(text string) []byte {
	return docxWithBody(`<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`)
}

// minimalDocxWithContentTypes returns a .docx zip with [Content_Types].xml pointing to a custom document path.
func minimalDocxWithContentTypes(text, docPath string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	ct, _ := w.Create("[Content_Types].xml")
	_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override PartName="/` + docPath + `" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`))
	fw, _ := w.Create(docPath)
	_, _ = fw.Write([]byte(`<w:document ` + wordNS + `><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_docx(t *testing.T) {
	e := NewExtractor()
	content := minimalDocx("Searchable docx content")
	got, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Searchable docx content" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxParagraphsAndRuns(t *testing.T) {
	body := `<w:p w:rsidR="00AB12"><w:r><w:t xml:space="preserve">Cell </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>biology</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Chapter</w:t><w:tab/><w:t>2</w:t></w:r></w:p>` +
		`<w:p/>` +
		`<w:p><w:r><w:t>Fish &amp; chips</w:t></w:r></w:p>`
	got, err := NewExtractor().ExtractBytes(docxWithBody(body), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	want := "Cell biology\nChapter\t2\n\nFish & chips"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_docxWithDocument2(t *testing.T) {
	e := NewExtractor()
	content := minimalDocxWithContentTypes("Content from document2", "word/document2.xml")
	got, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Content from document2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxContentTypesReversedOrder(t *testing.T) {
	e := NewExtractor()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	ct, _ := w.Create("[Content_Types].xml")
	_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document3.xml"/>
</Types>`))
	fw, _ := w.Create("word/document3.xml")
	_, _ = fw.Write([]byte(`<w:document ` + wordNS + `><w:body><w:p><w:r><w:t>Reversed order test</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()

	got, err := e.ExtractBytes(buf.Bytes(), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Reversed order test" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxNotZip(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("plain bytes"), ".docx"); err == nil {
		t.Error("expected error for non-zip docx")
	}
}

func TestExtractBytes_docxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/styles.xml")
	_, _ = fw.Write([]byte(`<styles/>`))
	_ = w.Close()
	if _, err := NewExtractor().ExtractBytes(buf.Bytes(), ".docx"); err == nil {
		t.Error("expected error when document part is missing")
	}
}

// zipWith returns a zip archive holding the given name/content entries in order.
func zipWith(t *testing.T, entries ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e[0])
		if err != nil {
			t.Fatalf("Create %s: %v", e[0], err)
		}
		if _, err := fw.Write([]byte(e[1])); err != nil {
			t.Fatalf("Write %s: %v", e[0], err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

const slideNS = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

func slideXML(paragraphs ...string) string {
	var body string
	for _, p := range paragraphs {
		body += `<a:p><a:r><a:t>` + p + `</a:t></a:r></a:p>`
	}
	return `<p:sld ` + slideNS + `><p:cSld><p:spTree><p:sp><p:txBody>` + body + `</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func TestExtractBytes_pptxSlideOrder(t *testing.T) {
	content := zipWith(t,
		[2]string{"ppt/slides/slide10.xml", slideXML("Ten")},
		[2]string{"ppt/slides/slide2.xml", slideXML("Photosynthesis", "Light &amp; water")},
		[2]string{"ppt/slides/_rels/slide1.xml.rels", `<Relationships/>`},
		[2]string{"ppt/slides/slide1.xml", slideXML("Cell biology")},
		[2]string{"ppt/slideLayouts/slideLayout1.xml", slideXML("Layout placeholder")},
		[2]string{"ppt/slides/slide3.xml", slideXML()},
	)
	got, err := NewExtractor().ExtractBytes(content, ".pptx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	want := "Cell biology\nPhotosynthesis\nLight & water\nTen"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_pptxNoSlides(t *testing.T) {
	content := zipWith(t, [2]string{"ppt/presentation.xml", `<p:presentation/>`})
	if _, err := NewExtractor().ExtractBytes(content, ".pptx"); err == nil {
		t.Error("expected error for presentation without slides")
	}
}

const odfNS = `xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
	`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" ` +
	`xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" ` +
	`xmlns:draw="urn:oasis:names:tc:opendocument:xmlns:drawing:1.0"`

func odfContent(body string) string {
	return `<office:document-content ` + odfNS + `><office:body>` + body + `</office:body></office:document-content>`
}

func TestExtractBytes_odp(t *testing.T) {
	body := `<office:presentation>` +
		`<draw:page draw:name="page1"><draw:frame><draw:text-box>` +
		`<text:h>Mitosis</text:h>` +
		`<text:p>Pro<text:span>phase</text:span> then<text:s text:c="2"/>meta<text:tab/>phase</text:p>` +
		`</draw:text-box></draw:frame></draw:page>` +
		`<draw:page draw:name="page2"><draw:frame><draw:text-box>` +
		`<text:p>Line one<text:line-break/>Line two</text:p>` +
		`</draw:text-box></draw:frame></draw:page>` +
		`</office:presentation>`
	content := zipWith(t,
		[2]string{"mimetype", "application/vnd.oasis.opendocument.presentation"},
		[2]string{"content.xml", odfContent(body)},
	)
	got, err := NewExtractor().ExtractBytes(content, ".odp")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	want := "Mitosis\nProphase then  meta\tphase\nLine one\nLine two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_ods(t *testing.T) {
	body := `<office:spreadsheet><table:table table:name="Sheet1">` +
		`<table:table-row>` +
		`<table:table-cell><text:p>Topic</text:p></table:table-cell>` +
		`<table:table-cell><text:p>Score</text:p></table:table-cell>` +
		`</table:table-row>` +
		`<table:table-row>` +
		`<table:table-cell><text:p>Algebra</text:p></table:table-cell>` +
		`<table:table-cell table:number-columns-repeated="2"/>` +
		`<table:table-cell><text:p>90</text:p></table:table-cell>` +
		`<table:table-cell table:number-columns-repeated="16380"/>` +
		`</table:table-row>` +
		`<table:table-row table:number-rows-repeated="1048574"><table:table-cell table:number-columns-repeated="16384"/></table:table-row>` +
		`</table:table></office:spreadsheet>`
	content := zipWith(t,
		[2]string{"mimetype", "application/vnd.oasis.opendocument.spreadsheet"},
		[2]string{"content.xml", odfContent(body)},
	)
	got, err := NewExtractor().ExtractBytes(content, ".ods")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	want := "Topic\tScore\nAlgebra\t\t\t90"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractBytes_odfMissingContent(t *testing.T) {
	content := zipWith(t, [2]string{"mimetype", "application/vnd.oasis.opendocument.spreadsheet"})
	for _, ext := range []string{".ods", ".odp"} {
		if _, err := NewExtractor().ExtractBytes(content, ext); err == nil {
			t.Errorf("%s: expected error when content.xml is missing", ext)
		}
	}
}

func TestExtractBytes_odfMalformedXML(t *testing.T) {
	content := zipWith(t, [2]string{"content.xml", `<office:document-content><text:p>unclosed`})
	if _, err := NewExtractor().ExtractBytes(content, ".odp"); err == nil {
		t.Error("expected error for malformed content.xml")
	}
}
