package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func docxXML(runs string) string {
	return `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + runs + `</w:body></w:document>`
}

func zipFiles(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// packagedDocx has the parts a word processor writes, so the docx package opens it.
func packagedDocx(t *testing.T, runs string) []byte {
	return zipFiles(t, map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml":            docxXML(runs),
	})
}

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Hello world\nLine 2"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Hello world\nLine 2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), "txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "helloworld" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxPackaged(t *testing.T) {
	e := NewExtractor()
	content := packagedDocx(t, `<w:p w:rsidR="00AB"><w:r><w:t>Senior</w:t></w:r><w:r><w:t xml:space="preserve"> Go </w:t></w:r><w:r><w:t>R&amp;D engineer</w:t></w:r></w:p>`)
	got, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Senior Go R&D engineer" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxWithoutRelationships(t *testing.T) {
	e := NewExtractor()
	content := zipFiles(t, map[string]string{
		"word/document.xml": docxXML(`<w:p><w:r><w:t>Searchable docx content</w:t></w:r></w:p>`),
	})
	got, err := e.ExtractBytes(content, ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Searchable docx content" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxMainPartElsewhere(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"part name first", `<Override PartName="/word/document2.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`},
		{"content type first", `<Override ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml" PartName="/word/document2.xml"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := zipFiles(t, map[string]string{
				"[Content_Types].xml": `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + tt.override + `</Types>`,
				"word/document2.xml":  docxXML(`<w:p><w:r><w:t>Content from document2</w:t></w:r></w:p>`),
			})
			got, err := NewExtractor().ExtractBytes(content, ".docx")
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != "Content from document2" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestExtractBytes_docxNotZip(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error")
	}
}

func TestExtractBytes_pdfInvalid(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("%PDF-1.4 truncated"), ".pdf"); err == nil {
		t.Error("expected error")
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("x"), ".xlsx"); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestExtractText(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		name     string
		filename string
		content  []byte
		want     string
	}{
		{"txt normalized", "CV.TXT", []byte("  Python\n\tFlask   Developer "), "python flask developer"},
		{"docx normalized", "cv.docx", packagedDocx(t, `<w:p><w:r><w:t>Go</w:t></w:r><w:r><w:t>KUBERNETES</w:t></w:r></w:p>`), "go kubernetes"},
		{"unsupported type", "cv.xlsx", []byte("python"), ""},
		{"no extension", "cv", []byte("python"), ""},
		{"broken pdf", "cv.pdf", []byte("garbage"), ""},
		{"empty txt", "cv.txt", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.ExtractText(tt.content, tt.filename); got != tt.want {
				t.Errorf("ExtractText(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	e := NewExtractor()
	for name, want := range map[string]bool{
		"a.pdf": true, "a.DOCX": true, "a.txt": true,
		"a.md": false, "a.xlsx": false, "a": false, "": false,
	} {
		if got := e.Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}

	custom := NewExtractor(WithExtensions(".TXT", "md"))
	if !custom.Supported("notes.md") || custom.Supported("cv.pdf") {
		t.Errorf("custom extensions not applied: %v", custom.Extensions())
	}
	if got := custom.Extensions(); len(got) != 2 || got[0] != "md" || got[1] != "txt" {
		t.Errorf("Extensions() = %v", got)
	}
}

func TestExtract_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jd.txt")
	if err := os.WriteFile(path, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "File content" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}
