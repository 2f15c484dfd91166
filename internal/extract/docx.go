package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// wtTag matches <w:t>text</w:t> with any attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// PartName and ContentType may appear in either order.
var (
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// extractDOCX reads word/document.xml through the docx package and joins its
// text runs. Packages it cannot open (no relationships part, or a main part
// named elsewhere in [Content_Types].xml) are read directly from the zip.
func extractDOCX(content []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err == nil {
		defer doc.Close()
		return joinRuns(doc.Editable().GetContent()), nil
	}

	zr, zerr := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if zerr != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	docPath := mainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	xml, err := readZipFile(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	return joinRuns(xml), nil
}

func joinRuns(xml string) string {
	parts := wtTag.FindAllStringSubmatch(xml, -1)
	runs := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(html.UnescapeString(p[1])); t != "" {
			runs = append(runs, t)
		}
	}
	return strings.Join(runs, " ")
}

// mainDocumentPath returns the main part named in [Content_Types].xml without
// the leading slash, or "".
func mainDocumentPath(zr *zip.Reader) string {
	ct, err := readZipFile(zr, contentTypesPath)
	if err != nil {
		return ""
	}
	if m := partNameRe.FindStringSubmatch(ct); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(ct); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

func readZipFile(zr *zip.Reader, name string) (string, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%s not found", name)
}
