// Package extract turns uploaded resume and job description files into text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/textnorm"
)

// DefaultExtensions are the upload types accepted when none are configured.
var DefaultExtensions = []string{"pdf", "docx", "txt"}

// Extractor extracts text from the allowed document types.
type Extractor struct {
	allowed map[string]bool
	logger  *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used to report extraction failures.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithExtensions restricts the accepted types. Extensions may carry a leading dot.
func WithExtensions(exts ...string) Option {
	return func(e *Extractor) {
		if len(exts) == 0 {
			return
		}
		e.allowed = make(map[string]bool, len(exts))
		for _, ext := range exts {
			e.allowed[normExt(ext)] = true
		}
	}
}

// NewExtractor returns an Extractor accepting DefaultExtensions unless configured otherwise.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	WithExtensions(DefaultExtensions...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func normExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// Ext returns the lowercased extension of filename without the dot.
func Ext(filename string) string {
	return normExt(filepath.Ext(filename))
}

// Supported reports whether filename has an accepted extension.
func (e *Extractor) Supported(filename string) bool {
	return e.allowed[Ext(filename)]
}

// Extensions lists the accepted extensions, sorted.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.allowed))
	for ext := range e.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ExtractText returns the normalized text of content. Unsupported types and
// extraction failures yield "".
func (e *Extractor) ExtractText(content []byte, filename string) string {
	if !e.Supported(filename) {
		return ""
	}
	text, err := e.ExtractBytes(content, Ext(filename))
	if err != nil {
		e.logger.Warn("text extraction failed", zap.String("file", filename), zap.Error(err))
		return ""
	}
	return textnorm.Normalize(text)
}

// Extract reads the file at path and returns its raw text.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, Ext(path))
}

// ExtractBytes extracts the raw text of content by extension (with or without the dot).
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch normExt(ext) {
	case "pdf":
		return extractPDF(content)
	case "docx":
		return extractDOCX(content)
	case "txt", "md", "":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("unsupported file type: %s", normExt(ext))
	}
}
