// Package extract turns uploaded files into plain UTF-8 text keyed by file
// extension. Plain text and markdown pass through directly; binary office
// formats and PDFs go through the external parsing service.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hsn0918/netkb/internal/clients/doc2x"
	"github.com/hsn0918/netkb/pkg/textutil"
)

// Extractor converts one file format into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry dispatches extraction by normalized file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry builds the default format table. The parser may be nil, in
// which case binary formats are rejected at extraction time.
func NewRegistry(parser doc2x.Parser) *Registry {
	plain := plainText{}
	binary := parsedDocument{parser: parser}

	return &Registry{byExt: map[string]Extractor{
		"txt":  plain,
		"md":   plain,
		"pdf":  binary,
		"doc":  binary,
		"docx": binary,
		"xls":  binary,
		"xlsx": binary,
	}}
}

// Supported reports whether the extension has an extractor.
func (r *Registry) Supported(ext string) bool {
	_, ok := r.byExt[normalizeExt(ext)]
	return ok
}

// Extract runs the extractor for the given extension.
func (r *Registry) Extract(ctx context.Context, ext string, data []byte) (string, error) {
	ex, ok := r.byExt[normalizeExt(ext)]
	if !ok {
		return "", fmt.Errorf("extract: unsupported file type %q", ext)
	}
	return ex.Extract(ctx, data)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// plainText passes the bytes through, sanitizing invalid UTF-8.
type plainText struct{}

func (plainText) Extract(_ context.Context, data []byte) (string, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = textutil.Sanitize(text)
	}
	return text, nil
}

// parsedDocument delegates to the external parsing service.
type parsedDocument struct {
	parser doc2x.Parser
}

func (p parsedDocument) Extract(ctx context.Context, data []byte) (string, error) {
	if p.parser == nil {
		return "", fmt.Errorf("extract: document parsing service not configured")
	}
	return p.parser.ParseToMarkdown(ctx, data)
}
