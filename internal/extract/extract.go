// Package extract turns uploaded file bytes into plain text.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"docmind/internal/rag"
)

// File is an uploaded document as received from the caller.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

func (f File) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// Extractor converts a file to text. Failures wrap rag.ErrExtraction.
type Extractor interface {
	Extract(ctx context.Context, file File) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, file File) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, file File) (string, error) {
	return f(ctx, file)
}

func extractionError(kind string, err error) error {
	return fmt.Errorf("%w: %s: %v", rag.ErrExtraction, kind, err)
}
