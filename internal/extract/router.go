package extract

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"docmind/internal/ai"
)

var plainTextExts = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
}

func IsPlainText(file File) bool {
	if plainTextExts[file.Ext()] {
		return true
	}
	return strings.HasPrefix(strings.ToLower(file.MimeType), "text/")
}

// TextExtractor passes UTF-8 text through unchanged.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, file File) (string, error) {
	if !utf8.Valid(file.Data) {
		return "", extractionError("text", errors.New("file is not valid UTF-8"))
	}
	return string(file.Data), nil
}

// MultimodalExtractor asks a multimodal chat model to transcribe the file.
type MultimodalExtractor struct {
	client *ai.OpenAICompatibleClient
	cfg    ai.ChatConfig
}

func NewMultimodalExtractor(client *ai.OpenAICompatibleClient, cfg ai.ChatConfig) *MultimodalExtractor {
	return &MultimodalExtractor{client: client, cfg: cfg}
}

func (m *MultimodalExtractor) Extract(ctx context.Context, file File) (string, error) {
	text, err := m.client.ExtractText(ctx, m.cfg, file.Name, file.MimeType, file.Data)
	if err != nil {
		return "", extractionError("multimodal", err)
	}
	return text, nil
}

// Router picks an extraction path by declared MIME type and extension:
// spreadsheets locally, PDFs by text layer with a multimodal fallback for
// scans, plain text as-is, and everything else through the multimodal model.
type Router struct {
	Spreadsheet Extractor
	PDF         Extractor
	Text        Extractor
	Multimodal  Extractor
	Log         *zap.SugaredLogger
}

func NewRouter(multimodal Extractor, log *zap.SugaredLogger) *Router {
	return &Router{
		Spreadsheet: SpreadsheetExtractor{},
		PDF:         PDFExtractor{},
		Text:        TextExtractor{},
		Multimodal:  multimodal,
		Log:         log,
	}
}

func (r *Router) Extract(ctx context.Context, file File) (string, error) {
	switch {
	case IsSpreadsheet(file):
		return r.Spreadsheet.Extract(ctx, file)
	case IsPDF(file):
		text, err := r.PDF.Extract(ctx, file)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if r.Log != nil {
			r.Log.Infow("pdf text layer unusable, using multimodal extraction", "file", file.Name, "error", err)
		}
		return r.multimodal(ctx, file)
	case IsPlainText(file):
		return r.Text.Extract(ctx, file)
	default:
		return r.multimodal(ctx, file)
	}
}

func (r *Router) multimodal(ctx context.Context, file File) (string, error) {
	if r.Multimodal == nil {
		return "", extractionError("multimodal", errors.New("no multimodal extractor configured"))
	}
	return r.Multimodal.Extract(ctx, file)
}
