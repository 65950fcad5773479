package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docmind/internal/logging"
	"docmind/internal/rag"
)

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()

	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"name", "qty"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]interface{}{"apple", 3}))
	_, err := wb.NewSheet("Empty")
	require.NoError(t, err)
	_, err = wb.NewSheet("Prices")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("Prices", "A1", &[]interface{}{"apple", "1,20"}))

	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestSpreadsheetExtractor(t *testing.T) {
	text, err := SpreadsheetExtractor{}.Extract(context.Background(), File{Name: "stock.xlsx", Data: buildWorkbook(t)})
	require.NoError(t, err)

	assert.Equal(t,
		"--- Sheet: Sheet1 ---\nname,qty\napple,3\n\n"+
			"--- Sheet: Prices ---\napple,\"1,20\"\n\n",
		text)
}

func TestSpreadsheetExtractor_Corrupt(t *testing.T) {
	_, err := SpreadsheetExtractor{}.Extract(context.Background(), File{Name: "x.xlsx", Data: []byte("not a zip")})
	assert.ErrorIs(t, err, rag.ErrExtraction)
}

func TestPDFExtractor_Corrupt(t *testing.T) {
	_, err := PDFExtractor{}.Extract(context.Background(), File{Name: "x.pdf", Data: []byte("%PDF-garbage")})
	assert.ErrorIs(t, err, rag.ErrExtraction)
}

// brokenPagePDF has a valid header, xref and trailer, but its only page
// object is not a parseable dictionary.
func brokenPagePDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R ]]] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFExtractor_MalformedObject(t *testing.T) {
	var err error
	assert.NotPanics(t, func() {
		_, err = PDFExtractor{}.Extract(context.Background(), File{Name: "broken.pdf", Data: brokenPagePDF()})
	})
	assert.ErrorIs(t, err, rag.ErrExtraction)
}

func TestRouter_MalformedPDFFallsBackToMultimodal(t *testing.T) {
	var calls []string
	r := NewRouter(recordingExtractor{name: "multimodal", text: "described", calls: &calls}, logging.Nop())

	text, err := r.Extract(context.Background(), File{Name: "broken.pdf", MimeType: "application/pdf", Data: brokenPagePDF()})
	require.NoError(t, err)
	assert.Equal(t, "described", text)
	assert.Equal(t, []string{"multimodal"}, calls)
}

func TestTextExtractor(t *testing.T) {
	text, err := TextExtractor{}.Extract(context.Background(), File{Data: []byte("héllo")})
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	_, err = TextExtractor{}.Extract(context.Background(), File{Data: []byte{0xff, 0xfe}})
	assert.ErrorIs(t, err, rag.ErrExtraction)
}

func TestClassification(t *testing.T) {
	assert.True(t, IsSpreadsheet(File{Name: "A.XLSX"}))
	assert.True(t, IsSpreadsheet(File{Name: "data", MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}))
	assert.True(t, IsSpreadsheet(File{Name: "old", MimeType: "application/vnd.ms-excel"}))
	assert.False(t, IsSpreadsheet(File{Name: "a.pdf", MimeType: "application/pdf"}))

	assert.True(t, IsPDF(File{Name: "report.PDF"}))
	assert.True(t, IsPlainText(File{Name: "notes", MimeType: "text/plain"}))
	assert.False(t, IsPlainText(File{Name: "photo.png", MimeType: "image/png"}))
}

type recordingExtractor struct {
	name  string
	text  string
	err   error
	calls *[]string
}

func (r recordingExtractor) Extract(context.Context, File) (string, error) {
	*r.calls = append(*r.calls, r.name)
	return r.text, r.err
}

func newTestRouter(calls *[]string, pdfText string, pdfErr error) *Router {
	return &Router{
		Spreadsheet: recordingExtractor{name: "spreadsheet", text: "sheet", calls: calls},
		PDF:         recordingExtractor{name: "pdf", text: pdfText, err: pdfErr, calls: calls},
		Text:        recordingExtractor{name: "text", text: "plain", calls: calls},
		Multimodal:  recordingExtractor{name: "multimodal", text: "described", calls: calls},
		Log:         logging.Nop(),
	}
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		file File
		want []string
	}{
		{File{Name: "a.xlsx"}, []string{"spreadsheet"}},
		{File{Name: "a.txt", MimeType: "text/plain"}, []string{"text"}},
		{File{Name: "a.png", MimeType: "image/png"}, []string{"multimodal"}},
		{File{Name: "a.docx"}, []string{"multimodal"}},
		{File{Name: "a.pdf"}, []string{"pdf"}},
	}
	for _, tt := range tests {
		var calls []string
		_, err := newTestRouter(&calls, "pdf text", nil).Extract(context.Background(), tt.file)
		require.NoError(t, err)
		assert.Equal(t, tt.want, calls, tt.file.Name)
	}
}

func TestRouter_PDFFallsBackToMultimodal(t *testing.T) {
	var calls []string
	text, err := newTestRouter(&calls, "  ", nil).Extract(context.Background(), File{Name: "scan.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "described", text)
	assert.Equal(t, []string{"pdf", "multimodal"}, calls)

	calls = nil
	_, err = newTestRouter(&calls, "", errors.New("bad xref")).Extract(context.Background(), File{Name: "broken.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pdf", "multimodal"}, calls)
}

func TestRouter_NoMultimodal(t *testing.T) {
	r := NewRouter(nil, logging.Nop())
	_, err := r.Extract(context.Background(), File{Name: "photo.jpg", MimeType: "image/jpeg"})
	assert.ErrorIs(t, err, rag.ErrExtraction)
}
