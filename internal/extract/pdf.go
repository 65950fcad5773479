package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

func IsPDF(file File) bool {
	return file.Ext() == ".pdf" || strings.EqualFold(file.MimeType, "application/pdf")
}

// PDFExtractor reads the text layer of a PDF. A scanned PDF yields empty
// text and no error.
type PDFExtractor struct{}

func (PDFExtractor) Extract(_ context.Context, file File) (text string, err error) {
	if len(file.Data) == 0 {
		return "", nil
	}

	// the parser panics on malformed objects
	defer func() {
		if r := recover(); r != nil {
			text, err = "", extractionError("pdf", fmt.Errorf("%v", r))
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return "", extractionError("pdf", err)
	}
	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", extractionError("pdf", err)
	}
	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", extractionError("pdf", err)
	}
	return string(out), nil
}
