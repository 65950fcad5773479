package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"
)

var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
	".xltx": true,
}

// IsSpreadsheet reports whether the file should take the spreadsheet path,
// judged by extension or by a spreadsheet/excel MIME type.
func IsSpreadsheet(file File) bool {
	if spreadsheetExts[file.Ext()] {
		return true
	}
	mime := strings.ToLower(file.MimeType)
	return strings.Contains(mime, "spreadsheet") || strings.Contains(mime, "excel")
}

// SpreadsheetExtractor renders every non-empty sheet as CSV, each preceded
// by a labeled separator line.
type SpreadsheetExtractor struct{}

func (SpreadsheetExtractor) Extract(_ context.Context, file File) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		return "", extractionError("spreadsheet", err)
	}
	defer wb.Close()

	var out strings.Builder
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", extractionError("spreadsheet", err)
		}
		text, err := rowsToCSV(rows)
		if err != nil {
			return "", extractionError("spreadsheet", err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out.WriteString("--- Sheet: " + sheet + " ---\n")
		out.WriteString(text)
		out.WriteString("\n\n")
	}
	if out.Len() == 0 {
		return "", extractionError("spreadsheet", errors.New("workbook has no data"))
	}
	return out.String(), nil
}

func rowsToCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
