package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	tableWidth  = 190.0
	maxCellRune = 48
)

// PDFExporter renders datasets into a tabular PDF. Column widths follow the
// content so name and description columns get the space their values need,
// and numeric cells are right-aligned.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	records := data.records()
	widths := columnWidths(data.Headers, records)

	pdf.SetFont("Arial", "B", 10)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, record := range records {
		for i, value := range record {
			align := ""
			if isNumeric(value) {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, clip(value), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths distributes the table width in proportion to the longest
// value each column holds, so a short ID column does not get the same room
// as a product name.
func columnWidths(headers []string, records [][]string) []float64 {
	longest := make([]int, len(headers))
	for i, header := range headers {
		longest[i] = len(header)
	}
	for _, record := range records {
		for i, value := range record {
			n := len(value)
			if n > maxCellRune {
				n = maxCellRune
			}
			if n > longest[i] {
				longest[i] = n
			}
		}
	}

	sum := 0
	for _, n := range longest {
		sum += n
	}
	widths := make([]float64, len(headers))
	for i, n := range longest {
		widths[i] = tableWidth * float64(n) / float64(sum)
	}
	return widths
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

func clip(value string) string {
	runes := []rune(value)
	if len(runes) <= maxCellRune {
		return value
	}
	return string(runes[:maxCellRune-3]) + "..."
}
