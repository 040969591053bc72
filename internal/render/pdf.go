package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/iago/reports-back/internal/domain"
)

const (
	pageWidth   = 277.0 // A4 landscape minus margins, in mm
	rowHeight   = 6.0
	titleHeight = 10.0
)

// PDF lays sections out as titled tables on landscape A4 pages.
type PDF struct{}

func (PDF) Render(ctx context.Context, sections []Section, _ Kind) ([]byte, error) {
	doc := fpdf.New("L", "mm", "A4", "")
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 10)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	for i, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrRender, err)
		}
		if i > 0 {
			doc.Ln(rowHeight)
		}

		doc.SetFont("Helvetica", "B", 13)
		doc.CellFormat(0, titleHeight, tr(section.Title), "", 1, "L", false, 0, "")

		if len(section.Columns) == 0 {
			continue
		}
		width := pageWidth / float64(len(section.Columns))

		doc.SetFont("Helvetica", "B", 9)
		doc.SetFillColor(230, 230, 230)
		for _, column := range section.Columns {
			doc.CellFormat(width, rowHeight, fit(doc, tr(column), width), "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)

		doc.SetFont("Helvetica", "", 9)
		for _, row := range section.Rows {
			for c := range section.Columns {
				value := ""
				if c < len(row) {
					value = row[c]
				}
				doc.CellFormat(width, rowHeight, fit(doc, tr(value), width), "1", 0, "L", false, 0, "")
			}
			doc.Ln(-1)
		}
	}

	if doc.Err() {
		return nil, fmt.Errorf("%w: layout: %w", domain.ErrRender, doc.Error())
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: write document: %w", domain.ErrRender, err)
	}
	return buf.Bytes(), nil
}

// fit shortens text that would overflow its cell.
func fit(doc *fpdf.Fpdf, text string, width float64) string {
	limit := width - 2
	if doc.GetStringWidth(text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && doc.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
