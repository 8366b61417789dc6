// Package report renders a list page to PDF.
package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/record"
)

const (
	margin     = 10.0
	rowHeight  = 7.0
	headHeight = 8.0
	fontSize   = 9.0
	ellipsis   = "..."
)

// Table is what gets rendered: a titled grid of columns.
type Table struct {
	Title       string
	Subtitle    string
	Columns     []page.Column
	Rows        []record.Record
	GeneratedAt time.Time
}

// PageTable builds the table for records shown on pg.
func PageTable(pg *page.Page, rows []record.Record, subtitle string, now time.Time) Table {
	return Table{
		Title:       pg.Title,
		Subtitle:    subtitle,
		Columns:     pg.Columns,
		Rows:        rows,
		GeneratedAt: now,
	}
}

// Render writes t as a landscape A4 PDF. Columns share the page width
// equally; cell text that does not fit is cut with an ellipsis.
func Render(w io.Writer, t Table) error {
	if len(t.Columns) == 0 {
		return errors.New("report: no columns")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(t.Title, true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s  |  page %d/{nb}", t.GeneratedAt.UTC().Format(time.RFC3339), pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pageW, pageH := pdf.GetPageSize()
	colW := (pageW - 2*margin) / float64(len(t.Columns))

	header := func() {
		pdf.SetFont("Helvetica", "B", fontSize)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range t.Columns {
			pdf.CellFormat(colW, headHeight, fit(pdf, tr(c.Label), colW), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", fontSize)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(t.Title))
	pdf.Ln(10)
	if t.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, tr(t.Subtitle))
		pdf.Ln(8)
	}
	header()

	if len(t.Rows) == 0 {
		pdf.SetFont("Helvetica", "I", fontSize)
		pdf.CellFormat(colW*float64(len(t.Columns)), rowHeight, "No records", "1", 1, "C", false, 0, "")
	}
	for _, row := range t.Rows {
		if pdf.GetY()+rowHeight > pageH-2*margin {
			pdf.AddPage()
			header()
		}
		for _, c := range t.Columns {
			pdf.CellFormat(colW, rowHeight, fit(pdf, tr(cellText(row, c.Field)), colW), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// cellText stringifies a field for display; missing fields are blank.
func cellText(r record.Record, field string) string {
	s, ok := r.Text(field)
	if !ok {
		return ""
	}
	return s
}

// fit shortens s until it fits in width (with cell padding).
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	avail := width - 2*pdf.GetCellMargin()
	if pdf.GetStringWidth(s) <= avail {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+ellipsis) > avail {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + ellipsis
}
