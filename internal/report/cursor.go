package report

import "github.com/go-pdf/fpdf"

// Page geometry in millimetres (A4 portrait).
const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginLeft   = 15.0
	marginRight  = 15.0
	contentWidth = pageWidth - marginLeft - marginRight
	headerTop    = 12.0
	headerHeight = 22.0
	contentTop   = headerTop + headerHeight + 8.0
	bottomLimit  = pageHeight - 18.0

	ptToMM      = 0.3528
	lineSpacing = 1.45
)

// RenderCursor carries position and typographic state through every drawing
// call. Page breaks restore the typographic fields from a snapshot, so a
// break in the middle of a section never resets font, size or color.
type RenderCursor struct {
	X, Y      float64
	FontStyle string
	FontSize  float64
	TextR     int
	TextG     int
	TextB     int
}

// apply pushes the cursor's typographic state into the document.
func (c RenderCursor) apply(pdf *fpdf.Fpdf) {
	pdf.SetFont(fontFamily, c.FontStyle, c.FontSize)
	pdf.SetTextColor(c.TextR, c.TextG, c.TextB)
	pdf.SetXY(c.X, c.Y)
}

// lineHeight is the vertical advance of one wrapped line at the cursor's
// current font size.
func (c RenderCursor) lineHeight() float64 {
	return c.FontSize * ptToMM * lineSpacing
}
