package report

import (
	"fmt"

	"github.com/go-pdf/fpdf"
)

const fontFamily = "Helvetica"

// Text styles shared by both report variants.
var (
	styleSectionTitle = RenderCursor{FontStyle: "B", FontSize: 14, TextR: 26, TextG: 26, TextB: 26}
	styleLabel        = RenderCursor{FontStyle: "B", FontSize: 11, TextR: 55, TextG: 65, TextB: 81}
	styleValue        = RenderCursor{FontStyle: "", FontSize: 11}
	styleFooter       = RenderCursor{FontStyle: "", FontSize: 9, TextR: 102, TextG: 102, TextB: 102}
)

// document wraps an fpdf instance with the render cursor and the per-page
// header bookkeeping. Pagination is manual: before each block the caller
// measures its height and asks ensureSpace for room.
type document struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	cur   RenderCursor
	page  int
	title string
	logo  []byte
}

func newDocument(title string, logo []byte) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	d := &document{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		title: title,
		logo:  logo,
	}
	d.startPage()
	return d
}

// startPage opens a new page, draws the header and parks the cursor at the
// top of the content area. Typographic state is untouched.
func (d *document) startPage() {
	d.pdf.AddPage()
	d.page++
	d.drawHeader()
	d.cur.X = marginLeft
	d.cur.Y = contentTop
}

// ensureSpace inserts a page break when a block of the given height would
// cross the bottom limit. The cursor's typographic state survives the break.
func (d *document) ensureSpace(height float64) {
	if d.cur.Y+height <= bottomLimit {
		return
	}
	snapshot := d.cur
	d.startPage()
	d.cur.FontStyle = snapshot.FontStyle
	d.cur.FontSize = snapshot.FontSize
	d.cur.TextR, d.cur.TextG, d.cur.TextB = snapshot.TextR, snapshot.TextG, snapshot.TextB
}

// setStyle moves the cursor to a named style, keeping its position.
func (d *document) setStyle(style RenderCursor) {
	d.cur.FontStyle = style.FontStyle
	d.cur.FontSize = style.FontSize
	d.cur.TextR, d.cur.TextG, d.cur.TextB = style.TextR, style.TextG, style.TextB
}

// measure returns the rendered height of text wrapped at the given width
// using the cursor's current typography. Wrapping is computed on the
// cp1252-translated bytes, the same form the draw calls receive; splitting
// the translated string as runes would misread every accented character.
func (d *document) measure(text string, width float64) float64 {
	d.cur.apply(d.pdf)
	lines := d.pdf.SplitLines([]byte(d.tr(text)), width)
	if len(lines) == 0 {
		return d.cur.lineHeight()
	}
	return float64(len(lines)) * d.cur.lineHeight()
}

// text draws a wrapped block at the cursor and advances Y past it.
func (d *document) text(content string, width float64) {
	height := d.measure(content, width)
	d.ensureSpace(height)
	d.cur.apply(d.pdf)
	d.pdf.MultiCell(width, d.cur.lineHeight(), d.tr(content), "", "L", false)
	d.cur.X = marginLeft
	d.cur.Y += height
}

// linkLine draws a single clickable line in link styling.
func (d *document) linkLine(text, url string) {
	d.setStyle(styleValue)
	d.cur.TextR, d.cur.TextG, d.cur.TextB = 37, 99, 235
	height := d.measure(text, contentWidth)
	d.ensureSpace(height)
	d.cur.apply(d.pdf)
	d.pdf.MultiCell(contentWidth, d.cur.lineHeight(), d.tr(text), "", "L", false)
	d.pdf.LinkString(marginLeft, d.cur.Y, contentWidth, height, url)
	d.cur.X = marginLeft
	d.cur.Y += height
	d.setStyle(styleValue)
}

// image registers raw image bytes under name and draws them at the cursor,
// scaled to the given width. Returns false when the bytes cannot be placed;
// the caller renders a placeholder instead.
func (d *document) image(name string, data []byte, width float64) bool {
	imgType := detectImageType(data)
	if imgType == "" {
		return false
	}
	opts := fpdf.ImageOptions{ImageType: imgType}
	info := d.pdf.GetImageInfo(name)
	if info == nil {
		info = d.pdf.RegisterImageOptionsReader(name, opts, bytesReader(data))
	}
	if d.pdf.Err() {
		d.pdf.ClearError()
		return false
	}
	if info == nil || info.Width() <= 0 {
		return false
	}
	height := width * info.Height() / info.Width()
	d.ensureSpace(height + 4)
	d.pdf.ImageOptions(name, marginLeft, d.cur.Y, width, height, false, opts, 0, "")
	if d.pdf.Err() {
		d.pdf.ClearError()
		return false
	}
	d.cur.Y += height + 4
	d.cur.X = marginLeft
	return true
}

// sectionTitle draws a section heading with a little padding below. The
// heading is kept on the same page as at least one following line.
func (d *document) sectionTitle(title string) {
	d.setStyle(styleSectionTitle)
	height := d.cur.lineHeight() + styleValue.FontSize*ptToMM*lineSpacing*2
	d.ensureSpace(height)
	d.cur.apply(d.pdf)
	d.pdf.MultiCell(contentWidth, d.cur.lineHeight(), d.tr(title), "", "L", false)
	d.cur.X = marginLeft
	d.cur.Y += d.cur.lineHeight() + 1.5
}

// labelValue draws one label/value row. The value column wraps; the row
// height is measured before placing so the pair never straddles a break.
func (d *document) labelValue(label, value string) {
	const labelWidth = 45.0
	valueX := marginLeft + labelWidth + 2
	valueWidth := contentWidth - labelWidth - 2

	d.setStyle(styleValue)
	valueHeight := d.measure(value, valueWidth)
	d.setStyle(styleLabel)
	labelHeight := d.measure(label, labelWidth)
	rowHeight := valueHeight
	if labelHeight > rowHeight {
		rowHeight = labelHeight
	}
	d.ensureSpace(rowHeight + 1.5)

	startY := d.cur.Y
	d.setStyle(styleLabel)
	d.cur.X, d.cur.Y = marginLeft, startY
	d.cur.apply(d.pdf)
	d.pdf.MultiCell(labelWidth, d.cur.lineHeight(), d.tr(label), "", "L", false)

	d.setStyle(styleValue)
	d.cur.X, d.cur.Y = valueX, startY
	d.cur.apply(d.pdf)
	d.pdf.MultiCell(valueWidth, d.cur.lineHeight(), d.tr(value), "", "L", false)

	d.cur.X = marginLeft
	d.cur.Y = startY + rowHeight + 1.5
}

// spacer advances the cursor without drawing.
func (d *document) spacer(height float64) {
	d.ensureSpace(height)
	d.cur.Y += height
}

// drawHeader renders the boxed page header: the register title on the left,
// the company logo (or wordmark fallback) in the middle, revision and page
// number on the right.
func (d *document) drawHeader() {
	pdf := d.pdf
	left := marginLeft
	width := contentWidth
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.Rect(left, headerTop, width, headerHeight, "D")

	titleDiv := left + 55.0
	rightDiv := left + width - 50.0
	pdf.Line(titleDiv, headerTop, titleDiv, headerTop+headerHeight)
	pdf.Line(rightDiv, headerTop, rightDiv, headerTop+headerHeight)
	pdf.Line(rightDiv, headerTop+headerHeight/2, left+width, headerTop+headerHeight/2)

	pdf.SetFont(fontFamily, "B", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(left+2, headerTop+5)
	pdf.MultiCell(51, 5, d.tr(d.title), "", "C", false)

	if len(d.logo) > 0 {
		d.drawLogo(titleDiv+4, headerTop+2, rightDiv-titleDiv-8, headerHeight-4)
	} else {
		d.drawWordmark(titleDiv, rightDiv)
	}

	pdf.SetFont(fontFamily, "", 9)
	pdf.SetXY(rightDiv+2, headerTop+3)
	pdf.CellFormat(20, 5, d.tr("Revisión:"), "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "B", 12)
	pdf.CellFormat(20, 5, "0", "", 0, "C", false, 0, "")

	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetXY(rightDiv+2, headerTop+headerHeight/2+3)
	pdf.CellFormat(46, 5, d.tr(fmt.Sprintf("Página %d", d.page)), "", 0, "L", false, 0, "")
}

func (d *document) drawLogo(x, y, maxW, maxH float64) {
	name := "header-logo"
	if d.pdf.GetImageInfo(name) == nil {
		opts := fpdf.ImageOptions{ImageType: detectImageType(d.logo), ReadDpi: true}
		d.pdf.RegisterImageOptionsReader(name, opts, bytesReader(d.logo))
	}
	if d.pdf.Err() {
		// Bad logo bytes must not sink the whole report.
		d.pdf.ClearError()
		d.logo = nil
		d.drawWordmark(x-4, x+maxW+4)
		return
	}
	d.pdf.ImageOptions(name, x, y, maxW, maxH, false, fpdf.ImageOptions{ImageType: detectImageType(d.logo)}, 0, "")
}

// drawWordmark is the text fallback used when no logo asset is configured.
func (d *document) drawWordmark(fromX, toX float64) {
	pdf := d.pdf
	center := fromX + (toX-fromX)/2
	pdf.SetFont(fontFamily, "B", 13)
	pdf.SetTextColor(200, 0, 0)
	pdf.SetXY(center-24, headerTop+5)
	pdf.CellFormat(24, 6, "monte", "", 0, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(24, 6, "vera", "", 0, "L", false, 0, "")
	pdf.SetXY(center-24, headerTop+12)
	pdf.CellFormat(24, 6, "laguna", "", 0, "R", false, 0, "")
	pdf.CellFormat(24, 6, "paiva", "", 0, "L", false, 0, "")
}

// signature draws the closing signature block: one line for the reviewer,
// one for the driver.
func (d *document) signature() {
	const blockHeight = 30.0
	d.ensureSpace(blockHeight + 10)
	lineY := d.cur.Y + 18
	pdf := d.pdf
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.Line(marginLeft+15, lineY, marginLeft+65, lineY)
	pdf.Line(pageWidth-marginRight-65, lineY, pageWidth-marginRight-15, lineY)

	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft+15, lineY+2)
	pdf.CellFormat(50, 4, d.tr("Firma y aclaración"), "", 0, "C", false, 0, "")
	pdf.SetXY(marginLeft+15, lineY+7)
	pdf.CellFormat(50, 4, "ROSV", "", 0, "C", false, 0, "")
	pdf.SetXY(pageWidth-marginRight-65, lineY+2)
	pdf.CellFormat(50, 4, d.tr("Firma y aclaración"), "", 0, "C", false, 0, "")
	pdf.SetXY(pageWidth-marginRight-65, lineY+7)
	pdf.CellFormat(50, 4, "Conductor", "", 0, "C", false, 0, "")

	d.cur.Y = lineY + 14
}

// footer writes the auto-generation notice at the cursor.
func (d *document) footer() {
	d.setStyle(styleFooter)
	d.text("Documento autogenerado por el Sistema de Gestión de Alarmas.", contentWidth)
}
