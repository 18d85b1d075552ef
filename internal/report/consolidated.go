package report

import (
	"context"
	"fmt"

	"fleetwatch-backend/internal/status"
	"fleetwatch-backend/internal/storage"
)

// tableColumn describes one column of the consolidated table.
type tableColumn struct {
	title string
	width float64
}

// Column widths sum to the content width of an A4 page.
var consolidatedColumns = []tableColumn{
	{"Fecha", 30},
	{"Tipo", 30},
	{"Interno", 18},
	{"Patente", 24},
	{"Chofer", 36},
	{"Estado", 22},
	{"Velocidad", 20},
}

// ConsolidatedReport renders one table row per alarm, ordered as given.
// Rows are measured before placing; a row that does not fit moves whole to
// the next page, where the table header is drawn again.
func (g *Generator) ConsolidatedReport(ctx context.Context, alarms []storage.AlarmDetailed) ([]byte, error) {
	d := newDocument(consolidatedTitle, g.logo)

	d.sectionTitle("Resumen de alarmas")
	d.setStyle(styleValue)
	d.text(fmt.Sprintf("Alarmas incluidas: %d", len(alarms)), contentWidth)
	d.spacer(3)

	g.tableHeader(d)
	for _, alarm := range alarms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.tableRow(d, alarm)
	}

	d.spacer(10)
	d.signature()
	d.spacer(6)
	d.footer()

	return g.finish(d, "consolidated")
}

func (g *Generator) tableHeader(d *document) {
	d.setStyle(styleLabel)
	d.cur.FontSize = 9
	d.ensureSpace(d.cur.lineHeight() + 2)
	d.cur.apply(d.pdf)
	d.pdf.SetFillColor(229, 231, 235)
	x := marginLeft
	for _, col := range consolidatedColumns {
		d.pdf.SetXY(x, d.cur.Y)
		d.pdf.CellFormat(col.width, d.cur.lineHeight()+2, d.tr(col.title), "1", 0, "C", true, 0, "")
		x += col.width
	}
	d.cur.X = marginLeft
	d.cur.Y += d.cur.lineHeight() + 2
}

func (g *Generator) tableRow(d *document, alarm storage.AlarmDetailed) {
	cells := []string{
		formatTime(alarm.AlarmTime),
		strOr(alarm.TipoAlarma, "Tipo Desconocido"),
		strOr(alarm.Interno, "-"),
		strOr(alarm.Patente, "-"),
		driverName(alarm.Chofer),
		string(status.Normalize(alarm.Estado)),
		formatSpeed(alarm.Velocidad),
	}

	d.setStyle(styleValue)
	d.cur.FontSize = 9
	rowHeight := d.cur.lineHeight()
	for i, col := range consolidatedColumns {
		if h := d.measure(cells[i], col.width-2); h > rowHeight {
			rowHeight = h
		}
	}
	rowHeight += 2

	if d.cur.Y+rowHeight > bottomLimit {
		d.startPage()
		g.tableHeader(d)
		d.setStyle(styleValue)
		d.cur.FontSize = 9
	}

	startY := d.cur.Y
	x := marginLeft
	d.cur.apply(d.pdf)
	for i, col := range consolidatedColumns {
		d.pdf.Rect(x, startY, col.width, rowHeight, "D")
		d.pdf.SetXY(x+1, startY+1)
		d.pdf.MultiCell(col.width-2, d.cur.lineHeight(), d.tr(cells[i]), "", "L", false)
		x += col.width
	}
	d.cur.X = marginLeft
	d.cur.Y = startY + rowHeight
}

func driverName(driver *storage.DriverRecord) string {
	if driver == nil {
		return "Sin asignar"
	}
	return driver.ApellidoNombre
}
