// Package report renders audit PDF documents for reviewed alarms. Layout is
// content-driven: every block is measured before it is placed and a page
// break is inserted whenever the block would overflow the current page.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fleetwatch-backend/internal/status"
	"fleetwatch-backend/internal/storage"
)

// ErrRenderFailure marks a report whose output stream errored or produced no
// bytes. It is the only hard failure: missing alarm data renders placeholders.
var ErrRenderFailure = errors.New("report produced no output")

const (
	reportTitle       = "REG Informe anomalía en conducción"
	consolidatedTitle = "REG Informe consolidado de anomalías"

	placeholderUnknown   = "No disponible"
	placeholderNoDriver  = "Chofer no asignado a esta alarma."
	placeholderNoAnomaly = "Sin clasificación de anomalía."
	placeholderNoDesc    = "Sin descripción del analista."
	placeholderNoImage   = "Imagen no disponible."
	placeholderNoVideo   = "Sin registro de video."
)

type Generator struct {
	logger *slog.Logger
	client *http.Client
	logo   []byte
}

// NewGenerator builds a report generator. logo may be nil; the header then
// falls back to the company wordmark.
func NewGenerator(logo []byte, logger *slog.Logger) *Generator {
	return &Generator{
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
		logo:   logo,
	}
}

// AlarmReport renders the single-alarm audit document.
func (g *Generator) AlarmReport(ctx context.Context, alarm storage.AlarmDetailed) ([]byte, error) {
	d := newDocument(reportTitle, g.logo)

	d.sectionTitle("Información general")
	d.labelValue("ID de alarma", alarm.GUID)
	d.labelValue("Fecha y hora", formatTime(alarm.AlarmTime))
	d.labelValue("Tipo de alarma", strOr(alarm.TipoAlarma, "Tipo Desconocido"))
	d.labelValue("Estado", fmt.Sprintf("%s (%s)", alarm.Estado, status.Normalize(alarm.Estado)))
	d.labelValue("Empresa", strOr(alarm.Empresa, placeholderUnknown))
	d.labelValue("Interno", strOr(alarm.Interno, "N/A"))
	d.labelValue("Patente", strOr(alarm.Patente, placeholderUnknown))
	d.labelValue("Dispositivo", int64Or(alarm.Dispositivo, "N/A"))
	d.labelValue("Velocidad", formatSpeed(alarm.Velocidad))
	g.driverRows(d, alarm.Chofer)
	d.labelValue("Ubicación", strOr(alarm.Ubi, "Ubicación no registrada."))
	d.labelValue("Coordenadas", formatCoords(alarm.Lat, alarm.Lng))
	d.spacer(4)

	d.sectionTitle("Análisis de la desviación")
	if alarm.Descripcion != nil && normalizeText(*alarm.Descripcion) != "" {
		d.setStyle(styleValue)
		d.text(normalizeText(*alarm.Descripcion), contentWidth)
	} else {
		d.setStyle(styleValue)
		d.text(placeholderNoDesc, contentWidth)
	}
	if alarm.Anomalia != nil {
		d.labelValue("Anomalía", alarm.Anomalia.Nombre)
		if alarm.Anomalia.Descripcion != nil && *alarm.Anomalia.Descripcion != "" {
			d.labelValue("Detalle", normalizeText(*alarm.Anomalia.Descripcion))
		}
	} else {
		d.setStyle(styleValue)
		d.text(placeholderNoAnomaly, contentWidth)
	}
	d.spacer(4)

	d.sectionTitle("Registro multimedia")
	g.imageBlock(ctx, d, alarm)
	g.videoBlock(d, alarm)
	g.qrBlock(d, alarm)
	d.spacer(8)

	d.signature()
	d.spacer(6)
	d.footer()

	return g.finish(d, alarm.GUID)
}

func (g *Generator) driverRows(d *document, driver *storage.DriverRecord) {
	if driver == nil {
		d.labelValue("Chofer", placeholderNoDriver)
		return
	}
	d.labelValue("Chofer", driver.ApellidoNombre)
	d.labelValue("DNI", strOr(driver.DNI, placeholderUnknown))
	d.labelValue("Legajo", intOr(driver.Anios, placeholderUnknown))
	d.labelValue("Empresa del chofer", strOr(driver.Empresa, placeholderUnknown))
}

func (g *Generator) imageBlock(ctx context.Context, d *document, alarm storage.AlarmDetailed) {
	if alarm.Imagen == nil || strings.TrimSpace(*alarm.Imagen) == "" {
		d.setStyle(styleValue)
		d.text(placeholderNoImage, contentWidth)
		return
	}
	data, err := downloadImage(ctx, g.client, *alarm.Imagen)
	if err != nil {
		g.logger.Warn("could not fetch alarm image for report",
			slog.String("guid", alarm.GUID),
			slog.String("error", err.Error()))
		d.setStyle(styleValue)
		d.text(placeholderNoImage, contentWidth)
		return
	}
	if !d.image("alarm-image-"+alarm.GUID, data, 90) {
		d.setStyle(styleValue)
		d.text(placeholderNoImage, contentWidth)
	}
}

func (g *Generator) videoBlock(d *document, alarm storage.AlarmDetailed) {
	if alarm.Video == nil || strings.TrimSpace(*alarm.Video) == "" {
		d.setStyle(styleValue)
		d.text(placeholderNoVideo, contentWidth)
		return
	}
	d.labelValue("Video", "")
	d.linkLine(*alarm.Video, *alarm.Video)
}

func (g *Generator) qrBlock(d *document, alarm storage.AlarmDetailed) {
	if alarm.Lat == nil || alarm.Lng == nil ||
		strings.TrimSpace(*alarm.Lat) == "" || strings.TrimSpace(*alarm.Lng) == "" {
		return
	}
	link := mapsLink(*alarm.Lat, *alarm.Lng)
	png, err := qrPNG(link)
	if err != nil {
		g.logger.Warn("could not render location QR",
			slog.String("guid", alarm.GUID),
			slog.String("error", err.Error()))
		return
	}
	d.spacer(2)
	if d.image("qr-"+alarm.GUID, png, 30) {
		d.setStyle(styleFooter)
		d.text("Escanee el código para ver la ubicación en el mapa.", contentWidth)
	}
}

// finish streams the document into a buffer. The caller must treat an empty
// buffer as a failed report, never as an empty-but-valid document.
func (g *Generator) finish(d *document, guid string) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		g.logger.Error("report rendering failed",
			slog.String("guid", guid),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	if buf.Len() == 0 {
		return nil, ErrRenderFailure
	}
	return buf.Bytes(), nil
}

func strOr(p *string, fallback string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return fallback
	}
	return *p
}

func intOr(p *int, fallback string) string {
	if p == nil {
		return fallback
	}
	return fmt.Sprintf("%d", *p)
}

func int64Or(p *int64, fallback string) string {
	if p == nil {
		return fallback
	}
	return fmt.Sprintf("%d", *p)
}

func formatSpeed(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.0f km/h", *p)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return placeholderUnknown
	}
	return t.Format("02/01/2006 15:04:05")
}

func formatCoords(lat, lng *string) string {
	if lat == nil || lng == nil {
		return "N/A"
	}
	return fmt.Sprintf("Lat %s, Lng %s", *lat, *lng)
}
