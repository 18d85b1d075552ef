package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleetwatch-backend/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string       { return &s }
func f64Ptr(f float64) *float64     { return &f }
func i64Ptr(i int64) *int64         { return &i }
func timePtr(t time.Time) *time.Time { return &t }

func fullAlarm() storage.AlarmDetailed {
	return storage.AlarmDetailed{
		AlarmRecord: storage.AlarmRecord{
			GUID:        "a1b2c3",
			Estado:      "Sospechosa",
			TipoAlarma:  strPtr("Distracción del conductor"),
			AlarmTime:   timePtr(time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)),
			Lat:         strPtr("-31.6333"),
			Lng:         strPtr("-60.7000"),
			Ubi:         strPtr("Ruta Provincial 2, km 14"),
			Velocidad:   f64Ptr(62),
			Descripcion: strPtr("El conductor aparta la vista\r\ndurante varios segundos."),
			Interno:     strPtr("123"),
			Patente:     strPtr("AB123CD"),
			Dispositivo: i64Ptr(900145),
			Empresa:     strPtr("montevera"),
		},
		Chofer: &storage.DriverRecord{
			ID:             7,
			ApellidoNombre: "Gómez, Ana",
			DNI:            strPtr("30111222"),
			Empresa:        strPtr("montevera"),
		},
		Anomalia: &storage.AnomalyRecord{
			ID:          2,
			Nombre:      "Distracción",
			Descripcion: strPtr("Mirada fuera del campo de conducción."),
		},
	}
}

func TestAlarmReportRendersWithAllFieldsMissing(t *testing.T) {
	gen := NewGenerator(nil, testLogger())
	alarm := storage.AlarmDetailed{
		AlarmRecord: storage.AlarmRecord{GUID: "empty-1", Estado: "Pendiente"},
	}

	pdf, err := gen.AlarmReport(context.Background(), alarm)
	if err != nil {
		t.Fatalf("AlarmReport returned error: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("output does not look like a PDF, got prefix %q", pdf[:min(8, len(pdf))])
	}
}

func TestAlarmReportRendersFullAlarm(t *testing.T) {
	gen := NewGenerator(nil, testLogger())

	pdf, err := gen.AlarmReport(context.Background(), fullAlarm())
	if err != nil {
		t.Fatalf("AlarmReport returned error: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("AlarmReport returned no bytes")
	}
}

func TestAlarmReportToleratesUnreachableImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	alarm := fullAlarm()
	alarm.Imagen = strPtr(srv.URL + "/capture.jpg")

	gen := NewGenerator(nil, testLogger())
	pdf, err := gen.AlarmReport(context.Background(), alarm)
	if err != nil {
		t.Fatalf("AlarmReport returned error: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("AlarmReport returned no bytes")
	}
}

func TestConsolidatedReportPaginates(t *testing.T) {
	gen := NewGenerator(nil, testLogger())

	alarms := make([]storage.AlarmDetailed, 0, 60)
	for i := 0; i < 60; i++ {
		a := fullAlarm()
		a.GUID = fmt.Sprintf("guid-%03d", i)
		alarms = append(alarms, a)
	}

	pdf, err := gen.ConsolidatedReport(context.Background(), alarms)
	if err != nil {
		t.Fatalf("ConsolidatedReport returned error: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("ConsolidatedReport returned no bytes")
	}
}

func TestConsolidatedReportStopsOnCancelledContext(t *testing.T) {
	gen := NewGenerator(nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.ConsolidatedReport(ctx, []storage.AlarmDetailed{fullAlarm()})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestMeasureWrapsAccentedText(t *testing.T) {
	d := newDocument("REG Prueba de medición", nil)
	d.setStyle(styleValue)

	short := d.measure("Descripción", contentWidth)
	if short != d.cur.lineHeight() {
		t.Fatalf("single accented word measured %.2f, want one line %.2f", short, d.cur.lineHeight())
	}

	long := strings.Repeat("situación de distracción en la conducción del vehículo ", 8)
	if got := d.measure(long, contentWidth); got <= short {
		t.Fatalf("long accented text measured %.2f, want more than one line", got)
	}

	d.text("áéíóúñÑüÁÉÍÓÚ", contentWidth)
	d.labelValue("Ubicación", "Ruta Provincial 2, próxima a la estación")
	d.sectionTitle("Análisis de la desviación")
}

func TestNormalizeTextFlattensLineEndings(t *testing.T) {
	got := normalizeText("línea uno\r\nlínea dos\rlínea tres\x00")
	want := "línea uno\nlínea dos\nlínea tres"
	if got != want {
		t.Fatalf("normalizeText = %q, want %q", got, want)
	}
}

func TestMapsLink(t *testing.T) {
	got := mapsLink(" -31.63 ", "-60.70")
	if got != "https://www.google.com/maps?q=-31.63,-60.70" {
		t.Fatalf("mapsLink = %q", got)
	}
}

func TestDetectImageType(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	if got := detectImageType(png); got != "PNG" {
		t.Fatalf("detectImageType(png header) = %q", got)
	}
	if got := detectImageType([]byte("not an image at all")); got != "" {
		t.Fatalf("detectImageType(text) = %q, want empty", got)
	}
}

func TestMeasureThenPlaceNeverOverflowsPage(t *testing.T) {
	d := newDocument("REG Prueba de paginado", nil)
	long := strings.Repeat("Contenido de prueba que ocupa espacio en la página. ", 4)

	for i := 0; i < 120; i++ {
		d.setStyle(styleValue)
		d.text(long, contentWidth)
		if d.cur.Y > pageHeight {
			t.Fatalf("cursor escaped the page after block %d: y=%.1f", i, d.cur.Y)
		}
	}
	if d.page < 2 {
		t.Fatalf("expected pagination, still on page %d", d.page)
	}
}
