package api

import (
	"strconv"
	"strings"
	"time"

	"fleetwatch-backend/internal/status"
	"fleetwatch-backend/internal/storage"
)

const unassignedDriverName = "Chofer No Asignado"

type locationPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

type driverPayload struct {
	ID       *int64 `json:"id"`
	Name     string `json:"name"`
	DNI      string `json:"dni,omitempty"`
	Company  string `json:"company,omitempty"`
	Assigned bool   `json:"assigned"`
}

type vehiclePayload struct {
	Interno string `json:"interno"`
	Patente string `json:"patente"`
}

type mediaPayload struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

type anomalyPayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// alarmPayload is the wire shape of an alarm. The raw storage status stays
// visible next to the canonical one because operators recognize the
// historical Spanish values.
type alarmPayload struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	RawStatus       string          `json:"rawStatus"`
	Type            string          `json:"type"`
	Timestamp       *time.Time      `json:"timestamp"`
	VideoProcessing bool            `json:"videoProcessing"`
	Speed           *float64        `json:"speed"`
	Description     string          `json:"description"`
	Company         string          `json:"company"`
	Location        locationPayload `json:"location"`
	Driver          driverPayload   `json:"driver"`
	Vehicle         vehiclePayload  `json:"vehicle"`
	Device          *int64          `json:"device"`
	Media           []mediaPayload  `json:"media"`
	Anomaly         *anomalyPayload `json:"anomaly,omitempty"`
}

func transformAlarm(rec storage.AlarmRecord) alarmPayload {
	p := alarmPayload{
		ID:              rec.GUID,
		Status:          string(status.Normalize(rec.Estado)),
		RawStatus:       rec.Estado,
		Type:            strDeref(rec.TipoAlarma),
		Timestamp:       rec.AlarmTime,
		VideoProcessing: status.VideoProcessing(rec.Estado, strDeref(rec.Video)),
		Speed:           rec.Velocidad,
		Description:     strDeref(rec.Descripcion),
		Company:         strDeref(rec.Empresa),
		Location: locationPayload{
			Latitude:  parseCoord(rec.Lat),
			Longitude: parseCoord(rec.Lng),
			Address:   strDeref(rec.Ubi),
		},
		Driver: driverPayload{ID: rec.ChoferID, Name: unassignedDriverName},
		Vehicle: vehiclePayload{
			Interno: strDeref(rec.Interno),
			Patente: strDeref(rec.Patente),
		},
		Device: rec.Dispositivo,
		Media:  mediaList(rec),
	}
	return p
}

func transformAlarmDetailed(rec storage.AlarmDetailed) alarmPayload {
	p := transformAlarm(rec.AlarmRecord)
	if rec.Chofer != nil {
		id := rec.Chofer.ID
		p.Driver = driverPayload{
			ID:       &id,
			Name:     rec.Chofer.ApellidoNombre,
			DNI:      strDeref(rec.Chofer.DNI),
			Company:  strDeref(rec.Chofer.Empresa),
			Assigned: true,
		}
	}
	if rec.Anomalia != nil {
		p.Anomaly = &anomalyPayload{
			ID:          rec.Anomalia.ID,
			Name:        rec.Anomalia.Nombre,
			Description: strDeref(rec.Anomalia.Descripcion),
		}
	}
	return p
}

func mediaList(rec storage.AlarmRecord) []mediaPayload {
	media := make([]mediaPayload, 0, 2)
	if url := strDeref(rec.Imagen); url != "" {
		media = append(media, mediaPayload{Kind: "image", URL: url})
	}
	if url := strDeref(rec.Video); url != "" {
		media = append(media, mediaPayload{Kind: "video", URL: url})
	}
	return media
}

type driverDetailPayload struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	DNI     string `json:"dni,omitempty"`
	Company string `json:"company,omitempty"`
	Sector  string `json:"sector,omitempty"`
	Puesto  string `json:"puesto,omitempty"`
	Foto    string `json:"foto,omitempty"`
}

func transformDriver(rec storage.DriverRecord) driverDetailPayload {
	return driverDetailPayload{
		ID:      rec.ID,
		Name:    rec.ApellidoNombre,
		DNI:     strDeref(rec.DNI),
		Company: strDeref(rec.Empresa),
		Sector:  strDeref(rec.Sector),
		Puesto:  strDeref(rec.Puesto),
		Foto:    strDeref(rec.Foto),
	}
}

type devicePayload struct {
	ID              int64  `json:"id"`
	Interno         string `json:"interno"`
	Patente         string `json:"patente"`
	TotalAlarms     int    `json:"totalAlarms"`
	ConfirmedAlarms int    `json:"confirmedAlarms"`
}

func transformDevice(d storage.DeviceSummary) devicePayload {
	return devicePayload{
		ID:              d.Dispositivo,
		Interno:         strDeref(d.Interno),
		Patente:         strDeref(d.Patente),
		TotalAlarms:     d.Total,
		ConfirmedAlarms: d.Confirmed,
	}
}

func strDeref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func parseCoord(p *string) *float64 {
	if p == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*p), 64)
	if err != nil {
		return nil
	}
	return &v
}
