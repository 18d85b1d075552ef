// Package api exposes the alarm review workflow over REST.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetwatch-backend/internal/report"
	"fleetwatch-backend/internal/review"
	"fleetwatch-backend/internal/status"
	"fleetwatch-backend/internal/storage"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// Repository is the read-side port the handlers query. *storage.Repository
// satisfies it; tests plug an in-memory fake.
type Repository interface {
	FindAlarmDetailed(ctx context.Context, guid string) (storage.AlarmDetailed, error)
	ListAlarms(ctx context.Context, filter storage.AlarmFilter) (storage.AlarmPage, error)
	GlobalCounts(ctx context.Context) (storage.StatusCounts, error)
	ListDrivers(ctx context.Context, search string) ([]storage.DriverRecord, error)
	FindDriver(ctx context.Context, id int64) (storage.DriverRecord, error)
	DriverStats(ctx context.Context, driverID int64) (storage.DriverStats, error)
	RecentAlarmsForDriver(ctx context.Context, driverID int64, limit int) ([]storage.AlarmRecord, error)
	ListAnomalies(ctx context.Context) ([]storage.AnomalyRecord, error)
	ListDevices(ctx context.Context, search string) ([]storage.DeviceSummary, error)
}

type Handler struct {
	Repo    Repository
	Review  *review.Service
	Reports *report.Generator
	Logger  *slog.Logger
}

type reviewRequest struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	DriverID    *int64 `json:"driverId"`
	AnomalyID   *int64 `json:"anomalyId"`
}

type confirmRequest struct {
	Description string `json:"description"`
	DriverID    *int64 `json:"driverId"`
}

type reEvaluateRequest struct {
	Description string `json:"description"`
}

type assignDriverRequest struct {
	DriverID *int64 `json:"driverId"`
}

type consolidatedRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/alarms", func(r chi.Router) {
		r.Get("/", h.handleAlarmList)
		r.Get("/{id}", h.handleAlarmGet)
		r.Put("/{id}/review", h.handleAlarmReview)
		r.Put("/{id}/confirm", h.handleAlarmConfirm)
		r.Put("/{id}/re-evaluate", h.handleAlarmReEvaluate)
		r.Put("/{id}/undo", h.handleAlarmUndo)
		r.Post("/{id}/retry-video", h.handleAlarmRetryVideo)
		r.Patch("/{id}/assign-driver", h.handleAlarmAssignDriver)
		r.Get("/{id}/report", h.handleAlarmReport)
	})
	r.Post("/api/reports/consolidated", h.handleConsolidatedReport)
	r.Route("/api/drivers", func(r chi.Router) {
		r.Get("/", h.handleDriverList)
		r.Get("/{id}", h.handleDriverGet)
	})
	r.Get("/api/anomalies", h.handleAnomalyList)
	r.Get("/api/devices", h.handleDeviceList)
}

func (h *Handler) handleAlarmList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlarmFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	page, err := h.Repo.ListAlarms(r.Context(), filter)
	if err != nil {
		h.internalError(w, "failed to list alarms", err)
		return
	}
	counts, err := h.Repo.GlobalCounts(r.Context())
	if err != nil {
		h.internalError(w, "failed to count alarms", err)
		return
	}
	alarms := make([]alarmPayload, 0, len(page.Alarms))
	for _, rec := range page.Alarms {
		alarms = append(alarms, transformAlarm(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alarms":     alarms,
		"page":       page.Page,
		"pageSize":   page.PageSize,
		"total":      page.Total,
		"totalPages": page.TotalPages,
		"counts": map[string]int{
			"total":      counts.Total,
			"pending":    counts.Pending,
			"suspicious": counts.Suspicious,
			"confirmed":  counts.Confirmed,
			"rejected":   counts.Rejected,
		},
	})
}

func (h *Handler) handleAlarmGet(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "id")
	alarm, err := h.Repo.FindAlarmDetailed(r.Context(), guid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "alarma no encontrada"})
			return
		}
		h.internalError(w, "failed to load alarm", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alarm": transformAlarmDetailed(alarm)})
}

func (h *Handler) handleAlarmReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	updated, err := h.Review.Review(r.Context(), chi.URLParam(r, "id"), review.Action{
		Target:      req.Action,
		Description: req.Description,
		DriverID:    req.DriverID,
		AnomalyID:   req.AnomalyID,
	})
	if err != nil {
		h.reviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alarm": transformAlarm(updated)})
}

func (h *Handler) handleAlarmConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	updated, err := h.Review.ConfirmFinal(r.Context(), chi.URLParam(r, "id"), req.Description, req.DriverID)
	if err != nil {
		h.reviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alarm": transformAlarm(updated)})
}

func (h *Handler) handleAlarmReEvaluate(w http.ResponseWriter, r *http.Request) {
	var req reEvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	updated, err := h.Review.ReEvaluate(r.Context(), chi.URLParam(r, "id"), req.Description)
	if err != nil {
		h.reviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alarm": transformAlarm(updated)})
}

func (h *Handler) handleAlarmUndo(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Review.Undo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.reviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alarm": transformAlarm(updated)})
}

func (h *Handler) handleAlarmRetryVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.Review.RetryVideo(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.reviewError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "message": "recuperación de video solicitada"})
}

func (h *Handler) handleAlarmAssignDriver(w http.ResponseWriter, r *http.Request) {
	var req assignDriverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	updated, err := h.Review.AssignDriver(r.Context(), chi.URLParam(r, "id"), req.DriverID)
	if err != nil {
		h.reviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "alarm": transformAlarm(updated)})
}

func (h *Handler) handleAlarmReport(w http.ResponseWriter, r *http.Request) {
	guid := chi.URLParam(r, "id")
	alarm, err := h.Repo.FindAlarmDetailed(r.Context(), guid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "alarma no encontrada"})
			return
		}
		h.internalError(w, "failed to load alarm", err)
		return
	}
	pdf, err := h.Reports.AlarmReport(r.Context(), alarm)
	if err != nil {
		h.internalError(w, "failed to render report", err)
		return
	}
	writePDF(w, fmt.Sprintf("informe-alarma-%s.pdf", guid), pdf)
}

func (h *Handler) handleConsolidatedReport(w http.ResponseWriter, r *http.Request) {
	var req consolidatedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "ids requeridos"})
		return
	}
	alarms := make([]storage.AlarmDetailed, 0, len(req.IDs))
	for _, id := range req.IDs {
		alarm, err := h.Repo.FindAlarmDetailed(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			h.internalError(w, "failed to load alarm", err)
			return
		}
		alarms = append(alarms, alarm)
	}
	if len(alarms) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "ninguna de las alarmas existe"})
		return
	}
	pdf, err := h.Reports.ConsolidatedReport(r.Context(), alarms)
	if err != nil {
		h.internalError(w, "failed to render report", err)
		return
	}
	writePDF(w, "informe-consolidado.pdf", pdf)
}

func (h *Handler) handleDriverList(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.Repo.ListDrivers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.internalError(w, "failed to list drivers", err)
		return
	}
	payload := make([]driverDetailPayload, 0, len(drivers))
	for _, d := range drivers {
		payload = append(payload, transformDriver(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"drivers": payload})
}

func (h *Handler) handleDriverGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "id de chofer inválido"})
		return
	}
	driver, err := h.Repo.FindDriver(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "chofer no encontrado"})
			return
		}
		h.internalError(w, "failed to load driver", err)
		return
	}
	stats, err := h.Repo.DriverStats(r.Context(), id)
	if err != nil {
		h.internalError(w, "failed to load driver stats", err)
		return
	}
	recent, err := h.Repo.RecentAlarmsForDriver(r.Context(), id, 10)
	if err != nil {
		h.internalError(w, "failed to load driver alarms", err)
		return
	}
	alarms := make([]alarmPayload, 0, len(recent))
	for _, rec := range recent {
		alarms = append(alarms, transformAlarm(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"driver": transformDriver(driver),
		"stats": map[string]int{
			"total":      stats.Total,
			"pending":    stats.Pending,
			"suspicious": stats.Suspicious,
			"confirmed":  stats.Confirmed,
			"rejected":   stats.Rejected,
		},
		"recentAlarms": alarms,
	})
}

func (h *Handler) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Repo.ListDevices(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		h.internalError(w, "failed to list devices", err)
		return
	}
	payload := make([]devicePayload, 0, len(devices))
	for _, d := range devices {
		payload = append(payload, transformDevice(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": payload})
}

func (h *Handler) handleAnomalyList(w http.ResponseWriter, r *http.Request) {
	anomalies, err := h.Repo.ListAnomalies(r.Context())
	if err != nil {
		h.internalError(w, "failed to list anomalies", err)
		return
	}
	payload := make([]anomalyPayload, 0, len(anomalies))
	for _, a := range anomalies {
		payload = append(payload, anomalyPayload{ID: a.ID, Name: a.Nombre, Description: strDeref(a.Descripcion)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"anomalies": payload})
}

// reviewError maps workflow error codes onto HTTP statuses. Anything that is
// not a typed review error is a storage failure.
func (h *Handler) reviewError(w http.ResponseWriter, err error) {
	var rerr *review.Error
	if !errors.As(err, &rerr) {
		h.internalError(w, "review operation failed", err)
		return
	}
	code := http.StatusBadRequest
	if rerr.Code == review.CodeNotFound {
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]any{"ok": false, "code": rerr.Code, "message": rerr.Message})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.Logger.Error(msg, slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": msg})
}

func parseAlarmFilter(r *http.Request) (storage.AlarmFilter, error) {
	q := r.URL.Query()
	filter := storage.AlarmFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Empresa:  strings.TrimSpace(q.Get("company")),
		Page:     1,
		PageSize: defaultPageSize,
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, fmt.Errorf("página inválida %q", raw)
		}
		filter.Page = page
	}
	if raw := q.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > maxPageSize {
			return filter, fmt.Errorf("tamaño de página inválido %q", raw)
		}
		filter.PageSize = size
	}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			switch s := status.Status(part); s {
			case status.Pending, status.Suspicious, status.Confirmed, status.Rejected:
				filter.EstadoIn = append(filter.EstadoIn, status.StorageValues(s)...)
			default:
				return filter, fmt.Errorf("estado desconocido %q", part)
			}
		}
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("fecha desde inválida %q", raw)
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fmt.Errorf("fecha hasta inválida %q", raw)
		}
		filter.To = &t
	}
	return filter, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
