package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetwatch-backend/internal/status"
)

type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

const alarmColumns = `guid, estado, tipo_alarma, alarm_time, lat, lng, ubi, velocidad,
	descripcion, imagen, video, interno, patente, dispositivo, chofer_id, anomalia_id, empresa`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row rowScanner) (AlarmRecord, error) {
	var rec AlarmRecord
	err := row.Scan(&rec.GUID, &rec.Estado, &rec.TipoAlarma, &rec.AlarmTime, &rec.Lat, &rec.Lng,
		&rec.Ubi, &rec.Velocidad, &rec.Descripcion, &rec.Imagen, &rec.Video, &rec.Interno,
		&rec.Patente, &rec.Dispositivo, &rec.ChoferID, &rec.AnomaliaID, &rec.Empresa)
	return rec, err
}

func (r *Repository) FindAlarm(ctx context.Context, guid string) (AlarmRecord, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT `+alarmColumns+`
		FROM alarmas_historico WHERE guid=$1`, guid)
	rec, err := scanAlarm(row)
	if err != nil {
		return AlarmRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *Repository) FindAlarmDetailed(ctx context.Context, guid string) (AlarmDetailed, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT a.guid, a.estado, a.tipo_alarma, a.alarm_time, a.lat, a.lng, a.ubi, a.velocidad,
			a.descripcion, a.imagen, a.video, a.interno, a.patente, a.dispositivo, a.chofer_id,
			a.anomalia_id, a.empresa,
			c.choferes_id, c.apellido_nombre, c.dni, c.anios, c.empresa, c.estado, c.sector, c.puesto, c.foto,
			an.anomalia_id, an.nom_anomalia, an.descripcion
		FROM alarmas_historico a
		LEFT JOIN choferes c ON c.choferes_id = a.chofer_id
		LEFT JOIN anomalia an ON an.anomalia_id = a.anomalia_id
		WHERE a.guid=$1`, guid)

	var det AlarmDetailed
	var (
		choferID       *int64
		apellidoNombre *string
		dni            *string
		anios          *int
		choferEmpresa  *string
		choferEstado   *string
		sector         *string
		puesto         *string
		foto           *string
		anomaliaID     *int64
		nomAnomalia    *string
		anomaliaDesc   *string
	)
	err := row.Scan(&det.GUID, &det.Estado, &det.TipoAlarma, &det.AlarmTime, &det.Lat, &det.Lng,
		&det.Ubi, &det.Velocidad, &det.Descripcion, &det.Imagen, &det.Video, &det.Interno,
		&det.Patente, &det.Dispositivo, &det.ChoferID, &det.AnomaliaID, &det.Empresa,
		&choferID, &apellidoNombre, &dni, &anios, &choferEmpresa, &choferEstado, &sector, &puesto, &foto,
		&anomaliaID, &nomAnomalia, &anomaliaDesc)
	if err != nil {
		return AlarmDetailed{}, ErrNotFound
	}
	if choferID != nil {
		det.Chofer = &DriverRecord{
			ID:             *choferID,
			ApellidoNombre: deref(apellidoNombre),
			DNI:            dni,
			Anios:          anios,
			Empresa:        choferEmpresa,
			Estado:         choferEstado,
			Sector:         sector,
			Puesto:         puesto,
			Foto:           foto,
		}
	}
	if anomaliaID != nil {
		det.Anomalia = &AnomalyRecord{ID: *anomaliaID, Nombre: deref(nomAnomalia), Descripcion: anomaliaDesc}
	}
	return det, nil
}

// UpdateAlarm applies a partial update and returns the row as persisted.
// A patch with nothing set re-reads the record unchanged.
func (r *Repository) UpdateAlarm(ctx context.Context, guid string, patch AlarmPatch) (AlarmRecord, error) {
	sets := []string{}
	args := []any{}
	add := func(expr string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if patch.Estado != nil {
		add("estado=$%d", *patch.Estado)
	}
	if patch.ClearDescripcion {
		sets = append(sets, "descripcion=NULL")
	} else if patch.Descripcion != nil {
		add("descripcion=$%d", *patch.Descripcion)
	}
	if patch.ClearChofer {
		sets = append(sets, "chofer_id=NULL")
	} else if patch.ChoferID != nil {
		add("chofer_id=$%d", *patch.ChoferID)
	}
	if patch.AnomaliaID != nil {
		add("anomalia_id=$%d", *patch.AnomaliaID)
	}
	if len(sets) == 0 {
		return r.FindAlarm(ctx, guid)
	}
	args = append(args, guid)
	query := fmt.Sprintf(`UPDATE alarmas_historico SET %s WHERE guid=$%d RETURNING `+alarmColumns,
		strings.Join(sets, ", "), len(args))
	rec, err := scanAlarm(r.Store.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		return AlarmRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *Repository) CreateAlarm(ctx context.Context, rec AlarmRecord) (string, error) {
	if rec.GUID == "" {
		rec.GUID = uuid.NewString()
	}
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO alarmas_historico (`+alarmColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		rec.GUID, rec.Estado, rec.TipoAlarma, rec.AlarmTime, rec.Lat, rec.Lng, rec.Ubi,
		rec.Velocidad, rec.Descripcion, rec.Imagen, rec.Video, rec.Interno, rec.Patente,
		rec.Dispositivo, rec.ChoferID, rec.AnomaliaID, rec.Empresa,
	)
	if err != nil {
		return "", err
	}
	return rec.GUID, nil
}

func (r *Repository) FindDriver(ctx context.Context, id int64) (DriverRecord, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT choferes_id, apellido_nombre, dni, anios, empresa, estado, sector, puesto, foto
		FROM choferes WHERE choferes_id=$1`, id)
	var rec DriverRecord
	err := row.Scan(&rec.ID, &rec.ApellidoNombre, &rec.DNI, &rec.Anios, &rec.Empresa,
		&rec.Estado, &rec.Sector, &rec.Puesto, &rec.Foto)
	if err != nil {
		return DriverRecord{}, ErrNotFound
	}
	return rec, nil
}

// ListDrivers returns the active driver catalog, optionally narrowed by a
// name or document search term.
func (r *Repository) ListDrivers(ctx context.Context, search string) ([]DriverRecord, error) {
	query := `
		SELECT choferes_id, apellido_nombre, dni, anios, empresa, estado, sector, puesto, foto
		FROM choferes
		WHERE sector='CHOFERES' AND estado='A'`
	args := []any{}
	if strings.TrimSpace(search) != "" {
		args = append(args, "%"+strings.TrimSpace(search)+"%")
		query += fmt.Sprintf(" AND (apellido_nombre ILIKE $%d OR dni ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY apellido_nombre ASC"
	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []DriverRecord{}
	for rows.Next() {
		var rec DriverRecord
		if err := rows.Scan(&rec.ID, &rec.ApellidoNombre, &rec.DNI, &rec.Anios, &rec.Empresa,
			&rec.Estado, &rec.Sector, &rec.Puesto, &rec.Foto); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, nil
}

// ListDevices derives the device catalog from the alarm history: one row per
// dispositivo with its recorded fleet number and plate plus alarm totals.
func (r *Repository) ListDevices(ctx context.Context, search string) ([]DeviceSummary, error) {
	query := `
		SELECT dispositivo, max(interno), max(patente), count(*),
			count(*) FILTER (WHERE estado = ANY($1))
		FROM alarmas_historico
		WHERE dispositivo IS NOT NULL`
	args := []any{status.StorageValues(status.Confirmed)}
	if search != "" {
		args = append(args, "%"+search+"%", search)
		query += ` AND (patente ILIKE $2 OR interno ILIKE $2 OR dispositivo::text = $3)`
	}
	query += `
		GROUP BY dispositivo
		ORDER BY dispositivo ASC`
	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	devices := []DeviceSummary{}
	for rows.Next() {
		var d DeviceSummary
		if err := rows.Scan(&d.Dispositivo, &d.Interno, &d.Patente, &d.Total, &d.Confirmed); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (r *Repository) ListAnomalies(ctx context.Context) ([]AnomalyRecord, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT anomalia_id, nom_anomalia, descripcion
		FROM anomalia ORDER BY nom_anomalia ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []AnomalyRecord{}
	for rows.Next() {
		var rec AnomalyRecord
		if err := rows.Scan(&rec.ID, &rec.Nombre, &rec.Descripcion); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, nil
}

func buildAlarmWhere(filter AlarmFilter) (string, []any) {
	clauses := []string{}
	args := []any{}
	if len(filter.EstadoIn) > 0 {
		args = append(args, filter.EstadoIn)
		clauses = append(clauses, fmt.Sprintf("estado = ANY($%d)", len(args)))
	}
	if strings.TrimSpace(filter.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(patente ILIKE $%d OR interno ILIKE $%d OR tipo_alarma ILIKE $%d)", n, n, n))
	}
	if strings.TrimSpace(filter.Empresa) != "" {
		args = append(args, filter.Empresa)
		clauses = append(clauses, fmt.Sprintf("empresa = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("alarm_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("alarm_time <= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Repository) ListAlarms(ctx context.Context, filter AlarmFilter) (AlarmPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 12
	}
	where, args := buildAlarmWhere(filter)

	var total int
	if err := r.Store.Pool.QueryRow(ctx,
		`SELECT count(*) FROM alarmas_historico`+where, args...).Scan(&total); err != nil {
		return AlarmPage{}, err
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := fmt.Sprintf(`
		SELECT `+alarmColumns+`
		FROM alarmas_historico%s
		ORDER BY alarm_time DESC NULLS LAST
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return AlarmPage{}, err
	}
	defer rows.Close()
	alarms := []AlarmRecord{}
	for rows.Next() {
		rec, err := scanAlarm(rows)
		if err != nil {
			return AlarmPage{}, err
		}
		alarms = append(alarms, rec)
	}
	totalPages := (total + filter.PageSize - 1) / filter.PageSize
	return AlarmPage{Alarms: alarms, Total: total, Page: filter.Page, PageSize: filter.PageSize, TotalPages: totalPages}, nil
}

func (r *Repository) countByStatus(ctx context.Context, s status.Status, extra string, args ...any) (int, error) {
	variants := status.StorageValues(s)
	queryArgs := append([]any{variants}, args...)
	query := `SELECT count(*) FROM alarmas_historico WHERE estado = ANY($1)` + extra
	var n int
	if err := r.Store.Pool.QueryRow(ctx, query, queryArgs...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GlobalCounts returns the per-state totals across the whole table. Rows
// whose estado matches no known variant are counted as pending, matching
// how Normalize resolves them.
func (r *Repository) GlobalCounts(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	if err := r.Store.Pool.QueryRow(ctx,
		`SELECT count(*) FROM alarmas_historico`).Scan(&counts.Total); err != nil {
		return StatusCounts{}, err
	}
	var err error
	if counts.Suspicious, err = r.countByStatus(ctx, status.Suspicious, ""); err != nil {
		return StatusCounts{}, err
	}
	if counts.Confirmed, err = r.countByStatus(ctx, status.Confirmed, ""); err != nil {
		return StatusCounts{}, err
	}
	if counts.Rejected, err = r.countByStatus(ctx, status.Rejected, ""); err != nil {
		return StatusCounts{}, err
	}
	counts.Pending = counts.Total - counts.Suspicious - counts.Confirmed - counts.Rejected
	return counts, nil
}

func (r *Repository) DriverStats(ctx context.Context, driverID int64) (DriverStats, error) {
	var stats DriverStats
	if err := r.Store.Pool.QueryRow(ctx,
		`SELECT count(*) FROM alarmas_historico WHERE chofer_id=$1`, driverID).Scan(&stats.Total); err != nil {
		return DriverStats{}, err
	}
	var err error
	if stats.Suspicious, err = r.countByStatus(ctx, status.Suspicious, " AND chofer_id=$2", driverID); err != nil {
		return DriverStats{}, err
	}
	if stats.Confirmed, err = r.countByStatus(ctx, status.Confirmed, " AND chofer_id=$2", driverID); err != nil {
		return DriverStats{}, err
	}
	if stats.Rejected, err = r.countByStatus(ctx, status.Rejected, " AND chofer_id=$2", driverID); err != nil {
		return DriverStats{}, err
	}
	stats.Pending = stats.Total - stats.Suspicious - stats.Confirmed - stats.Rejected
	return stats, nil
}

// RecentAlarmsForDriver returns the driver's latest alarms for the detail view.
func (r *Repository) RecentAlarmsForDriver(ctx context.Context, driverID int64, limit int) ([]AlarmRecord, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT `+alarmColumns+`
		FROM alarmas_historico
		WHERE chofer_id=$1
		ORDER BY alarm_time DESC NULLS LAST
		LIMIT $2`, driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	alarms := []AlarmRecord{}
	for rows.Next() {
		rec, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, rec)
	}
	return alarms, nil
}

// ListSuspiciousWithoutVideo feeds the retry sweeper: suspicious alarms with
// no video yet, newest first, no older than the given cutoff. Videos age out
// of the camera platform quickly, so sweeping older alarms is pointless.
func (r *Repository) ListSuspiciousWithoutVideo(ctx context.Context, since time.Time) ([]AlarmRecord, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT `+alarmColumns+`
		FROM alarmas_historico
		WHERE estado = ANY($1)
		  AND (video IS NULL OR video = '')
		  AND alarm_time >= $2
		ORDER BY alarm_time DESC`, status.StorageValues(status.Suspicious), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	alarms := []AlarmRecord{}
	for rows.Next() {
		rec, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, rec)
	}
	return alarms, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
