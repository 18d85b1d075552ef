package storage

import "time"

// AlarmRecord mirrors a row of alarmas_historico. The table predates this
// service, hence the Spanish column names and the mostly nullable columns.
type AlarmRecord struct {
	GUID        string
	Estado      string
	TipoAlarma  *string
	AlarmTime   *time.Time
	Lat         *string
	Lng         *string
	Ubi         *string
	Velocidad   *float64
	Descripcion *string
	Imagen      *string
	Video       *string
	Interno     *string
	Patente     *string
	Dispositivo *int64
	ChoferID    *int64
	AnomaliaID  *int64
	Empresa     *string
}

// DriverRecord mirrors a row of choferes.
type DriverRecord struct {
	ID             int64
	ApellidoNombre string
	DNI            *string
	Anios          *int
	Empresa        *string
	Estado         *string
	Sector         *string
	Puesto         *string
	Foto           *string
}

// AnomalyRecord mirrors a row of anomalia, the read-only classification
// catalog analysts attach to alarms at review time.
type AnomalyRecord struct {
	ID          int64
	Nombre      string
	Descripcion *string
}

// AlarmDetailed is an alarm with its driver and anomaly joined, as consumed
// by the report generator and the detail endpoint.
type AlarmDetailed struct {
	AlarmRecord
	Chofer   *DriverRecord
	Anomalia *AnomalyRecord
}

// AlarmPatch describes a partial update applied by the review workflow.
// Nil pointer fields are left untouched; the Clear flags force a column to
// NULL, which a nil pointer cannot express.
type AlarmPatch struct {
	Estado           *string
	Descripcion      *string
	ClearDescripcion bool
	ChoferID         *int64
	ClearChofer      bool
	AnomaliaID       *int64
}

// DeviceSummary aggregates the alarms recorded by one camera device. There
// is no devices table in the historical schema; the catalog is derived from
// alarmas_historico.
type DeviceSummary struct {
	Dispositivo int64
	Interno     *string
	Patente     *string
	Total       int
	Confirmed   int
}

// AlarmFilter narrows list and count queries.
type AlarmFilter struct {
	EstadoIn []string
	Search   string
	Empresa  string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// AlarmPage is one page of alarms plus the totals the UI renders.
type AlarmPage struct {
	Alarms     []AlarmRecord
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// StatusCounts holds the global per-state totals.
type StatusCounts struct {
	Total      int
	Pending    int
	Suspicious int
	Confirmed  int
	Rejected   int
}

// DriverStats aggregates a driver's alarms per canonical state.
type DriverStats struct {
	Total      int
	Pending    int
	Suspicious int
	Confirmed  int
	Rejected   int
}
