// Package review implements the alarm review state machine: first-pass
// triage, driver assignment, final confirmation, re-evaluation and manual
// video retries. All mutations go through here; nothing else writes alarm
// state.
package review

import (
	"context"
	"log/slog"
	"strings"

	"fleetwatch-backend/internal/status"
	"fleetwatch-backend/internal/storage"
)

// Triage actions accepted on the wire. "confirmed" is first-pass intent and
// moves the alarm to suspicious, not to confirmed; only ConfirmFinal does that.
const (
	ActionConfirm = "confirmed"
	ActionReject  = "rejected"
)

// Store is the storage port the state machine mutates through. Each
// operation reads the record fresh immediately before writing, so a stale
// in-memory copy is never the basis for a transition.
type Store interface {
	FindAlarm(ctx context.Context, guid string) (storage.AlarmRecord, error)
	UpdateAlarm(ctx context.Context, guid string, patch storage.AlarmPatch) (storage.AlarmRecord, error)
	FindDriver(ctx context.Context, id int64) (storage.DriverRecord, error)
}

// Dispatcher requests a video retrieval for an alarm. Implementations are
// fire-and-forget; a dispatch failure is logged here and never rolls back
// the state change that requested it.
type Dispatcher interface {
	RequestRetrieval(guid, reason string) error
}

type Service struct {
	store      Store
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewService(store Store, dispatcher Dispatcher, logger *slog.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, logger: logger}
}

// Action is the transient review command applied to one alarm.
type Action struct {
	Target      string
	Description string
	DriverID    *int64
	AnomalyID   *int64
}

// Review performs the first-pass triage of an alarm: "confirmed" intent
// moves it to suspicious, "rejected" to rejected. A driver may be attached
// in the same step, subject to the company-match invariant. Moving to
// suspicious enqueues a video retrieval.
func (s *Service) Review(ctx context.Context, guid string, action Action) (storage.AlarmRecord, error) {
	if action.Target != ActionConfirm && action.Target != ActionReject {
		return storage.AlarmRecord{}, errInvalidAction(action.Target)
	}
	alarm, err := s.store.FindAlarm(ctx, guid)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}

	target := status.Suspicious
	if action.Target == ActionReject {
		target = status.Rejected
	}
	estado := status.StorageValue(target)
	patch := storage.AlarmPatch{Estado: &estado, AnomaliaID: action.AnomalyID}
	if action.Description != "" {
		patch.Descripcion = &action.Description
	}
	if action.DriverID != nil {
		if err := s.checkDriver(ctx, alarm, *action.DriverID); err != nil {
			return storage.AlarmRecord{}, err
		}
		patch.ChoferID = action.DriverID
	}

	updated, err := s.store.UpdateAlarm(ctx, guid, patch)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	if target == status.Suspicious {
		s.requestRetrieval(updated.GUID, "triage")
	}
	return updated, nil
}

// AssignDriver sets or clears the alarm's driver regardless of its state.
// A nil driverID clears the assignment without any company check.
func (s *Service) AssignDriver(ctx context.Context, guid string, driverID *int64) (storage.AlarmRecord, error) {
	alarm, err := s.store.FindAlarm(ctx, guid)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	patch := storage.AlarmPatch{ClearChofer: true}
	if driverID != nil {
		if err := s.checkDriver(ctx, alarm, *driverID); err != nil {
			return storage.AlarmRecord{}, err
		}
		patch = storage.AlarmPatch{ChoferID: driverID}
	}
	updated, err := s.store.UpdateAlarm(ctx, guid, patch)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	return updated, nil
}

// ConfirmFinal is the terminal positive outcome. Only a suspicious alarm can
// be confirmed, and only with a company-matched driver assigned in the same
// call.
func (s *Service) ConfirmFinal(ctx context.Context, guid, description string, driverID *int64) (storage.AlarmRecord, error) {
	alarm, err := s.store.FindAlarm(ctx, guid)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	if current := status.Normalize(alarm.Estado); current != status.Suspicious {
		return storage.AlarmRecord{}, errInvalidTransition(string(current), string(status.Suspicious))
	}
	if driverID == nil {
		return storage.AlarmRecord{}, errMissingDriver()
	}
	if err := s.checkDriver(ctx, alarm, *driverID); err != nil {
		return storage.AlarmRecord{}, err
	}
	estado := status.StorageValue(status.Confirmed)
	patch := storage.AlarmPatch{Estado: &estado, ChoferID: driverID}
	if description != "" {
		patch.Descripcion = &description
	}
	updated, err := s.store.UpdateAlarm(ctx, guid, patch)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	return updated, nil
}

// ReEvaluate reopens a rejected alarm back into suspicious for a second
// look, and requests a fresh video retrieval: the rejection may have
// happened before any video existed.
func (s *Service) ReEvaluate(ctx context.Context, guid, description string) (storage.AlarmRecord, error) {
	alarm, err := s.store.FindAlarm(ctx, guid)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	if current := status.Normalize(alarm.Estado); current != status.Rejected {
		return storage.AlarmRecord{}, errInvalidTransition(string(current), string(status.Rejected))
	}
	estado := status.StorageValue(status.Suspicious)
	patch := storage.AlarmPatch{Estado: &estado}
	if description != "" {
		patch.Descripcion = &description
	}
	updated, err := s.store.UpdateAlarm(ctx, guid, patch)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	s.requestRetrieval(updated.GUID, "re-evaluation")
	return updated, nil
}

// RetryVideo re-requests the video of a suspicious alarm. It never mutates
// the alarm; the caller acknowledges with 202 without waiting for the job.
func (s *Service) RetryVideo(ctx context.Context, guid string) error {
	alarm, err := s.store.FindAlarm(ctx, guid)
	if err != nil {
		return errNotFound(guid)
	}
	if current := status.Normalize(alarm.Estado); current != status.Suspicious {
		return errInvalidState(string(current), string(status.Suspicious))
	}
	s.requestRetrieval(alarm.GUID, "manual retry")
	return nil
}

// Undo resets an alarm to pending and clears the analyst description so the
// next review starts clean. Undoing an already pending alarm is a no-op
// success, which keeps skip-and-undo flows in the UI from erroring.
func (s *Service) Undo(ctx context.Context, guid string) (storage.AlarmRecord, error) {
	alarm, err := s.store.FindAlarm(ctx, guid)
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	if status.Normalize(alarm.Estado) == status.Pending {
		return alarm, nil
	}
	estado := status.StorageValue(status.Pending)
	updated, err := s.store.UpdateAlarm(ctx, guid, storage.AlarmPatch{Estado: &estado, ClearDescripcion: true})
	if err != nil {
		return storage.AlarmRecord{}, errNotFound(guid)
	}
	return updated, nil
}

// checkDriver resolves the driver and enforces the company-match invariant.
// Existence is checked before companies are compared.
func (s *Service) checkDriver(ctx context.Context, alarm storage.AlarmRecord, driverID int64) error {
	driver, err := s.store.FindDriver(ctx, driverID)
	if err != nil {
		return errDriverNotFound(driverID)
	}
	driverCompany := ""
	if driver.Empresa != nil {
		driverCompany = strings.TrimSpace(*driver.Empresa)
	}
	alarmCompany := ""
	if alarm.Empresa != nil {
		alarmCompany = strings.TrimSpace(*alarm.Empresa)
	}
	if driverCompany != alarmCompany {
		return errCompanyMismatch(driver.ApellidoNombre, alarmCompany)
	}
	return nil
}

func (s *Service) requestRetrieval(guid, reason string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.RequestRetrieval(guid, reason); err != nil {
		s.logger.Error("failed to request video retrieval",
			slog.String("guid", guid),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
	}
}
