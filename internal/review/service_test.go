package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"fleetwatch-backend/internal/status"
	"fleetwatch-backend/internal/storage"
)

type fakeStore struct {
	alarms  map[string]storage.AlarmRecord
	drivers map[int64]storage.DriverRecord
	reads   int
}

func (f *fakeStore) FindAlarm(_ context.Context, guid string) (storage.AlarmRecord, error) {
	f.reads++
	rec, ok := f.alarms[guid]
	if !ok {
		return storage.AlarmRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) UpdateAlarm(_ context.Context, guid string, patch storage.AlarmPatch) (storage.AlarmRecord, error) {
	rec, ok := f.alarms[guid]
	if !ok {
		return storage.AlarmRecord{}, storage.ErrNotFound
	}
	if patch.Estado != nil {
		rec.Estado = *patch.Estado
	}
	if patch.ClearDescripcion {
		rec.Descripcion = nil
	} else if patch.Descripcion != nil {
		rec.Descripcion = patch.Descripcion
	}
	if patch.ClearChofer {
		rec.ChoferID = nil
	} else if patch.ChoferID != nil {
		rec.ChoferID = patch.ChoferID
	}
	if patch.AnomaliaID != nil {
		rec.AnomaliaID = patch.AnomaliaID
	}
	f.alarms[guid] = rec
	return rec, nil
}

func (f *fakeStore) FindDriver(_ context.Context, id int64) (storage.DriverRecord, error) {
	rec, ok := f.drivers[id]
	if !ok {
		return storage.DriverRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

type fakeDispatcher struct {
	requests []string
	fail     bool
}

func (f *fakeDispatcher) RequestRetrieval(guid, reason string) error {
	if f.fail {
		return errors.New("nats unavailable")
	}
	f.requests = append(f.requests, guid+":"+reason)
	return nil
}

func strPtr(s string) *string  { return &s }
func intPtr(n int64) *int64    { return &n }
func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newFixture() (*fakeStore, *fakeDispatcher, *Service) {
	store := &fakeStore{
		alarms: map[string]storage.AlarmRecord{
			"A1": {GUID: "A1", Estado: "Pendiente", Empresa: strPtr("montevera")},
			"A2": {GUID: "A2", Estado: "Sospechosa", Empresa: strPtr("montevera")},
			"A3": {GUID: "A3", Estado: "Rechazada", Empresa: strPtr("montevera")},
		},
		drivers: map[int64]storage.DriverRecord{
			7: {ID: 7, ApellidoNombre: "GOMEZ, JUAN", Empresa: strPtr("montevera")},
			9: {ID: 9, ApellidoNombre: "PEREZ, ANA", Empresa: strPtr("laguna paiva")},
		},
	}
	dispatcher := &fakeDispatcher{}
	return store, dispatcher, NewService(store, dispatcher, testLogger())
}

func reviewErr(t *testing.T, err error) *Error {
	t.Helper()
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *review.Error, got %v", err)
	}
	return re
}

func TestReviewConfirmIntentMovesToSuspiciousAndRequestsVideo(t *testing.T) {
	store, dispatcher, svc := newFixture()
	updated, err := svc.Review(context.Background(), "A1", Action{Target: ActionConfirm, Description: "mirada fuera de ruta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Normalize(updated.Estado) != status.Suspicious {
		t.Fatalf("expected suspicious, got %q", updated.Estado)
	}
	if got := store.alarms["A1"].Estado; got != "Sospechosa" {
		t.Fatalf("persisted estado = %q", got)
	}
	if len(dispatcher.requests) != 1 {
		t.Fatalf("expected one retrieval request, got %d", len(dispatcher.requests))
	}
}

func TestReviewRejectDoesNotRequestVideo(t *testing.T) {
	_, dispatcher, svc := newFixture()
	updated, err := svc.Review(context.Background(), "A1", Action{Target: ActionReject})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Normalize(updated.Estado) != status.Rejected {
		t.Fatalf("expected rejected, got %q", updated.Estado)
	}
	if len(dispatcher.requests) != 0 {
		t.Fatalf("reject must not request retrieval")
	}
}

func TestReviewInvalidAction(t *testing.T) {
	_, _, svc := newFixture()
	_, err := svc.Review(context.Background(), "A1", Action{Target: "maybe"})
	if re := reviewErr(t, err); re.Code != CodeInvalidAction {
		t.Fatalf("code = %q", re.Code)
	}
}

func TestReviewUnknownAlarm(t *testing.T) {
	_, _, svc := newFixture()
	_, err := svc.Review(context.Background(), "nope", Action{Target: ActionConfirm})
	if re := reviewErr(t, err); re.Code != CodeNotFound {
		t.Fatalf("code = %q", re.Code)
	}
}

func TestReviewCompanyMismatchLeavesAlarmPending(t *testing.T) {
	store, dispatcher, svc := newFixture()
	_, err := svc.Review(context.Background(), "A1", Action{Target: ActionConfirm, DriverID: intPtr(9)})
	if re := reviewErr(t, err); re.Code != CodeInvalidAssignment {
		t.Fatalf("code = %q", re.Code)
	}
	if got := status.Normalize(store.alarms["A1"].Estado); got != status.Pending {
		t.Fatalf("alarm must stay pending, got %q", got)
	}
	if len(dispatcher.requests) != 0 {
		t.Fatalf("no retrieval on failed review")
	}
}

func TestReviewUnknownDriverCheckedBeforeCompany(t *testing.T) {
	_, _, svc := newFixture()
	_, err := svc.Review(context.Background(), "A1", Action{Target: ActionConfirm, DriverID: intPtr(42)})
	re := reviewErr(t, err)
	if re.Code != CodeInvalidAssignment {
		t.Fatalf("code = %q", re.Code)
	}
}

func TestDispatchFailureDoesNotRollBackStatus(t *testing.T) {
	store, dispatcher, svc := newFixture()
	dispatcher.fail = true
	updated, err := svc.Review(context.Background(), "A1", Action{Target: ActionConfirm})
	if err != nil {
		t.Fatalf("dispatch failure must not surface: %v", err)
	}
	if status.Normalize(updated.Estado) != status.Suspicious {
		t.Fatalf("status change must survive dispatch failure")
	}
	if got := store.alarms["A1"].Estado; got != "Sospechosa" {
		t.Fatalf("persisted estado = %q", got)
	}
}

func TestAssignDriverNilClearsWithoutCompanyCheck(t *testing.T) {
	store, _, svc := newFixture()
	rec := store.alarms["A2"]
	rec.ChoferID = intPtr(9) // mismatched driver already present
	store.alarms["A2"] = rec

	updated, err := svc.AssignDriver(context.Background(), "A2", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ChoferID != nil {
		t.Fatalf("assignment should be cleared")
	}
}

func TestAssignDriverCompanyMatch(t *testing.T) {
	_, _, svc := newFixture()
	updated, err := svc.AssignDriver(context.Background(), "A2", intPtr(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ChoferID == nil || *updated.ChoferID != 7 {
		t.Fatalf("driver 7 should be assigned")
	}
	_, err = svc.AssignDriver(context.Background(), "A2", intPtr(9))
	if re := reviewErr(t, err); re.Code != CodeInvalidAssignment {
		t.Fatalf("code = %q", re.Code)
	}
}

func TestConfirmFinalRequiresSuspicious(t *testing.T) {
	_, _, svc := newFixture()
	_, err := svc.ConfirmFinal(context.Background(), "A1", "", intPtr(7))
	if re := reviewErr(t, err); re.Code != CodeInvalidTransition {
		t.Fatalf("code = %q", re.Code)
	}
}

func TestConfirmFinalScenario(t *testing.T) {
	store, _, svc := newFixture()

	// No driver supplied: MissingDriver, state untouched.
	_, err := svc.ConfirmFinal(context.Background(), "A2", "desvío de ruta", nil)
	if re := reviewErr(t, err); re.Code != CodeMissingDriver {
		t.Fatalf("code = %q", re.Code)
	}
	if got := status.Normalize(store.alarms["A2"].Estado); got != status.Suspicious {
		t.Fatalf("alarm must stay suspicious, got %q", got)
	}

	// Company-matched driver: success, status becomes confirmed.
	updated, err := svc.ConfirmFinal(context.Background(), "A2", "desvío de ruta", intPtr(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Normalize(updated.Estado) != status.Confirmed {
		t.Fatalf("expected confirmed, got %q", updated.Estado)
	}
	if updated.Descripcion == nil || *updated.Descripcion != "desvío de ruta" {
		t.Fatalf("description not persisted")
	}
}

func TestConfirmFinalCompanyMismatch(t *testing.T) {
	store, _, svc := newFixture()
	_, err := svc.ConfirmFinal(context.Background(), "A2", "", intPtr(9))
	if re := reviewErr(t, err); re.Code != CodeInvalidAssignment {
		t.Fatalf("code = %q", re.Code)
	}
	if got := status.Normalize(store.alarms["A2"].Estado); got != status.Suspicious {
		t.Fatalf("alarm must stay suspicious, got %q", got)
	}
}

func TestReEvaluateAndRetryVideoScenario(t *testing.T) {
	_, dispatcher, svc := newFixture()

	// RetryVideo on a rejected alarm is refused.
	err := svc.RetryVideo(context.Background(), "A3")
	if re := reviewErr(t, err); re.Code != CodeInvalidState {
		t.Fatalf("code = %q", re.Code)
	}

	// ReEvaluate reopens it and requests a retrieval.
	updated, err := svc.ReEvaluate(context.Background(), "A3", "segunda revisión")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Normalize(updated.Estado) != status.Suspicious {
		t.Fatalf("expected suspicious, got %q", updated.Estado)
	}
	if len(dispatcher.requests) != 1 {
		t.Fatalf("re-evaluation must request retrieval")
	}

	// Now suspicious, RetryVideo is accepted and does not mutate status.
	if err := svc.RetryVideo(context.Background(), "A3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.requests) != 2 {
		t.Fatalf("manual retry must request retrieval")
	}
	again, err := svc.ReEvaluate(context.Background(), "A3", "")
	if err == nil {
		t.Fatalf("re-evaluating a suspicious alarm must fail, got %+v", again)
	}
}

func TestReEvaluateRequiresRejected(t *testing.T) {
	_, _, svc := newFixture()
	_, err := svc.ReEvaluate(context.Background(), "A2", "")
	if re := reviewErr(t, err); re.Code != CodeInvalidTransition {
		t.Fatalf("code = %q", re.Code)
	}
}

func TestUndoResetsToPendingAndClearsDescription(t *testing.T) {
	store, _, svc := newFixture()
	rec := store.alarms["A2"]
	rec.Descripcion = strPtr("nota previa")
	store.alarms["A2"] = rec

	updated, err := svc.Undo(context.Background(), "A2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Normalize(updated.Estado) != status.Pending {
		t.Fatalf("expected pending, got %q", updated.Estado)
	}
	if updated.Descripcion != nil {
		t.Fatalf("description should be cleared")
	}

	// Idempotent on an already pending alarm.
	if _, err := svc.Undo(context.Background(), "A2"); err != nil {
		t.Fatalf("undo must be idempotent: %v", err)
	}
}

func TestOperationsReadFreshBeforeWriting(t *testing.T) {
	store, _, svc := newFixture()
	before := store.reads
	if _, err := svc.AssignDriver(context.Background(), "A2", intPtr(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.reads != before+1 {
		t.Fatalf("expected exactly one fresh read, got %d", store.reads-before)
	}
}
