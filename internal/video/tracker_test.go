package video

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleetwatch-backend/internal/storage"
)

func TestTrackerIncrementAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.json")
	tracker := NewTracker(path)
	if got := tracker.Count("g1"); got != 0 {
		t.Fatalf("fresh count = %d", got)
	}
	if got := tracker.Increment("g1"); got != 1 {
		t.Fatalf("first increment = %d", got)
	}
	if got := tracker.Increment("g1"); got != 2 {
		t.Fatalf("second increment = %d", got)
	}

	reloaded := NewTracker(path)
	if got := reloaded.Count("g1"); got != 2 {
		t.Fatalf("reloaded count = %d", got)
	}

	reloaded.Clear("g1")
	if got := NewTracker(path).Count("g1"); got != 0 {
		t.Fatalf("cleared count = %d", got)
	}
}

func TestTrackerLoadIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	tracker := NewTracker(path)
	if got := tracker.Count("anything"); got != 0 {
		t.Fatalf("corrupt file should start empty, count = %d", got)
	}
}

func TestTrackerPrune(t *testing.T) {
	tracker := NewTracker("")
	tracker.Increment("fresh")
	tracker.entries["stale"] = &trackerEntry{RetryCount: 4, LastRetryAt: time.Now().Add(-100 * time.Hour)}
	if removed := tracker.Prune(72 * time.Hour); removed != 1 {
		t.Fatalf("pruned = %d", removed)
	}
	if tracker.Count("fresh") != 1 || tracker.Count("stale") != 0 {
		t.Fatalf("pruned the wrong entry")
	}
}

type fakeSweepStore struct {
	alarms []storage.AlarmRecord
}

func (f *fakeSweepStore) ListSuspiciousWithoutVideo(context.Context, time.Time) ([]storage.AlarmRecord, error) {
	return f.alarms, nil
}

type recordingLauncher struct {
	guids []string
}

func (r *recordingLauncher) Launch(_ context.Context, alarm storage.AlarmRecord) {
	r.guids = append(r.guids, alarm.GUID)
}

func TestSweepRespectsAttemptCap(t *testing.T) {
	now := time.Now()
	device := int64(1)
	store := &fakeSweepStore{alarms: []storage.AlarmRecord{
		{GUID: "capped", Dispositivo: &device, AlarmTime: &now},
		{GUID: "open", Dispositivo: &device, AlarmTime: &now},
	}}
	tracker := NewTracker("")
	for i := 0; i < 10; i++ {
		tracker.Increment("capped")
	}
	launcher := &recordingLauncher{}
	sweeper := NewSweeper(store, launcher, tracker, SweepConfig{PaceSeconds: -1, MaxAttempts: 10}, discardLogger())

	sweeper.sweep(context.Background())

	if len(launcher.guids) != 1 || launcher.guids[0] != "open" {
		t.Fatalf("launched = %v", launcher.guids)
	}
	if tracker.Count("open") != 1 {
		t.Fatalf("open attempt not recorded")
	}
	if tracker.Count("capped") != 10 {
		t.Fatalf("capped alarm must not accrue attempts")
	}
}
