// Package video launches and supervises the out-of-process media extraction
// job that fetches camera footage for a suspicious alarm.
package video

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"fleetwatch-backend/internal/storage"
)

// Trigger is the fire-and-forget launcher for the external extractor.
// Launch never returns an error: every outcome is logged and none of them
// may affect the alarm's persisted state.
type Trigger struct {
	cfg    ExtractorConfig
	logger *slog.Logger
}

func NewTrigger(cfg ExtractorConfig, logger *slog.Logger) *Trigger {
	return &Trigger{cfg: cfg, logger: logger}
}

// Launch runs the extractor for one alarm and logs the outcome. An alarm
// missing its device, event time or guid is skipped with a warning; the
// extractor cannot locate footage without all three.
func (t *Trigger) Launch(ctx context.Context, alarm storage.AlarmRecord) {
	if alarm.Dispositivo == nil || alarm.AlarmTime == nil || alarm.GUID == "" {
		t.logger.Warn("insufficient data for video retrieval, skipping",
			slog.String("guid", alarm.GUID),
			slog.Bool("hasDevice", alarm.Dispositivo != nil),
			slog.Bool("hasAlarmTime", alarm.AlarmTime != nil))
		return
	}

	args := append(append([]string{}, t.cfg.Args...),
		strconv.FormatInt(*alarm.Dispositivo, 10),
		alarm.AlarmTime.UTC().Format(time.RFC3339),
		alarm.GUID,
	)
	t.logger.Info("launching video extraction",
		slog.String("guid", alarm.GUID),
		slog.String("command", t.cfg.Command),
		slog.Int64("device", *alarm.Dispositivo))

	cmd := exec.CommandContext(ctx, t.cfg.Command, args...)
	if t.cfg.Workdir != "" {
		cmd.Dir = t.cfg.Workdir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.logger.Error("video extraction failed to start",
			slog.String("guid", alarm.GUID),
			slog.String("error", err.Error()))
		return
	}
	err := cmd.Wait()
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		t.logger.Error("video extraction stderr",
			slog.String("guid", alarm.GUID),
			slog.String("stderr", msg))
	}
	if err != nil {
		t.logger.Error("video extraction exited with error",
			slog.String("guid", alarm.GUID),
			slog.String("error", err.Error()))
		return
	}
	t.logger.Info("video extraction finished",
		slog.String("guid", alarm.GUID),
		slog.String("stdout", strings.TrimSpace(stdout.String())))
}
