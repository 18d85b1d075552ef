package video

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ExtractorConfig describes the out-of-process media extraction job. The
// command receives three trailing arguments: device id, event timestamp in
// RFC 3339, and the alarm guid. A zero timeout means no deadline is imposed
// on the extractor; it is trusted to bound its own runtime.
type ExtractorConfig struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	Workdir        string   `yaml:"workdir"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
}

// Timeout returns the configured extraction deadline, zero when unset.
func (c ExtractorConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SweepConfig tunes the automatic retry sweep. Durations are configured in
// whole seconds; zero values fall back to the defaults below, and a negative
// pace disables the delay between launches.
type SweepConfig struct {
	IntervalSeconds int    `yaml:"intervalSeconds"`
	LookbackHours   int    `yaml:"lookbackHours"`
	PaceSeconds     int    `yaml:"paceSeconds"`
	MaxAttempts     int    `yaml:"maxAttempts"`
	TrackerPath     string `yaml:"trackerPath"`
}

type Config struct {
	Extractor ExtractorConfig `yaml:"extractor"`
	Sweep     SweepConfig     `yaml:"sweep"`
}

const (
	defaultSweepIntervalSeconds = 3600
	defaultSweepLookbackHours   = 48
	defaultSweepPaceSeconds     = 60
	defaultMaxAttempts          = 10
	defaultTrackerPath          = "video-retry-tracker.json"
)

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Extractor.Command == "" {
		return Config{}, fmt.Errorf("extractor command is required")
	}
	cfg.Sweep = cfg.Sweep.withDefaults()
	return cfg, nil
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = defaultSweepIntervalSeconds
	}
	if c.LookbackHours <= 0 {
		c.LookbackHours = defaultSweepLookbackHours
	}
	if c.PaceSeconds == 0 {
		c.PaceSeconds = defaultSweepPaceSeconds
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.TrackerPath == "" {
		c.TrackerPath = defaultTrackerPath
	}
	return c
}

func (c SweepConfig) interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c SweepConfig) lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

func (c SweepConfig) pace() time.Duration {
	if c.PaceSeconds < 0 {
		return 0
	}
	return time.Duration(c.PaceSeconds) * time.Second
}
