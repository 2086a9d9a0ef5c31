package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := EmptyTuningConfig()

	assert.Equal(t, 10.0, cfg.GetMaxAngleJump())
	assert.Equal(t, 100*time.Millisecond, cfg.GetTickInterval())
	assert.Equal(t, 10*time.Millisecond, cfg.GetPauseIdleInterval())
	assert.Equal(t, time.Second, cfg.GetFrameTimeout())
	assert.Equal(t, 5, cfg.GetTargetReps())
	assert.Equal(t, 1.0, cfg.GetCoordinateScale())
	assert.Equal(t, 4*time.Second, cfg.GetCalibrationWindow())
	assert.Equal(t, 100*time.Millisecond, cfg.GetCalibrationSampleInterval())
	assert.Equal(t, 2*time.Second, cfg.GetPositionDelay())
	assert.Equal(t, time.Second, cfg.GetMeasurementGap())
	assert.Equal(t, 30*time.Second, cfg.GetSimpleCalibrationTimeout())
	assert.Equal(t, 0.90, cfg.GetSafetyFactor())
}

func TestLoadPartialConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `{"max_angle_jump": 15, "tick_interval": "50ms"}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.GetMaxAngleJump())
	assert.Equal(t, 50*time.Millisecond, cfg.GetTickInterval())
	// Unspecified fields keep their defaults.
	assert.Equal(t, 5, cfg.GetTargetReps())
	assert.Equal(t, 0.90, cfg.GetSafetyFactor())
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := LoadTuningConfig(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{name: "empty is valid", cfg: TuningConfig{}},
		{name: "negative jump", cfg: TuningConfig{MaxAngleJump: ptrFloat64(-1)}, wantErr: true},
		{name: "zero scale", cfg: TuningConfig{CoordinateScale: ptrFloat64(0)}, wantErr: true},
		{name: "safety above one", cfg: TuningConfig{SafetyFactor: ptrFloat64(1.2)}, wantErr: true},
		{name: "safety at one", cfg: TuningConfig{SafetyFactor: ptrFloat64(1.0)}},
		{name: "zero reps", cfg: TuningConfig{TargetReps: ptrInt(0)}, wantErr: true},
		{name: "bad duration", cfg: TuningConfig{TickInterval: ptrString("fast")}, wantErr: true},
		{name: "good duration", cfg: TuningConfig{TickInterval: ptrString("250ms")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := MustLoadDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10.0, cfg.GetMaxAngleJump())
	assert.Equal(t, 30*time.Second, cfg.GetSimpleCalibrationTimeout())
}
