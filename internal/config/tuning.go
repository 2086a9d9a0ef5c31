package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/config endpoint so the same JSON can be used
// for both startup configuration and runtime inspection.
type TuningConfig struct {
	// Angle smoothing params
	MaxAngleJump *float64 `json:"max_angle_jump,omitempty"`

	// Engine pacing params
	TickInterval      *string `json:"tick_interval,omitempty"`       // duration string like "100ms"
	PauseIdleInterval *string `json:"pause_idle_interval,omitempty"` // duration string like "10ms"
	FrameTimeout      *string `json:"frame_timeout,omitempty"`       // duration string like "1s"
	TargetReps        *int    `json:"target_reps,omitempty"`

	// Skeleton backend params
	CoordinateScale *float64 `json:"coordinate_scale,omitempty"`

	// Calibration params
	CalibrationWindow         *string  `json:"calibration_window,omitempty"`
	CalibrationSampleInterval *string  `json:"calibration_sample_interval,omitempty"`
	PositionDelay             *string  `json:"position_delay,omitempty"`
	MeasurementGap            *string  `json:"measurement_gap,omitempty"`
	SimpleCalibrationTimeout  *string  `json:"simple_calibration_timeout,omitempty"`
	SafetyFactor              *float64 `json:"safety_factor,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxAngleJump != nil && *c.MaxAngleJump <= 0 {
		return fmt.Errorf("max_angle_jump must be positive, got %f", *c.MaxAngleJump)
	}

	if c.CoordinateScale != nil && *c.CoordinateScale <= 0 {
		return fmt.Errorf("coordinate_scale must be positive, got %f", *c.CoordinateScale)
	}

	if c.SafetyFactor != nil {
		if *c.SafetyFactor <= 0 || *c.SafetyFactor > 1 {
			return fmt.Errorf("safety_factor must be in (0, 1], got %f", *c.SafetyFactor)
		}
	}

	if c.TargetReps != nil && *c.TargetReps <= 0 {
		return fmt.Errorf("target_reps must be positive, got %d", *c.TargetReps)
	}

	durations := map[string]*string{
		"tick_interval":               c.TickInterval,
		"pause_idle_interval":         c.PauseIdleInterval,
		"frame_timeout":               c.FrameTimeout,
		"calibration_window":          c.CalibrationWindow,
		"calibration_sample_interval": c.CalibrationSampleInterval,
		"position_delay":              c.PositionDelay,
		"measurement_gap":             c.MeasurementGap,
		"simple_calibration_timeout":  c.SimpleCalibrationTimeout,
	}
	for name, v := range durations {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

func (c *TuningConfig) duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetMaxAngleJump returns the max_angle_jump value or the default.
func (c *TuningConfig) GetMaxAngleJump() float64 {
	if c.MaxAngleJump == nil {
		return 10.0 // degrees per frame
	}
	return *c.MaxAngleJump
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return c.duration(c.TickInterval, 100*time.Millisecond)
}

// GetPauseIdleInterval parses and returns the PauseIdleInterval as a time.Duration.
func (c *TuningConfig) GetPauseIdleInterval() time.Duration {
	return c.duration(c.PauseIdleInterval, 10*time.Millisecond)
}

// GetFrameTimeout parses and returns the FrameTimeout as a time.Duration.
func (c *TuningConfig) GetFrameTimeout() time.Duration {
	return c.duration(c.FrameTimeout, time.Second)
}

// GetTargetReps returns the target_reps value or the default.
func (c *TuningConfig) GetTargetReps() int {
	if c.TargetReps == nil {
		return 5
	}
	return *c.TargetReps
}

// GetCoordinateScale returns the coordinate_scale value or the default.
func (c *TuningConfig) GetCoordinateScale() float64 {
	if c.CoordinateScale == nil {
		return 1.0
	}
	return *c.CoordinateScale
}

// GetCalibrationWindow parses and returns the CalibrationWindow as a time.Duration.
func (c *TuningConfig) GetCalibrationWindow() time.Duration {
	return c.duration(c.CalibrationWindow, 4*time.Second)
}

// GetCalibrationSampleInterval parses and returns the CalibrationSampleInterval as a time.Duration.
func (c *TuningConfig) GetCalibrationSampleInterval() time.Duration {
	return c.duration(c.CalibrationSampleInterval, 100*time.Millisecond)
}

// GetPositionDelay parses and returns the PositionDelay as a time.Duration.
func (c *TuningConfig) GetPositionDelay() time.Duration {
	return c.duration(c.PositionDelay, 2*time.Second)
}

// GetMeasurementGap parses and returns the MeasurementGap as a time.Duration.
func (c *TuningConfig) GetMeasurementGap() time.Duration {
	return c.duration(c.MeasurementGap, time.Second)
}

// GetSimpleCalibrationTimeout parses and returns the SimpleCalibrationTimeout as a time.Duration.
func (c *TuningConfig) GetSimpleCalibrationTimeout() time.Duration {
	return c.duration(c.SimpleCalibrationTimeout, 30*time.Second)
}

// GetSafetyFactor returns the safety_factor value or the default.
func (c *TuningConfig) GetSafetyFactor() float64 {
	if c.SafetyFactor == nil {
		return 0.90
	}
	return *c.SafetyFactor
}
