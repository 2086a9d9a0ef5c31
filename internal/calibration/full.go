package calibration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/rehab-data/motion.report/internal/angles"
	"github.com/rehab-data/motion.report/internal/announce"
	"github.com/rehab-data/motion.report/internal/monitoring"
	"github.com/rehab-data/motion.report/internal/pose"
	"github.com/rehab-data/motion.report/internal/rom"
)

// ErrNotDurable marks a calibration that completed but could not be
// persisted. The computed record still accompanies the error.
var ErrNotDurable = errors.New("calibration result not persisted")

// Defaults for the full protocol's pacing.
const (
	DefaultWindow         = 4 * time.Second
	DefaultSampleInterval = 100 * time.Millisecond
	DefaultPositionDelay  = 2 * time.Second
	DefaultMeasurementGap = time.Second
)

// Options pace the full protocol. Zero values select the defaults; tests set
// the intervals to a negative value to step instantly.
type Options struct {
	// Window is how long each extreme pose is sampled.
	Window time.Duration

	// SampleInterval separates consecutive samples inside a window.
	SampleInterval time.Duration

	// PositionDelay is the pause after an instruction, giving the patient
	// time to assume the pose.
	PositionDelay time.Duration

	// MeasurementGap is the pause between protocol measurements.
	MeasurementGap time.Duration
}

func (o Options) withDefaults() Options {
	if o.Window == 0 {
		o.Window = DefaultWindow
	}
	if o.SampleInterval == 0 {
		o.SampleInterval = DefaultSampleInterval
	}
	if o.PositionDelay == 0 {
		o.PositionDelay = DefaultPositionDelay
	}
	if o.MeasurementGap == 0 {
		o.MeasurementGap = DefaultMeasurementGap
	}
	return o
}

// samplesPerWindow converts the window/interval pair into an iteration count
// so instant-stepping tests still take a full set of samples.
func (o Options) samplesPerWindow() int {
	if o.SampleInterval <= 0 {
		return int(DefaultWindow / DefaultSampleInterval)
	}
	n := int(o.Window / o.SampleInterval)
	if n < 1 {
		n = 1
	}
	return n
}

// Full runs the guided 16-measurement protocol: for each measurement the
// patient holds the extreme pose, then the rest pose, and the sampled
// extremes become their ROM record.
type Full struct {
	source    pose.Source
	calc      *angles.Calculator
	announcer announce.Announcer
	store     rom.Storer
	opts      Options
}

// NewFull wires a full-protocol runner. The announcer may be nil; the store
// may be nil for a dry run.
func NewFull(source pose.Source, calc *angles.Calculator, announcer announce.Announcer, store rom.Storer, opts Options) *Full {
	if announcer == nil {
		announcer = announce.Log{}
	}
	return &Full{
		source:    source,
		calc:      calc,
		announcer: announcer,
		store:     store,
		opts:      opts.withDefaults(),
	}
}

// Run executes the protocol for one patient. Cancellation is honoured at
// measurement boundaries: a measurement in progress runs to completion, and
// the record is only computed and saved when every measurement finished.
// A measurement that yields no usable samples falls back to its clinical
// defaults and the protocol continues.
func (f *Full) Run(ctx context.Context, patientID string) (*rom.Record, error) {
	entries := make(map[string]rom.Range, len(Measurements))

	for i, m := range Measurements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		monitoring.Logf("calibration: [%d/%d] %s", i+1, len(Measurements), m.Display)

		maxVal, minVal, ok := f.measure(ctx, m)
		if !ok {
			monitoring.Logf("calibration: %s: no samples, using defaults %g-%g", m.Name, m.NormalMin, m.NormalMax)
			maxVal, minVal = m.NormalMax, m.NormalMin
		}
		entries[m.Name] = rom.Range{Max: maxVal, Min: minVal}

		wait(ctx, f.opts.MeasurementGap)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &rom.Record{
		PatientID:      patientID,
		Taken:          time.Now().UTC(),
		Entries:        entries,
		OverallScore:   OverallScore(entries),
		AsymmetryScore: AsymmetryScore(entries),
		Notes:          "Initial calibration",
	}

	if f.store != nil {
		if err := f.store.SaveCalibration(ctx, rec); err != nil {
			return rec, fmt.Errorf("%w: %v", ErrNotDurable, err)
		}
	}
	return rec, nil
}

// measure samples one measurement's extreme and rest poses. Returns ok=false
// when either window produced no usable angle.
func (f *Full) measure(ctx context.Context, m Measurement) (maxVal, minVal float64, ok bool) {
	f.calc.Reset()

	f.announcer.Instruction(m.Instruction)
	wait(ctx, f.opts.PositionDelay)
	maxSamples := f.sampleWindow(ctx, m)

	f.announcer.Instruction(m.RestInstruction)
	wait(ctx, f.opts.PositionDelay)
	minSamples := f.sampleWindow(ctx, m)

	if len(maxSamples) == 0 || len(minSamples) == 0 {
		return 0, 0, false
	}

	maxVal = floats.Max(maxSamples)
	minVal = floats.Min(minSamples)
	if maxVal < minVal {
		maxVal, minVal = minVal, maxVal
	}
	return maxVal, minVal, true
}

// sampleWindow collects the measurement's angle for one window. Frames with
// missing joints, undefined angles, or non-positive values are discarded.
func (f *Full) sampleWindow(ctx context.Context, m Measurement) []float64 {
	var samples []float64
	for i := 0; i < f.opts.samplesPerWindow(); i++ {
		if ctx.Err() != nil {
			break
		}
		frame, err := f.source.NextFrame(ctx)
		if err == nil {
			if angle, ok := f.frameAngle(frame, m); ok {
				samples = append(samples, angle)
			}
		} else if !errors.Is(err, pose.ErrNoData) && ctx.Err() == nil {
			monitoring.Logf("calibration: skeleton source: %v", err)
		}
		wait(ctx, f.opts.SampleInterval)
	}
	return samples
}

func (f *Full) frameAngle(frame pose.Frame, m Measurement) (float64, bool) {
	a, ok := frame.Lookup(m.Joints[0])
	if !ok {
		return 0, false
	}
	vertex, ok := frame.Lookup(m.Joints[1])
	if !ok {
		return 0, false
	}
	c, ok := frame.Lookup(m.Joints[2])
	if !ok {
		return 0, false
	}
	angle, err := f.calc.Compute(a, vertex, c, "calibration")
	if err != nil || angle <= 0 {
		return 0, false
	}
	return angle, true
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
