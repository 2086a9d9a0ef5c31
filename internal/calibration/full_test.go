package calibration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehab-data/motion.report/internal/angles"
	"github.com/rehab-data/motion.report/internal/pose"
	"github.com/rehab-data/motion.report/internal/rom"
)

// fakeStore records what was persisted and can simulate failure.
type fakeStore struct {
	rec  *rom.Record
	sess *rom.Session
	fail bool
}

func (f *fakeStore) SaveCalibration(ctx context.Context, rec *rom.Record) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.rec = rec
	return nil
}

func (f *fakeStore) AppendSession(ctx context.Context, sess *rom.Session) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.sess = sess
	return nil
}

func (f *fakeStore) Load(ctx context.Context, patientID string) (*rom.Record, error) {
	return f.rec, nil
}

// instant removes all pacing from the protocol.
var instant = Options{
	Window:         -1,
	SampleInterval: -1,
	PositionDelay:  -1,
	MeasurementGap: -1,
}

func j(name string, x, y, z float64) pose.Joint {
	return pose.Joint{Name: name, X: x, Y: y, Z: z, Visible: true}
}

// calibrationFrame covers every joint the protocol samples, posed so that no
// measured triple is degenerate.
func calibrationFrame() pose.Frame {
	joints := []pose.Joint{
		j("nose", 0, 180, 0),
		j("R_shoulder", 100, 100, 5),
		j("L_shoulder", -100, 100, 5),
		j("R_elbow", 180, 40, 10),
		j("L_elbow", -180, 40, 10),
		j("R_wrist", 200, -40, 20),
		j("L_wrist", -200, -40, 20),
		j("R_hip", 80, -100, 0),
		j("L_hip", -80, -100, 0),
	}
	f := make(pose.Frame, len(joints))
	for _, joint := range joints {
		f[joint.Name] = joint
	}
	return f
}

func TestFullRunRecordsEveryMeasurement(t *testing.T) {
	t.Parallel()
	source := &pose.ScriptedSource{Script: []pose.Frame{calibrationFrame()}, Loop: true}
	store := &fakeStore{}
	full := NewFull(source, angles.NewCalculator(0), nil, store, instant)

	rec, err := full.Run(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "p1", rec.PatientID)
	assert.Len(t, rec.Entries, len(Measurements))
	for _, m := range Measurements {
		rg, ok := rec.Entries[m.Name]
		require.True(t, ok, m.Name)
		assert.GreaterOrEqual(t, rg.Max, rg.Min, m.Name)
		assert.Greater(t, rg.Max, 0.0, m.Name)
	}
	assert.Same(t, rec, store.rec)
}

func TestFullRunFallsBackToDefaults(t *testing.T) {
	t.Parallel()
	// A source that never produces a frame: every measurement must fall back
	// to its clinical defaults and the protocol must still complete.
	source := &pose.ScriptedSource{}
	full := NewFull(source, angles.NewCalculator(0), nil, &fakeStore{}, instant)

	rec, err := full.Run(context.Background(), "p1")
	require.NoError(t, err)

	for _, m := range Measurements {
		assert.Equal(t, rom.Range{Max: m.NormalMax, Min: m.NormalMin}, rec.Entries[m.Name])
	}
	assert.InDelta(t, 100.0, rec.OverallScore, 1e-9)
	assert.InDelta(t, 0.0, rec.AsymmetryScore, 1e-9)
}

func TestFullRunCancelledBeforeStart(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	full := NewFull(&pose.ScriptedSource{}, angles.NewCalculator(0), nil, store, instant)

	rec, err := full.Run(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, rec)
	assert.Nil(t, store.rec, "nothing may be persisted after cancellation")
}

func TestFullRunPersistFailure(t *testing.T) {
	t.Parallel()
	source := &pose.ScriptedSource{Script: []pose.Frame{calibrationFrame()}, Loop: true}
	full := NewFull(source, angles.NewCalculator(0), nil, &fakeStore{fail: true}, instant)

	rec, err := full.Run(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNotDurable)
	require.NotNil(t, rec, "the computed record accompanies the error")
	assert.Len(t, rec.Entries, len(Measurements))
}

func TestMeasurementCatalogShape(t *testing.T) {
	t.Parallel()
	assert.Len(t, Measurements, 16)
	seen := make(map[string]bool)
	for _, m := range Measurements {
		assert.False(t, seen[m.Name], "duplicate measurement %s", m.Name)
		seen[m.Name] = true
		assert.Greater(t, m.NormalMax, m.NormalMin, m.Name)
		assert.NotEmpty(t, m.Instruction, m.Name)
		assert.NotEmpty(t, m.RestInstruction, m.Name)
	}
}
