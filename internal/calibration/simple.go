package calibration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rehab-data/motion.report/internal/angles"
	"github.com/rehab-data/motion.report/internal/announce"
	"github.com/rehab-data/motion.report/internal/exercise"
	"github.com/rehab-data/motion.report/internal/monitoring"
	"github.com/rehab-data/motion.report/internal/pose"
	"github.com/rehab-data/motion.report/internal/rom"
)

// DefaultSimpleTimeout bounds the wait for the single warm-up repetition of
// each exercise.
const DefaultSimpleTimeout = 30 * time.Second

// Simple runs the warm-up calibration: one repetition of each exercise in
// the patient's session, with the tracker recording angle extremes instead
// of merely counting.
type Simple struct {
	source    pose.Source
	calc      *angles.Calculator
	announcer announce.Announcer
	store     rom.Storer
	sched     exercise.Scheduler

	// Timeout per exercise; zero selects the default.
	Timeout time.Duration

	// CoordinateScale matches the tracker's positional threshold scaling.
	CoordinateScale float64
}

// NewSimple wires a warm-up calibration runner.
func NewSimple(source pose.Source, calc *angles.Calculator, announcer announce.Announcer, store rom.Storer, sched exercise.Scheduler) *Simple {
	if announcer == nil {
		announcer = announce.Log{}
	}
	return &Simple{
		source:    source,
		calc:      calc,
		announcer: announcer,
		store:     store,
		sched:     sched,
	}
}

// Run calibrates one warm-up repetition per exercise. Unknown exercises and
// exercises that time out are skipped; the session records whatever was
// measured. Sessions are append-only so repeat runs accumulate history.
func (s *Simple) Run(ctx context.Context, patientID string, exercises []string) (*rom.Session, error) {
	sess := &rom.Session{
		SessionID: uuid.NewString(),
		PatientID: patientID,
		Taken:     time.Now().UTC(),
		Exercises: make(map[string]rom.SessionRanges, len(exercises)),
	}

	for i, id := range exercises {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		def, err := exercise.Lookup(id)
		if err != nil {
			monitoring.Logf("calibration: skipping unknown exercise %q", id)
			continue
		}
		monitoring.Logf("calibration: [%d/%d] warm-up %s", i+1, len(exercises), id)
		s.announcer.Instruction("Do ONE repetition of " + id)

		ranges, ok := s.calibrateOne(ctx, def)
		if !ok {
			monitoring.Logf("calibration: %s: no repetition within timeout, skipped", id)
			continue
		}
		sess.Exercises[id] = ranges
		s.announcer.Count(1)
	}

	sess.OverallScore = OverallScore(sessionEntries(sess))
	sess.AsymmetryScore = AsymmetryScore(sessionEntries(sess))

	if s.store != nil {
		if err := s.store.AppendSession(ctx, sess); err != nil {
			return sess, fmt.Errorf("%w: %v", ErrNotDurable, err)
		}
	}
	return sess, nil
}

// calibrateOne waits for a single repetition with range tracking enabled.
func (s *Simple) calibrateOne(ctx context.Context, def exercise.Definition) (rom.SessionRanges, bool) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultSimpleTimeout
	}
	deadline := time.Now().Add(timeout)

	s.calc.Reset()
	tracker := exercise.NewTracker(def, s.calc, exercise.TrackerOptions{
		RangeTracking:   true,
		CoordinateScale: s.CoordinateScale,
	})

	for tracker.Reps() < 1 {
		if ctx.Err() != nil || time.Now().After(deadline) {
			return rom.SessionRanges{}, false
		}
		frame, err := s.source.NextFrame(ctx)
		if err == nil {
			tracker.Observe(frame)
		}
		if s.sched.Tick(ctx) != nil {
			return rom.SessionRanges{}, false
		}
	}

	r := tracker.Ranges()
	var out rom.SessionRanges
	if r.RightSeen {
		out.RightMax, out.RightMin = r.RightMax, r.RightMin
	}
	if r.LeftSeen {
		out.LeftMax, out.LeftMin = r.LeftMax, r.LeftMin
	}
	return out, true
}

// sessionEntries folds a session's per-exercise extremes onto measurement
// keys so the protocol scoring applies to warm-up sessions too.
func sessionEntries(sess *rom.Session) map[string]rom.Range {
	entries := make(map[string]rom.Range)
	for id, rg := range sess.Exercises {
		def, err := exercise.Lookup(id)
		if err != nil || len(def.Triples) == 0 {
			continue
		}
		primary := def.Triples[0]
		if key := primary.MeasurementKey(pose.Right); key != "" && rg.RightMax > 0 {
			entries[key] = rom.Range{Max: rg.RightMax, Min: rg.RightMin}
		}
		if key := primary.MeasurementKey(pose.Left); key != "" && rg.LeftMax > 0 {
			entries[key] = rom.Range{Max: rg.LeftMax, Min: rg.LeftMin}
		}
	}
	return entries
}
