package exercise

import (
	"fmt"
	"math"

	"github.com/rehab-data/motion.report/internal/angles"
	"github.com/rehab-data/motion.report/internal/pose"
	"github.com/rehab-data/motion.report/internal/units"
)

// Phase is the hysteresis state of a run. A repetition is one full
// DOWN→UP transition; the counter never moves on the way back down.
type Phase int

const (
	Down Phase = iota
	Up
)

func (p Phase) String() string {
	if p == Up {
		return "up"
	}
	return "down"
}

// Positional predicate offsets for unilateral exercises, in the reference
// backend's coordinate unit (scaled like axis thresholds).
const (
	sidePredicateNear = 50
	sidePredicateFar  = 400
)

// RangeResolver personalizes a triple's up range from the patient's ROM
// record. It receives the record key and the catalog defaults and returns
// the bounds to use; a nil resolver keeps the defaults.
type RangeResolver func(key string, defaultLB, defaultUB float64) (lb, ub float64)

// Ranges accumulates the running extremes of the primary angle on both
// sides. Used by simplified ROM calibration.
type Ranges struct {
	RightMax, RightMin float64
	RightSeen          bool
	LeftMax, LeftMin   float64
	LeftSeen           bool
}

func newRanges() Ranges {
	return Ranges{
		RightMin: units.DegreesMax,
		LeftMin:  units.DegreesMax,
	}
}

func (r *Ranges) observe(side pose.Side, angle float64) {
	switch side {
	case pose.Right:
		r.RightMax = math.Max(r.RightMax, angle)
		r.RightMin = math.Min(r.RightMin, angle)
		r.RightSeen = true
	case pose.Left:
		r.LeftMax = math.Max(r.LeftMax, angle)
		r.LeftMin = math.Min(r.LeftMin, angle)
		r.LeftSeen = true
	}
}

// sideBounds holds the per-side, possibly ROM-personalized bounds of one
// triple.
type sideBounds struct {
	right, left Bounds
}

// TrackerOptions configure a run of the state machine.
type TrackerOptions struct {
	// RangeTracking records right/left extremes of the primary angle
	// instead of merely counting; used by simplified calibration.
	RangeTracking bool

	// CoordinateScale adapts axis-distance and positional thresholds to the
	// deployed backend's unit. Zero selects 1.0.
	CoordinateScale float64

	// Resolve personalizes each triple's up range per side. Nil keeps the
	// catalog defaults.
	Resolve RangeResolver
}

// Tracker evaluates one exercise definition against a stream of skeleton
// frames. It owns all per-run mutable state; callers drive it one frame at
// a time from a single goroutine.
type Tracker struct {
	def    Definition
	calc   *angles.Calculator
	bounds []sideBounds
	scale  float64

	rangeTracking bool
	ranges        Ranges

	phase Phase
	reps  int
}

// NewTracker prepares a run of def. The initial phase is DOWN: the first
// counted repetition is the first full entry into the up ranges.
func NewTracker(def Definition, calc *angles.Calculator, opts TrackerOptions) *Tracker {
	scale := opts.CoordinateScale
	if scale <= 0 {
		scale = 1
	}
	t := &Tracker{
		def:           def,
		calc:          calc,
		scale:         scale,
		rangeTracking: opts.RangeTracking,
		ranges:        newRanges(),
		phase:         Down,
	}
	t.bounds = make([]sideBounds, len(def.Triples))
	for i, tr := range def.Triples {
		t.bounds[i] = sideBounds{
			right: resolveBounds(tr, pose.Right, opts.Resolve),
			left:  resolveBounds(tr, pose.Left, opts.Resolve),
		}
	}
	return t
}

func resolveBounds(tr Triple, side pose.Side, resolve RangeResolver) Bounds {
	b := tr.Bounds
	if resolve == nil {
		return b
	}
	key := tr.MeasurementKey(side)
	if key == "" {
		return b
	}
	b.UpLB, b.UpUB = resolve(key, b.UpLB, b.UpUB)
	return b
}

// Phase returns the current hysteresis state.
func (t *Tracker) Phase() Phase { return t.phase }

// Reps returns the repetitions counted so far this run.
func (t *Tracker) Reps() int { return t.reps }

// Ranges returns the extremes recorded in range-tracking mode.
func (t *Tracker) Ranges() Ranges { return t.ranges }

// Observe evaluates one frame. It returns true when the frame completed a
// repetition (a DOWN→UP transition). A missing joint or an undefined angle
// aborts evaluation for this frame only: no transition, no error.
func (t *Tracker) Observe(frame pose.Frame) bool {
	switch {
	case t.def.Wave:
		return t.observeWave(frame)
	case t.def.Unilateral:
		return t.observeUnilateral(frame)
	default:
		return t.observeBilateral(frame)
	}
}

// observeWave completes on the first frame with the right wrist raised
// above the right shoulder (nonzero wrist Y guards against a dropped
// keypoint reported as the origin).
func (t *Tracker) observeWave(frame pose.Frame) bool {
	if t.reps > 0 {
		return false
	}
	shoulder, ok := frame.LookupSided(pose.Right, "shoulder")
	if !ok {
		return false
	}
	wrist, ok := frame.LookupSided(pose.Right, "wrist")
	if !ok {
		return false
	}
	if shoulder.Y < wrist.Y && wrist.Y != 0 {
		t.reps = 1
		t.phase = Up
		return true
	}
	return false
}

// observeUnilateral gates transitions on the fixed side's primary angle plus
// two positional predicates: the wrist relative to the opposite shoulder on
// the horizontal axis, and the wrist relative to the nose vertically.
func (t *Tracker) observeUnilateral(frame pose.Frame) bool {
	side := t.def.Side
	tr := t.def.Triples[0]

	angle, ok := t.sideAngle(frame, tr, side, angleSlot(side, 1))
	if !ok {
		return false
	}
	if t.rangeTracking {
		t.ranges.observe(side, angle)
	}

	wrist, ok := frame.LookupSided(side, "wrist")
	if !ok {
		return false
	}
	oppShoulder, ok := frame.LookupSided(side.Opposite(), "shoulder")
	if !ok {
		return false
	}
	nose, ok := frame.Lookup(pose.Nose)
	if !ok {
		return false
	}

	near := units.ScaleThreshold(sidePredicateNear, t.scale)
	far := units.ScaleThreshold(sidePredicateFar, t.scale)
	b := t.bounds[0].right
	if side == pose.Left {
		b = t.bounds[0].left
	}

	var raised, lowered bool
	if side == pose.Right {
		raised = wrist.X > oppShoulder.X+near && nose.Y-near > wrist.Y
		lowered = wrist.X < oppShoulder.X-far
	} else {
		raised = oppShoulder.X-near > wrist.X && nose.Y-near > wrist.Y
		lowered = wrist.X > oppShoulder.X+far
	}

	switch t.phase {
	case Down:
		if b.InUp(angle) && raised {
			t.phase = Up
			t.reps++
			return true
		}
	case Up:
		if b.InDown(angle) && lowered {
			t.phase = Down
		}
	}
	return false
}

// observeBilateral evaluates every configured triple on both sides.
func (t *Tracker) observeBilateral(frame pose.Frame) bool {
	right := make([]float64, len(t.def.Triples))
	left := make([]float64, len(t.def.Triples))
	for i, tr := range t.def.Triples {
		r, ok := t.sideAngle(frame, tr, pose.Right, angleSlot(pose.Right, i+1))
		if !ok {
			return false
		}
		l, ok := t.sideAngle(frame, tr, pose.Left, angleSlot(pose.Left, i+1))
		if !ok {
			return false
		}
		right[i], left[i] = r, l
	}

	if t.rangeTracking {
		t.ranges.observe(pose.Right, right[0])
		t.ranges.observe(pose.Left, left[0])
	}

	if !t.axisOK(frame) {
		return false
	}

	switch t.phase {
	case Down:
		if t.inPhase(right, left, true) {
			t.phase = Up
			t.reps++
			return true
		}
	case Up:
		if t.inPhase(right, left, false) {
			t.phase = Down
		}
	}
	return false
}

// inPhase checks the transition condition for every triple. For the rising
// check (up=true) each right angle must sit in its up range; in
// left-right-differ mode the left side must simultaneously sit in the down
// range, otherwise it mirrors the right. The falling check swaps the roles.
func (t *Tracker) inPhase(right, left []float64, up bool) bool {
	for i := range t.def.Triples {
		rb, lb := t.bounds[i].right, t.bounds[i].left
		var ok bool
		switch {
		case up && t.def.LeftRightDiffer:
			ok = rb.InUp(right[i]) && lb.InDown(left[i])
		case up:
			ok = rb.InUp(right[i]) && lb.InUp(left[i])
		case t.def.LeftRightDiffer:
			ok = rb.InDown(right[i]) && lb.InUp(left[i])
		default:
			ok = rb.InDown(right[i]) && lb.InDown(left[i])
		}
		if !ok {
			return false
		}
	}
	return true
}

// axisOK applies the optional shoulder-separation guard.
func (t *Tracker) axisOK(frame pose.Frame) bool {
	if t.def.Axis == nil {
		return true
	}
	rs, ok := frame.LookupSided(pose.Right, "shoulder")
	if !ok {
		return false
	}
	ls, ok := frame.LookupSided(pose.Left, "shoulder")
	if !ok {
		return false
	}
	limit := units.ScaleThreshold(t.def.Axis.MaxShoulderSeparation, t.scale)
	return math.Abs(ls.X-rs.X) < limit
}

// sideAngle computes one triple's angle on the given side, honouring the
// Alternate flag for the C joint.
func (t *Tracker) sideAngle(frame pose.Frame, tr Triple, side pose.Side, slot string) (float64, bool) {
	cSide := side
	if tr.Alternate {
		cSide = side.Opposite()
	}
	a, ok := frame.LookupSided(side, tr.A)
	if !ok {
		return 0, false
	}
	vertex, ok := frame.LookupSided(side, tr.Vertex)
	if !ok {
		return 0, false
	}
	c, ok := frame.LookupSided(cSide, tr.C)
	if !ok {
		return 0, false
	}
	angle, err := t.calc.Compute(a, vertex, c, slot)
	if err != nil {
		return 0, false
	}
	return angle, true
}

func angleSlot(side pose.Side, n int) string {
	return fmt.Sprintf("%s_%d", side, n)
}
