// Package angles computes smoothed 3D joint angles from skeleton frames.
package angles

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/rehab-data/motion.report/internal/pose"
	"github.com/rehab-data/motion.report/internal/units"
)

// ErrUndefinedAngle reports a geometrically degenerate triple: an endpoint
// coincides with the vertex, or a coordinate is not finite. Callers treat it
// as "no result this tick", never as a hard failure.
var ErrUndefinedAngle = errors.New("angles: undefined angle")

const (
	// DefaultMaxJump is the largest per-frame change, in degrees, an angle
	// slot may report. Raw sensor jitter beyond this is clamped.
	DefaultMaxJump = 10.0

	// straightTolerance and antiStallOffset keep a fully extended joint from
	// sticking exactly at 180°, which is a bound in several up/down ranges.
	// The 0.1° shift is intentional and tuned against the threshold tables;
	// do not remove it.
	straightTolerance = 1e-3
	antiStallOffset   = 0.1
)

// Calculator computes the angle at a vertex joint and smooths it per named
// slot. A slot holds the previous reported angle for one logical angle (e.g.
// "R_1") so jump limiting applies across consecutive frames of a session.
//
// Calculator is not safe for concurrent use; the tracking loop is its single
// owner.
type Calculator struct {
	maxJump  float64
	previous map[string]float64
}

// NewCalculator returns a Calculator with the given per-frame jump limit.
// A non-positive limit selects DefaultMaxJump.
func NewCalculator(maxJump float64) *Calculator {
	if maxJump <= 0 {
		maxJump = DefaultMaxJump
	}
	return &Calculator{
		maxJump:  maxJump,
		previous: make(map[string]float64),
	}
}

// Reset clears all smoothing slots. Called when tracking pauses so that the
// first frame after resume is not clamped against a stale position.
func (c *Calculator) Reset() {
	c.previous = make(map[string]float64)
}

// Slots reports how many smoothing slots currently hold a previous value.
func (c *Calculator) Slots() int {
	return len(c.previous)
}

// Compute returns the angle A-vertex-C in degrees, in [0,180], rounded to
// two decimals. The slot's previous value, when present, bounds the change
// to the configured max jump; the (possibly clamped) result becomes the new
// previous value for the slot.
func (c *Calculator) Compute(a, vertex, end pose.Joint, slot string) (float64, error) {
	ba := r3.Vec{X: a.X - vertex.X, Y: a.Y - vertex.Y, Z: a.Z - vertex.Z}
	bc := r3.Vec{X: end.X - vertex.X, Y: end.Y - vertex.Y, Z: end.Z - vertex.Z}

	normBA := r3.Norm(ba)
	normBC := r3.Norm(bc)
	if normBA == 0 || normBC == 0 || !finite(normBA) || !finite(normBC) {
		return 0, ErrUndefinedAngle
	}

	cosine := units.ClampCosine(r3.Dot(ba, bc) / (normBA * normBC))
	if !finite(cosine) {
		return 0, ErrUndefinedAngle
	}

	angle := units.ToDegrees(math.Acos(cosine))
	if math.Abs(cosine-(-1)) <= straightTolerance {
		angle -= antiStallOffset
	}

	if prev, ok := c.previous[slot]; ok {
		angle = limitJump(angle, prev, c.maxJump)
	}
	c.previous[slot] = angle

	return units.Round2(angle), nil
}

// limitJump clamps the change from prev to angle to at most maxJump degrees,
// preserving the direction of change.
func limitJump(angle, prev, maxJump float64) float64 {
	if math.Abs(angle-prev) <= maxJump {
		return angle
	}
	if angle > prev {
		return prev + maxJump
	}
	return prev - maxJump
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
