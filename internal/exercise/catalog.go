// Package exercise defines the exercise catalog and the hysteresis state
// machine that counts repetitions from streamed joint angles.
package exercise

import (
	"fmt"
	"sort"

	"github.com/rehab-data/motion.report/internal/pose"
)

// Bounds is one angle-pair's threshold set, in degrees. The up range gates
// the DOWN→UP transition, the down range the return. All comparisons against
// these bounds are strictly exclusive at both ends.
type Bounds struct {
	UpLB, UpUB     float64
	DownLB, DownUB float64
}

// InUp reports whether v lies strictly inside the up range.
func (b Bounds) InUp(v float64) bool { return b.UpLB < v && v < b.UpUB }

// InDown reports whether v lies strictly inside the down range.
func (b Bounds) InDown(v float64) bool { return b.DownLB < v && v < b.DownUB }

// Triple names one tracked angle: the angle at Vertex between A and C. The
// names are unsided; the tracker evaluates the triple once per body side.
// When Alternate is set the C joint is taken from the opposite side, which
// expresses crossing-arm movements (e.g. wrist to the other shoulder).
type Triple struct {
	A, Vertex, C string
	Bounds       Bounds
	Alternate    bool
}

// AxisCheck is a supplementary non-angle predicate: the horizontal distance
// between the two shoulders must stay below the threshold. It guards against
// counting reps produced by rotating the torso instead of moving the arms.
// The threshold is in the reference backend's coordinate unit and is scaled
// by the deployment's coordinate scale.
type AxisCheck struct {
	MaxShoulderSeparation float64
}

// Definition is one catalog entry. The bound numbers and flags are
// clinically validated configuration: they are consumed by the generic
// tracker and must never be re-encoded as per-exercise logic.
type Definition struct {
	ID      string
	Triples []Triple

	// LeftRightDiffer marks alternating-arm exercises: a transition needs
	// the right side in one phase's range while the left is simultaneously
	// in the opposite phase's range.
	LeftRightDiffer bool

	// Axis, when non-nil, must hold for any transition.
	Axis *AxisCheck

	// Unilateral exercises track a single fixed side with positional
	// predicates instead of bilateral angle pairs. Side is only meaningful
	// when Unilateral is set.
	Unilateral bool
	Side       pose.Side

	// Wave marks the readiness gesture check, which completes on a single
	// raised-wrist observation rather than an angle cycle.
	Wave bool
}

// WaveCheck is the readiness gesture: tracking completes once the right
// wrist rises above the right shoulder.
const WaveCheck = "hello_waving"

var catalog = map[string]Definition{
	WaveCheck: {ID: WaveCheck, Wave: true},

	// Ball exercises
	"ball_bend_elbows": {
		ID: "ball_bend_elbows",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{150, 180, 10, 60}},
			{A: "elbow", Vertex: "shoulder", C: "hip", Bounds: Bounds{0, 60, 0, 60}},
		},
	},
	"ball_raise_arms_above_head": {
		ID: "ball_raise_arms_above_head",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "elbow", Bounds: Bounds{125, 170, 0, 50}},
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{120, 180, 135, 180}},
		},
	},
	"ball_switch": {
		ID: "ball_switch",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{100, 180, 140, 180}},
			{A: "wrist", Vertex: "hip", C: "hip", Bounds: Bounds{95, 140, 35, 70}, Alternate: true},
		},
		LeftRightDiffer: true,
	},
	"ball_open_arms_and_forward": {
		ID: "ball_open_arms_and_forward",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "elbow", Bounds: Bounds{40, 120, 80, 120}},
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{0, 180, 140, 180}},
			{A: "elbow", Vertex: "shoulder", C: "shoulder", Bounds: Bounds{60, 135, 150, 180}, Alternate: true},
		},
	},
	"ball_open_arms_above_head": {
		ID: "ball_open_arms_above_head",
		Triples: []Triple{
			{A: "elbow", Vertex: "shoulder", C: "hip", Bounds: Bounds{145, 180, 80, 110}},
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{130, 180, 130, 180}},
		},
	},

	// Band exercises
	"band_open_arms": {
		ID: "band_open_arms",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "wrist", Bounds: Bounds{85, 120, 70, 120}},
			{A: "wrist", Vertex: "shoulder", C: "shoulder", Bounds: Bounds{135, 170, 70, 110}, Alternate: true},
		},
	},
	"band_open_arms_and_up": {
		ID: "band_open_arms_and_up",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "wrist", Bounds: Bounds{125, 170, 20, 100}},
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{130, 180, 0, 180}},
			{A: "elbow", Vertex: "shoulder", C: "shoulder", Bounds: Bounds{110, 160, 70, 105}, Alternate: true},
		},
	},
	"band_up_and_lean": {
		ID: "band_up_and_lean",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{125, 180, 125, 180}},
			{A: "wrist", Vertex: "hip", C: "hip", Bounds: Bounds{120, 170, 50, 100}, Alternate: true},
		},
		LeftRightDiffer: true,
	},
	"band_straighten_left_arm_elbows_bend_to_sides": {
		ID: "band_straighten_left_arm_elbows_bend_to_sides",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{135, 180, 10, 40}},
			{A: "elbow", Vertex: "shoulder", C: "hip", Bounds: Bounds{0, 35, 0, 30}},
		},
	},
	"band_straighten_right_arm_elbows_bend_to_sides": {
		ID: "band_straighten_right_arm_elbows_bend_to_sides",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{135, 180, 10, 40}},
			{A: "elbow", Vertex: "shoulder", C: "hip", Bounds: Bounds{0, 35, 0, 30}},
		},
	},

	// Stick exercises
	"stick_bend_elbows": {
		ID: "stick_bend_elbows",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{135, 180, 10, 40}},
			{A: "elbow", Vertex: "shoulder", C: "hip", Bounds: Bounds{0, 35, 0, 30}},
		},
	},
	"stick_bend_elbows_and_up": {
		ID: "stick_bend_elbows_and_up",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "elbow", Bounds: Bounds{110, 170, 10, 50}},
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{125, 180, 30, 85}},
		},
	},
	"stick_raise_arms_above_head": {
		ID: "stick_raise_arms_above_head",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "elbow", Bounds: Bounds{115, 180, 10, 55}},
			{A: "wrist", Vertex: "elbow", C: "shoulder", Bounds: Bounds{130, 180, 130, 180}},
		},
	},
	"stick_switch": {
		ID: "stick_switch",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{0, 180, 140, 180}},
			{A: "wrist", Vertex: "hip", C: "hip", Bounds: Bounds{95, 140, 35, 70}, Alternate: true},
		},
		LeftRightDiffer: true,
		Axis:            &AxisCheck{MaxShoulderSeparation: 200},
	},
	"stick_up_and_lean": {
		ID: "stick_up_and_lean",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{125, 180, 125, 180}},
			{A: "wrist", Vertex: "hip", C: "hip", Bounds: Bounds{120, 170, 50, 100}, Alternate: true},
		},
		LeftRightDiffer: true,
	},

	// Weights exercises
	"weights_open_arms_and_forward": {
		ID: "weights_open_arms_and_forward",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "elbow", Bounds: Bounds{40, 120, 80, 120}},
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{0, 180, 140, 180}},
		},
	},
	"weights_abduction": {
		ID: "weights_abduction",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "elbow", Bounds: Bounds{80, 120, 0, 40}},
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{130, 180, 130, 180}},
		},
	},

	// No-tool exercises
	"notool_hands_behind_and_lean": {
		ID: "notool_hands_behind_and_lean",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{10, 70, 10, 70}},
			{A: "elbow", Vertex: "shoulder", C: "hip", Bounds: Bounds{30, 95, 125, 170}},
		},
		LeftRightDiffer: true,
	},
	"notool_right_hand_up_and_bend": {
		ID: "notool_right_hand_up_and_bend",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "wrist", Bounds: Bounds{120, 160, 0, 180}},
		},
		Unilateral: true,
		Side:       pose.Right,
	},
	"notool_left_hand_up_and_bend": {
		ID: "notool_left_hand_up_and_bend",
		Triples: []Triple{
			{A: "hip", Vertex: "shoulder", C: "wrist", Bounds: Bounds{120, 160, 0, 180}},
		},
		Unilateral: true,
		Side:       pose.Left,
	},
	"notool_raising_hands_diagonally": {
		ID: "notool_raising_hands_diagonally",
		Triples: []Triple{
			{A: "wrist", Vertex: "shoulder", C: "hip", Bounds: Bounds{0, 100, 105, 135}},
			{A: "elbow", Vertex: "shoulder", C: "shoulder", Bounds: Bounds{0, 180, 40, 75}, Alternate: true},
		},
		LeftRightDiffer: true,
		Axis:            &AxisCheck{MaxShoulderSeparation: 200},
	},
	"notool_right_bend_left_up_from_side": {
		ID: "notool_right_bend_left_up_from_side",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{120, 160, 20, 80}},
			{A: "hip", Vertex: "shoulder", C: "elbow", Bounds: Bounds{80, 120, 0, 40}},
		},
	},
	"notool_left_bend_right_up_from_side": {
		ID: "notool_left_bend_right_up_from_side",
		Triples: []Triple{
			{A: "shoulder", Vertex: "elbow", C: "wrist", Bounds: Bounds{120, 160, 20, 80}},
			{A: "hip", Vertex: "shoulder", C: "elbow", Bounds: Bounds{80, 120, 0, 40}},
		},
	},
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Definition, error) {
	def, ok := catalog[id]
	if !ok {
		return Definition{}, fmt.Errorf("exercise: unknown exercise %q", id)
	}
	return def, nil
}

// IDs returns all catalog entries in stable order.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// measurementKeys maps an unsided joint triple to the ROM measurement name
// recorded during full calibration, so catalog bounds can be personalized
// from the patient's record. Keys are "A/Vertex/C".
var measurementKeys = map[string]string{
	"hip/shoulder/elbow":      "Shoulder_Hip_Elbow",
	"hip/shoulder/wrist":      "Shoulder_Hip_Wrist",
	"shoulder/elbow/wrist":    "Elbow",
	"elbow/shoulder/hip":      "Elbow_Shoulder_Hip",
	"wrist/shoulder/shoulder": "Wrist_Shoulder_Shoulder",
	"wrist/hip/hip":           "Wrist_Hip_Hip",
	"wrist/elbow/shoulder":    "Wrist_Elbow_Shoulder",
	"wrist/shoulder/hip":      "Wrist_Shoulder_Hip",
}

// MeasurementKey returns the ROM record key for this triple on the given
// side, or "" when no calibration measurement covers the triple.
func (t Triple) MeasurementKey(side pose.Side) string {
	base, ok := measurementKeys[t.A+"/"+t.Vertex+"/"+t.C]
	if !ok {
		return ""
	}
	return side.String() + "_" + base
}
