package calibration

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/rehab-data/motion.report/internal/rom"
)

// asymmetryPairs are the left/right measurement pairs compared for the
// asymmetry score.
var asymmetryPairs = [][2]string{
	{"R_Shoulder_Hip_Elbow", "L_Shoulder_Hip_Elbow"},
	{"R_Elbow", "L_Elbow"},
	{"R_Wrist_Shoulder_Hip", "L_Wrist_Shoulder_Hip"},
}

// OverallScore grades the patient's reach against the clinical reference
// maxima: the mean, over all recorded measurements, of
// min(100, patientMax/normalMax*100). Measurements without a reference
// maximum are ignored. Returns 0 when nothing scored.
func OverallScore(entries map[string]rom.Range) float64 {
	var scores []float64
	for name, rg := range entries {
		normalMax, ok := normalMaxByName[name]
		if !ok || normalMax <= 0 {
			continue
		}
		scores = append(scores, math.Min(100, rg.Max/normalMax*100))
	}
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}

// AsymmetryScore is the mean absolute right/left difference of the maxima
// over the comparison pairs, in degrees. Pairs where either side is missing
// or non-positive are skipped. Returns 0 when no pair qualifies.
func AsymmetryScore(entries map[string]rom.Range) float64 {
	var diffs []float64
	for _, pair := range asymmetryPairs {
		r, rok := entries[pair[0]]
		l, lok := entries[pair[1]]
		if !rok || !lok || r.Max <= 0 || l.Max <= 0 {
			continue
		}
		diffs = append(diffs, math.Abs(r.Max-l.Max))
	}
	if len(diffs) == 0 {
		return 0
	}
	return stat.Mean(diffs, nil)
}
