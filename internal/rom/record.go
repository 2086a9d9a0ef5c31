// Package rom holds per-patient range-of-motion records: their persistence,
// and the adaptive resolution of exercise bounds against them.
package rom

import "time"

// Range is one calibrated measurement: the angle extremes a patient reached,
// in degrees. Max >= Min is enforced before persisting (swap-corrected).
type Range struct {
	Max float64 `json:"max"`
	Min float64 `json:"min"`
}

// Span returns the degrees covered by the range.
func (r Range) Span() float64 { return r.Max - r.Min }

// Record is a patient's calibrated ROM. Entries are keyed by measurement
// name ("R_Elbow", "L_Shoulder_Hip_Wrist", ...). Identity is the patient id;
// a newer calibration replaces the old.
type Record struct {
	PatientID      string           `json:"patient_id"`
	Taken          time.Time        `json:"taken"`
	Entries        map[string]Range `json:"entries"`
	OverallScore   float64          `json:"overall_score"`
	AsymmetryScore float64          `json:"asymmetry_score"`
	Notes          string           `json:"notes,omitempty"`
}

// Lookup returns the named measurement range.
func (r *Record) Lookup(key string) (Range, bool) {
	if r == nil {
		return Range{}, false
	}
	rg, ok := r.Entries[key]
	return rg, ok
}

// SessionRanges are the per-side extremes recorded for one exercise during
// a simplified calibration session.
type SessionRanges struct {
	RightMax float64 `json:"right_max"`
	RightMin float64 `json:"right_min"`
	LeftMax  float64 `json:"left_max"`
	LeftMin  float64 `json:"left_min"`
}

// Session is one simplified calibration run. Sessions accumulate per
// patient; loads use the most recent one.
type Session struct {
	SessionID      string                   `json:"session_id"`
	PatientID      string                   `json:"patient_id"`
	Taken          time.Time                `json:"taken"`
	Exercises      map[string]SessionRanges `json:"exercises"`
	OverallScore   float64                  `json:"overall_score"`
	AsymmetryScore float64                  `json:"asymmetry_score"`
}

// Patient is one roster entry.
type Patient struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Created   time.Time `json:"created"`
}
