package rom

// DefaultSafetyFactor keeps adapted targets inside 90% of the patient's
// measured span, leaving headroom at the painful end of the range.
const DefaultSafetyFactor = 0.90

// Resolver maps a catalog default bound pair and a patient's record to the
// personalized pair used at run time.
type Resolver struct {
	Safety float64
}

// NewResolver builds a Resolver; out-of-range safety factors fall back to
// the default.
func NewResolver(safety float64) Resolver {
	if safety <= 0 || safety > 1 {
		safety = DefaultSafetyFactor
	}
	return Resolver{Safety: safety}
}

// Resolve personalizes (defaultMin, defaultMax) against rec.
//
// No record, or no entry for key: the defaults pass through unchanged. A
// patient who meets or exceeds the clinical default max also keeps the
// defaults — adaptation only ever narrows the target for a more limited
// patient, never widens it.
func (r Resolver) Resolve(key string, defaultMin, defaultMax float64, rec *Record) (float64, float64) {
	rg, ok := rec.Lookup(key)
	if !ok {
		return defaultMin, defaultMax
	}
	if rg.Max >= defaultMax {
		return defaultMin, defaultMax
	}
	safeMax := rg.Min + r.Safety*rg.Span()
	return rg.Min, safeMax
}
