package rom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveNoRecord(t *testing.T) {
	t.Parallel()
	r := NewResolver(0.9)

	lb, ub := r.Resolve("R_Elbow", 150, 180, nil)
	assert.Equal(t, 150.0, lb)
	assert.Equal(t, 180.0, ub)
}

func TestResolveMissingKey(t *testing.T) {
	t.Parallel()
	r := NewResolver(0.9)
	rec := &Record{Entries: map[string]Range{"L_Elbow": {Max: 120, Min: 20}}}

	lb, ub := r.Resolve("R_Elbow", 150, 180, rec)
	assert.Equal(t, 150.0, lb)
	assert.Equal(t, 180.0, ub)
}

func TestResolveLimitedPatientNarrows(t *testing.T) {
	t.Parallel()
	r := NewResolver(0.9)
	rec := &Record{Entries: map[string]Range{"R_Elbow": {Max: 120, Min: 20}}}

	lb, ub := r.Resolve("R_Elbow", 150, 180, rec)
	assert.Equal(t, 20.0, lb)
	assert.InDelta(t, 20+0.9*100, ub, 1e-9) // 110
	assert.Less(t, ub, 120.0)
}

func TestResolveCapablePatientKeepsDefaults(t *testing.T) {
	t.Parallel()
	r := NewResolver(0.9)

	for _, max := range []float64{180, 185} {
		rec := &Record{Entries: map[string]Range{"R_Elbow": {Max: max, Min: 5}}}
		lb, ub := r.Resolve("R_Elbow", 150, 180, rec)
		assert.Equal(t, 150.0, lb)
		assert.Equal(t, 180.0, ub)
	}
}

func TestNewResolverClampsSafety(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultSafetyFactor, NewResolver(0).Safety)
	assert.Equal(t, DefaultSafetyFactor, NewResolver(-1).Safety)
	assert.Equal(t, DefaultSafetyFactor, NewResolver(1.5).Safety)
	assert.Equal(t, 0.8, NewResolver(0.8).Safety)
}
