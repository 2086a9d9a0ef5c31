package exercise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehab-data/motion.report/internal/pose"
)

func TestLookup(t *testing.T) {
	t.Parallel()
	def, err := Lookup("ball_bend_elbows")
	require.NoError(t, err)
	assert.Equal(t, "ball_bend_elbows", def.ID)
	require.Len(t, def.Triples, 2)
	assert.Equal(t, Bounds{150, 180, 10, 60}, def.Triples[0].Bounds)

	_, err = Lookup("not_an_exercise")
	assert.Error(t, err)
}

func TestIDsStableAndComplete(t *testing.T) {
	t.Parallel()
	ids := IDs()
	assert.Len(t, ids, 24) // 23 exercises plus the wave check
	assert.Equal(t, ids, IDs(), "order must be stable")

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
		_, err := Lookup(id)
		assert.NoError(t, err)
	}
	assert.True(t, seen[WaveCheck])
}

func TestCatalogInvariants(t *testing.T) {
	t.Parallel()
	for _, id := range IDs() {
		def, err := Lookup(id)
		require.NoError(t, err)

		if def.Wave {
			assert.Empty(t, def.Triples, id)
			continue
		}
		require.NotEmpty(t, def.Triples, id)
		for _, tr := range def.Triples {
			assert.Less(t, tr.Bounds.UpLB, tr.Bounds.UpUB, id)
			assert.Less(t, tr.Bounds.DownLB, tr.Bounds.DownUB, id)
		}
		if def.Unilateral {
			assert.Len(t, def.Triples, 1, id)
		}
		if def.Axis != nil {
			assert.Greater(t, def.Axis.MaxShoulderSeparation, 0.0, id)
		}
	}
}

func TestBoundsStrictlyExclusive(t *testing.T) {
	t.Parallel()
	b := Bounds{UpLB: 150, UpUB: 180, DownLB: 10, DownUB: 60}

	assert.False(t, b.InUp(150))
	assert.True(t, b.InUp(150.01))
	assert.True(t, b.InUp(179.99))
	assert.False(t, b.InUp(180))

	assert.False(t, b.InDown(10))
	assert.True(t, b.InDown(10.01))
	assert.True(t, b.InDown(59.99))
	assert.False(t, b.InDown(60))
}

func TestMeasurementKey(t *testing.T) {
	t.Parallel()
	tr := Triple{A: "shoulder", Vertex: "elbow", C: "wrist"}
	assert.Equal(t, "R_Elbow", tr.MeasurementKey(pose.Right))
	assert.Equal(t, "L_Elbow", tr.MeasurementKey(pose.Left))

	diag := Triple{A: "hip", Vertex: "shoulder", C: "elbow"}
	assert.Equal(t, "R_Shoulder_Hip_Elbow", diag.MeasurementKey(pose.Right))

	unknown := Triple{A: "nose", Vertex: "nose", C: "nose"}
	assert.Equal(t, "", unknown.MeasurementKey(pose.Right))
}
