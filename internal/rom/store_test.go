package rom

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "rom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadCalibration(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	rec := &Record{
		PatientID: "p1",
		Taken:     time.Now().UTC(),
		Entries: map[string]Range{
			"R_Elbow": {Max: 140, Min: 10},
			"L_Elbow": {Max: 120, Min: 15},
		},
		OverallScore:   82.5,
		AsymmetryScore: 20,
		Notes:          "first visit",
	}
	require.NoError(t, s.SaveCalibration(ctx, rec))

	got, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "p1", got.PatientID)
	if diff := cmp.Diff(rec.Entries, got.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 82.5, got.OverallScore)
	assert.Equal(t, "first visit", got.Notes)
}

func TestSaveCalibrationUpsertReplaces(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	first := &Record{
		PatientID: "p1",
		Entries:   map[string]Range{"R_Elbow": {Max: 100, Min: 20}, "L_Elbow": {Max: 90, Min: 20}},
	}
	require.NoError(t, s.SaveCalibration(ctx, first))

	second := &Record{
		PatientID: "p1",
		Entries:   map[string]Range{"R_Elbow": {Max: 130, Min: 10}},
	}
	require.NoError(t, s.SaveCalibration(ctx, second))

	got, err := s.LoadCalibration(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Entries, 1)
	assert.Equal(t, Range{Max: 130, Min: 10}, got.Entries["R_Elbow"])
}

func TestSaveCalibrationSwapCorrects(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	rec := &Record{
		PatientID: "p1",
		Entries:   map[string]Range{"R_Elbow": {Max: 10, Min: 140}},
	}
	require.NoError(t, s.SaveCalibration(ctx, rec))

	got, err := s.LoadCalibration(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, Range{Max: 140, Min: 10}, got.Entries["R_Elbow"])
}

func TestLoadUnknownPatient(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	got, err := s.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadFallsBackToLatestSession(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	old := &Session{
		PatientID: "p1",
		Taken:     time.Now().Add(-time.Hour).UTC(),
		Exercises: map[string]SessionRanges{
			"ball_bend_elbows": {RightMax: 90, RightMin: 30, LeftMax: 85, LeftMin: 25},
		},
	}
	require.NoError(t, s.AppendSession(ctx, old))

	latest := &Session{
		PatientID: "p1",
		Taken:     time.Now().UTC(),
		Exercises: map[string]SessionRanges{
			// primary triple is shoulder/elbow/wrist -> Elbow
			"ball_bend_elbows": {RightMax: 120, RightMin: 20, LeftMax: 110, LeftMin: 22},
		},
		OverallScore: 70,
	}
	require.NoError(t, s.AppendSession(ctx, latest))

	got, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, Range{Max: 120, Min: 20}, got.Entries["R_Elbow"])
	assert.Equal(t, Range{Max: 110, Min: 22}, got.Entries["L_Elbow"])
	assert.Equal(t, 70.0, got.OverallScore)
}

func TestLoadPrefersFullCalibration(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendSession(ctx, &Session{
		PatientID: "p1",
		Taken:     time.Now().UTC(),
		Exercises: map[string]SessionRanges{
			"ball_bend_elbows": {RightMax: 120, RightMin: 20, LeftMax: 110, LeftMin: 22},
		},
	}))
	require.NoError(t, s.SaveCalibration(ctx, &Record{
		PatientID: "p1",
		Entries:   map[string]Range{"R_Elbow": {Max: 150, Min: 5}},
	}))

	got, err := s.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, Range{Max: 150, Min: 5}, got.Entries["R_Elbow"])
	_, ok := got.Entries["L_Elbow"]
	assert.False(t, ok, "session data must not leak into a full calibration load")
}

func TestSessionRecordSkipsUnsampledSides(t *testing.T) {
	t.Parallel()
	rec := sessionRecord(&Session{
		PatientID: "p1",
		Exercises: map[string]SessionRanges{
			"ball_bend_elbows": {RightMax: 120, RightMin: 20}, // left never sampled
		},
	})
	assert.Contains(t, rec.Entries, "R_Elbow")
	assert.NotContains(t, rec.Entries, "L_Elbow")
}

func TestSessionScoresOrdered(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, score := range []float64{50, 60, 70} {
		require.NoError(t, s.AppendSession(ctx, &Session{
			PatientID:    "p1",
			Taken:        base.Add(time.Duration(i) * time.Minute),
			OverallScore: score,
		}))
	}

	scores, err := s.SessionScores(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, 50.0, scores[0].OverallScore)
	assert.Equal(t, 70.0, scores[2].OverallScore)
}

func TestPatientRoster(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddPatient(ctx, Patient{ID: "p2", FirstName: "Noa"}))
	require.NoError(t, s.AddPatient(ctx, Patient{ID: "p1", FirstName: "Avi", LastName: "Cohen"}))
	assert.Error(t, s.AddPatient(ctx, Patient{ID: "p1"}), "duplicate id must fail")

	got, err := s.Patients(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "Cohen", got[0].LastName)

	require.NoError(t, s.DeletePatient(ctx, "p2"))
	assert.Error(t, s.DeletePatient(ctx, "p2"))

	got, err = s.Patients(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
