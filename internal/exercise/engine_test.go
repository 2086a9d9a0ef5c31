package exercise

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rehab-data/motion.report/internal/angles"
	"github.com/rehab-data/motion.report/internal/pose"
)

// bendUp and bendDown pose both arms inside ball_bend_elbows' up and down
// ranges respectively: elbows ~170/~30 degrees with the upper arms held
// ~16 degrees from the torso.
func bendFrame(up bool) pose.Frame {
	f := make(pose.Frame)
	add := func(name string, x, y float64) {
		f[name] = pose.Joint{Name: name, X: x, Y: y, Visible: true}
	}
	wristX, wristY := 117.4, -198.5 // elbow ~170
	if !up {
		wristX, wristY = 150.0, -13.4 // elbow ~30
	}
	add("R_shoulder", 100, 0)
	add("R_elbow", 100, -100)
	add("R_wrist", wristX, wristY)
	add("R_hip", 150, -173)
	add("L_shoulder", -100, 0)
	add("L_elbow", -100, -100)
	add("L_wrist", -wristX, wristY)
	add("L_hip", -150, -173)
	return f
}

func startEngine(t *testing.T, source pose.Source) (*Engine, <-chan Event, context.CancelFunc) {
	t.Helper()
	engine := NewEngine(source, angles.NewCalculator(180), nil, IntervalScheduler{}, EngineOptions{})
	events, cancelSub := engine.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = engine.Run(ctx) }()

	return engine, events, func() {
		cancel()
		cancelSub()
	}
}

func waitFor(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestEngineCompletesTarget(t *testing.T) {
	t.Parallel()
	source := &pose.ScriptedSource{Script: []pose.Frame{bendFrame(true), bendFrame(false)}, Loop: true}
	engine, events, stop := startEngine(t, source)
	defer stop()

	require.NoError(t, engine.StartExercise("ball_bend_elbows", 3, ""))

	ev := waitFor(t, events, EventFinished)
	assert.Equal(t, 3, ev.Rep)
	assert.True(t, ev.Success)

	assert.Equal(t, 3, engine.Tally()["ball_bend_elbows"])
	st := engine.Status()
	assert.False(t, st.Active)
	assert.True(t, st.Success)
}

func TestEngineRejectsUnknownExercise(t *testing.T) {
	t.Parallel()
	engine := NewEngine(&pose.ScriptedSource{}, angles.NewCalculator(0), nil, IntervalScheduler{}, EngineOptions{})
	assert.Error(t, engine.StartExercise("not_real", 5, ""))
}

func TestEngineStopPreservesPartialCount(t *testing.T) {
	t.Parallel()
	// Only one up frame, then silence: exactly one rep can ever complete.
	source := &pose.ScriptedSource{Script: []pose.Frame{bendFrame(true)}}
	engine, events, stop := startEngine(t, source)
	defer stop()

	require.NoError(t, engine.StartExercise("ball_bend_elbows", 5, ""))
	waitFor(t, events, EventRep)

	engine.Stop()
	ev := waitFor(t, events, EventInterrupted)
	assert.Equal(t, 1, ev.Rep)
	assert.False(t, ev.Success)
	assert.Equal(t, 1, engine.Tally()["ball_bend_elbows"])
}

func TestEngineSwitchInterruptsActiveRun(t *testing.T) {
	t.Parallel()
	source := &pose.ScriptedSource{Script: []pose.Frame{bendFrame(true)}, Loop: true}
	engine, events, stop := startEngine(t, source)
	defer stop()

	require.NoError(t, engine.StartExercise("ball_bend_elbows", 50, ""))
	waitFor(t, events, EventStarted)
	waitFor(t, events, EventRep)

	require.NoError(t, engine.StartExercise("stick_bend_elbows", 50, ""))
	waitFor(t, events, EventInterrupted)
	ev := waitFor(t, events, EventStarted)
	assert.Equal(t, "stick_bend_elbows", ev.Exercise)
}

func TestEnginePauseClearsSmoothingOnce(t *testing.T) {
	t.Parallel()
	calc := angles.NewCalculator(180)
	source := &pose.ScriptedSource{Script: []pose.Frame{bendFrame(true)}}
	engine := NewEngine(source, calc, nil, IntervalScheduler{}, EngineOptions{})
	events, cancelSub := engine.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = engine.Run(ctx)
	}()

	require.NoError(t, engine.StartExercise("ball_bend_elbows", 5, ""))
	waitFor(t, events, EventRep)
	require.NotZero(t, calc.Slots())

	engine.Pause()
	waitFor(t, events, EventPaused)
	assert.True(t, engine.Status().Paused)

	// Give the loop time to observe the pause, then stop it so the slot
	// count can be read without racing the loop.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	assert.Zero(t, calc.Slots(), "pause clears the smoothing slots")
}

func TestEnginePauseResumeIdempotent(t *testing.T) {
	t.Parallel()
	engine := NewEngine(&pose.ScriptedSource{}, angles.NewCalculator(0), nil, IntervalScheduler{}, EngineOptions{})
	events, cancelSub := engine.Subscribe()
	defer cancelSub()

	engine.Pause()
	engine.Pause()
	engine.Resume()
	engine.Resume()

	assert.Equal(t, EventPaused, (<-events).Kind)
	assert.Equal(t, EventResumed, (<-events).Kind)
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event %s", ev.Kind)
	default:
	}
}

func TestEngineDefaultTarget(t *testing.T) {
	t.Parallel()
	source := &pose.ScriptedSource{Script: []pose.Frame{bendFrame(true), bendFrame(false)}, Loop: true}
	engine, events, stop := startEngine(t, source)
	defer stop()

	require.NoError(t, engine.StartExercise("ball_bend_elbows", 0, ""))
	ev := waitFor(t, events, EventStarted)
	assert.Equal(t, 5, ev.Target)

	ev = waitFor(t, events, EventFinished)
	assert.Equal(t, 5, ev.Rep)
}

func TestEngineReserveExcludesRuns(t *testing.T) {
	t.Parallel()
	source := &pose.ScriptedSource{Script: []pose.Frame{bendFrame(true)}, Loop: true}
	engine, events, stop := startEngine(t, source)
	defer stop()

	release, err := engine.Reserve()
	require.NoError(t, err)

	// While the stream is reserved, no run may start and no second
	// reservation may be granted.
	assert.ErrorIs(t, engine.StartExercise("ball_bend_elbows", 1, ""), ErrStreamBusy)
	_, err = engine.Reserve()
	assert.ErrorIs(t, err, ErrStreamBusy)

	release()
	require.NoError(t, engine.StartExercise("ball_bend_elbows", 5, ""))
	waitFor(t, events, EventStarted)

	// The reverse direction: an active (or queued) run blocks reservation.
	_, err = engine.Reserve()
	assert.ErrorIs(t, err, ErrStreamBusy)

	engine.Stop()
	waitFor(t, events, EventInterrupted)
	release, err = engine.Reserve()
	require.NoError(t, err)
	release()
}

func TestEngineResolverAppliedPerPatient(t *testing.T) {
	t.Parallel()
	// The resolver narrows the elbow up range to (60,110): neither the
	// scripted up pose (~170) nor the down pose (~30) falls inside it, so
	// no rep may complete.
	resolver := func(patientID string) RangeResolver {
		if patientID != "limited" {
			return nil
		}
		return func(key string, lb, ub float64) (float64, float64) {
			if key == "R_Elbow" || key == "L_Elbow" {
				return 60, 110
			}
			return lb, ub
		}
	}

	source := &pose.ScriptedSource{Script: []pose.Frame{bendFrame(true), bendFrame(false)}, Loop: true}
	engine := NewEngine(source, angles.NewCalculator(180), nil, IntervalScheduler{}, EngineOptions{
		ResolverFor: resolver,
	})
	events, cancelSub := engine.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = engine.Run(ctx) }()

	require.NoError(t, engine.StartExercise("ball_bend_elbows", 1, "limited"))
	waitFor(t, events, EventStarted)

	select {
	case ev := <-events:
		if ev.Kind == EventRep || ev.Kind == EventFinished {
			t.Fatalf("rep completed despite narrowed range: %+v", ev)
		}
	case <-time.After(200 * time.Millisecond):
	}

	engine.Stop()
	ev := waitFor(t, events, EventInterrupted)
	assert.Equal(t, 0, ev.Rep)
}
