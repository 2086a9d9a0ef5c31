package exercise

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rehab-data/motion.report/internal/announce"
	"github.com/rehab-data/motion.report/internal/angles"
	"github.com/rehab-data/motion.report/internal/monitoring"
	"github.com/rehab-data/motion.report/internal/pose"
)

// EventKind classifies engine events published to subscribers.
type EventKind string

const (
	EventStarted     EventKind = "started"
	EventRep         EventKind = "rep"
	EventFinished    EventKind = "finished"
	EventInterrupted EventKind = "interrupted"
	EventPaused      EventKind = "paused"
	EventResumed     EventKind = "resumed"
)

// Event is one observable engine state change.
type Event struct {
	Kind     EventKind `json:"kind"`
	Exercise string    `json:"exercise,omitempty"`
	Rep      int       `json:"rep,omitempty"`
	Target   int       `json:"target,omitempty"`
	Success  bool      `json:"success,omitempty"`
	Phase    string    `json:"phase,omitempty"`
	Time     time.Time `json:"time"`
}

// Status is a read-only snapshot of the engine's run state.
type Status struct {
	Active   bool   `json:"active"`
	Paused   bool   `json:"paused"`
	Exercise string `json:"exercise,omitempty"`
	Phase    string `json:"phase"`
	Reps     int    `json:"reps"`
	Target   int    `json:"target"`
	Success  bool   `json:"success"`
}

// ErrStreamBusy reports that the skeleton stream is reserved by another
// consumer, so a run cannot start (or a reservation cannot be granted).
var ErrStreamBusy = errors.New("exercise: skeleton stream is in use")

type startRequest struct {
	exercise string
	target   int
	patient  string
}

// EngineOptions tune a new Engine.
type EngineOptions struct {
	// CoordinateScale adapts positional thresholds to the skeleton
	// backend's coordinate unit. Zero selects 1.0.
	CoordinateScale float64

	// DefaultTargetReps is used when a start request carries no target.
	DefaultTargetReps int

	// ResolverFor returns the ROM personalization for a patient, or nil for
	// catalog defaults. May itself be nil.
	ResolverFor func(patientID string) RangeResolver
}

// Engine is the single consumer of the skeleton stream. It owns all run
// state; external collaborators only read snapshots and write the small
// request surface (start, stop, pause, resume), which the loop observes
// between ticks.
type Engine struct {
	source    pose.Source
	calc      *angles.Calculator
	announcer announce.Announcer
	sched     Scheduler
	opts      EngineOptions

	mu       sync.Mutex
	pending  *startRequest
	stopReq  bool
	paused   bool
	reserved bool
	status   Status
	tally    map[string]int
	subs     map[int]chan Event
	subSeq   int
}

// NewEngine wires an engine. The announcer may be nil, in which case counts
// are only published as events.
func NewEngine(source pose.Source, calc *angles.Calculator, announcer announce.Announcer, sched Scheduler, opts EngineOptions) *Engine {
	if opts.DefaultTargetReps <= 0 {
		opts.DefaultTargetReps = 5
	}
	if announcer == nil {
		announcer = announce.Log{}
	}
	return &Engine{
		source:    source,
		calc:      calc,
		announcer: announcer,
		sched:     sched,
		opts:      opts,
		tally:     make(map[string]int),
		subs:      make(map[int]chan Event),
	}
}

// StartExercise requests tracking of the given exercise. If a run is active
// it is interrupted at the next tick (partial count preserved) before the
// new run starts. target<=0 selects the configured default.
func (e *Engine) StartExercise(id string, target int, patientID string) error {
	if _, err := Lookup(id); err != nil {
		return err
	}
	if target <= 0 {
		target = e.opts.DefaultTargetReps
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reserved {
		return ErrStreamBusy
	}
	e.pending = &startRequest{exercise: id, target: target, patient: patientID}
	e.stopReq = false
	return nil
}

// Reserve grants a collaborator (a calibration protocol) exclusive use of the
// skeleton stream and the smoothing calculator. It fails while a run is
// active or queued; while the reservation is held, StartExercise fails with
// ErrStreamBusy. The caller must invoke the returned release func.
func (e *Engine) Reserve() (release func(), err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reserved || e.pending != nil || e.status.Active {
		return nil, ErrStreamBusy
	}
	e.reserved = true
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.reserved = false
	}, nil
}

// Stop requests interruption of the active run. Honoured at the next tick;
// the partial count is preserved and no success flag is set.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopReq = true
	e.pending = nil
}

// Pause suspends tracking cooperatively. The loop idles and clears the
// smoothing slots once, so resuming does not clamp against a stale pose.
func (e *Engine) Pause() {
	e.mu.Lock()
	already := e.paused
	e.paused = true
	e.status.Paused = true
	e.mu.Unlock()
	if !already {
		e.publish(Event{Kind: EventPaused})
	}
}

// Resume lifts a pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	already := !e.paused
	e.paused = false
	e.status.Paused = false
	e.mu.Unlock()
	if !already {
		e.publish(Event{Kind: EventResumed})
	}
}

// Status returns a snapshot of the run state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Tally returns the repetitions achieved per exercise this session,
// including interrupted runs.
func (e *Engine) Tally() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.tally))
	for k, v := range e.tally {
		out[k] = v
	}
	return out
}

// Subscribe registers an event listener. Events are dropped, not queued,
// when the subscriber falls behind. The returned cancel func must be called
// to release the subscription.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subSeq++
	id := e.subSeq
	ch := make(chan Event, 16)
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

// Run drives the engine until the context is cancelled. It is the single
// writer of all run state.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := e.takePending()
		if req == nil {
			if err := e.sched.Idle(ctx); err != nil {
				return err
			}
			continue
		}
		e.track(ctx, req)
	}
}

// takePending dequeues the start request and, in the same critical section,
// marks the run active so Reserve cannot slip in between dequeue and track.
func (e *Engine) takePending() *startRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	req := e.pending
	e.pending = nil
	if req != nil {
		e.status.Active = true
	}
	return req
}

// interrupted reports whether a stop or a switch to another exercise was
// requested. Checked once per tick.
func (e *Engine) interrupted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopReq || e.pending != nil
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) track(ctx context.Context, req *startRequest) {
	def, err := Lookup(req.exercise)
	if err != nil {
		// validated at request time
		e.mu.Lock()
		e.status.Active = false
		e.mu.Unlock()
		return
	}
	var resolve RangeResolver
	if e.opts.ResolverFor != nil {
		resolve = e.opts.ResolverFor(req.patient)
	}

	e.calc.Reset()
	tracker := NewTracker(def, e.calc, TrackerOptions{
		CoordinateScale: e.opts.CoordinateScale,
		Resolve:         resolve,
	})

	e.mu.Lock()
	e.status = Status{Active: true, Paused: e.paused, Exercise: req.exercise, Phase: Down.String(), Target: req.target}
	e.mu.Unlock()
	e.publish(Event{Kind: EventStarted, Exercise: req.exercise, Target: req.target})

	clearedForPause := false
	for {
		if ctx.Err() != nil || e.interrupted() {
			e.endRun(req, tracker, false)
			return
		}
		if e.isPaused() {
			// Clear smoothing exactly once per pause, not on every idle
			// tick, so resume starts from the live pose.
			if !clearedForPause {
				e.calc.Reset()
				clearedForPause = true
			}
			if e.sched.Idle(ctx) != nil {
				e.endRun(req, tracker, false)
				return
			}
			continue
		}
		clearedForPause = false

		frame, err := e.source.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				e.endRun(req, tracker, false)
				return
			}
			if !errors.Is(err, pose.ErrNoData) {
				monitoring.Logf("engine: skeleton source: %v", err)
			}
			if e.sched.Tick(ctx) != nil {
				e.endRun(req, tracker, false)
				return
			}
			continue
		}

		if tracker.Observe(frame) {
			n := tracker.Reps()
			e.announcer.Count(n)
			e.setProgress(tracker)
			e.publish(Event{Kind: EventRep, Exercise: req.exercise, Rep: n, Target: req.target})
			if n >= req.target {
				e.endRun(req, tracker, true)
				return
			}
		} else {
			e.setProgress(tracker)
			monitoring.Debugf("engine: %s phase=%s reps=%d", req.exercise, tracker.Phase(), tracker.Reps())
		}

		if e.sched.Tick(ctx) != nil {
			e.endRun(req, tracker, false)
			return
		}
	}
}

func (e *Engine) setProgress(t *Tracker) {
	e.mu.Lock()
	e.status.Reps = t.Reps()
	e.status.Phase = t.Phase().String()
	e.mu.Unlock()
}

// endRun finalizes a run: the per-exercise tally keeps whatever was
// achieved, success is flagged only when the target was reached, and the
// matching terminal event is published.
func (e *Engine) endRun(req *startRequest, t *Tracker, success bool) {
	e.mu.Lock()
	e.tally[req.exercise] = t.Reps()
	e.status.Active = false
	e.status.Reps = t.Reps()
	e.status.Success = success
	e.stopReq = false
	e.mu.Unlock()

	kind := EventInterrupted
	if success {
		kind = EventFinished
	}
	e.publish(Event{Kind: kind, Exercise: req.exercise, Rep: t.Reps(), Target: req.target, Success: success})
	monitoring.Logf("engine: %s ended with %d/%d reps (success=%v)", req.exercise, t.Reps(), req.target, success)
}

func (e *Engine) publish(ev Event) {
	ev.Time = time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
}
