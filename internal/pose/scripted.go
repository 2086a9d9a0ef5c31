package pose

import "context"

// ScriptedSource replays a fixed sequence of frames. A nil entry in the
// script stands for a missed tick (ErrNoData). Once the script is
// exhausted the source keeps returning ErrNoData unless Loop is set, in
// which case it restarts from the beginning.
//
// It exists for tests and for offline replay of recorded sessions.
type ScriptedSource struct {
	Script []Frame
	Loop   bool

	next int
}

// NextFrame returns the next scripted frame.
func (s *ScriptedSource) NextFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.Script) {
		if !s.Loop || len(s.Script) == 0 {
			return nil, ErrNoData
		}
		s.next = 0
	}
	f := s.Script[s.next]
	s.next++
	if f == nil {
		return nil, ErrNoData
	}
	return f, nil
}

// Close implements Source.
func (s *ScriptedSource) Close() error { return nil }
