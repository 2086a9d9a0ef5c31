// Package pose models skeleton frames as produced by an external
// pose-estimation backend. The backend is treated as an opaque source of
// named 3D joint positions; this package knows nothing about how they
// were estimated.
package pose

// Canonical joint names as emitted by the skeleton bridge. Sided joints
// carry an "R_" or "L_" prefix; the nose is unsided.
const (
	Nose = "nose"

	baseShoulder = "shoulder"
	baseElbow    = "elbow"
	baseWrist    = "wrist"
	baseHip      = "hip"
)

// Side identifies one half of the body.
type Side int

const (
	Right Side = iota
	Left
)

// String returns the joint-name prefix for the side.
func (s Side) String() string {
	if s == Left {
		return "L"
	}
	return "R"
}

// Opposite returns the mirrored side.
func (s Side) Opposite() Side {
	if s == Left {
		return Right
	}
	return Left
}

// Joint name for a base joint ("shoulder", "elbow", ...) on the side.
func (s Side) Joint(base string) string {
	return s.String() + "_" + base
}

// Joint is one named 3D joint position for a single instant. Joints are
// ephemeral: a new value replaces the old on every frame, and there is no
// identity beyond the name.
type Joint struct {
	Name    string
	X, Y, Z float64
	Visible bool
}

// Frame maps joint name to position for one instant. Frames are consumed
// immediately and never retained by the engine.
type Frame map[string]Joint

// Lookup returns the named joint if it is present and visible.
func (f Frame) Lookup(name string) (Joint, bool) {
	j, ok := f[name]
	if !ok || !j.Visible {
		return Joint{}, false
	}
	return j, true
}

// LookupSided resolves a base joint name on the given side.
func (f Frame) LookupSided(s Side, base string) (Joint, bool) {
	return f.Lookup(s.Joint(base))
}
