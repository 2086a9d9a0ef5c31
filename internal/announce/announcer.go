// Package announce delivers patient-facing feedback requests to an external
// collaborator (speaker, UI, broker). Delivery is fire-and-forget: the
// engine paces instructions with explicit delays rather than waiting for
// playback.
package announce

import "github.com/rehab-data/motion.report/internal/monitoring"

// Announcer receives repetition counts and instruction texts.
type Announcer interface {
	Count(n int)
	Instruction(text string)
}

// Log announces through the process logger. It is the default collaborator
// when no external feedback channel is configured.
type Log struct{}

// Count implements Announcer.
func (Log) Count(n int) {
	monitoring.Logf("announce: repetition %d", n)
}

// Instruction implements Announcer.
func (Log) Instruction(text string) {
	monitoring.Logf("announce: %s", text)
}

// Multi fans an announcement out to several collaborators.
type Multi []Announcer

// Count implements Announcer.
func (m Multi) Count(n int) {
	for _, a := range m {
		a.Count(n)
	}
}

// Instruction implements Announcer.
func (m Multi) Instruction(text string) {
	for _, a := range m {
		a.Instruction(text)
	}
}
