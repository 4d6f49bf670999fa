// Package criticalsection supplies the opaque paired enter/leave service
// every SST39SF0x0 command sequence must run inside of, so an unrelated
// interrupt handler that touches the same flash chip mid-sequence can never
// put the device into an undefined state.
package criticalsection

import (
	"runtime"
	"runtime/debug"
)

// Section is entered immediately before a command sequence's first unlock
// write and left immediately after its terminal action, on every path
// including early/error returns.
type Section interface {
	Enter()
	Leave()
}

// OSSection is the production Section. A general-purpose OS gives user-mode
// code no way to mask hardware interrupts, so this is the closest
// approximation available to a hosted Go process: it pins the calling
// goroutine to its OS thread (so the scheduler cannot migrate it mid
// sequence) and parks the garbage collector for the duration (so a GC pause
// cannot land between two halves of an unlock cycle), restoring both on
// Leave.
type OSSection struct {
	prevGCPercent int
}

// NewOSSection returns a ready-to-use OSSection.
func NewOSSection() *OSSection {
	return &OSSection{}
}

func (s *OSSection) Enter() {
	runtime.LockOSThread()
	s.prevGCPercent = debug.SetGCPercent(-1)
}

func (s *OSSection) Leave() {
	debug.SetGCPercent(s.prevGCPercent)
	runtime.UnlockOSThread()
}

// CountingSection is a test Section that only counts calls, so tests can
// assert every Enter is eventually paired with a Leave.
type CountingSection struct {
	Enters, Leaves int
}

// NewCountingSection returns a ready-to-use CountingSection.
func NewCountingSection() *CountingSection {
	return &CountingSection{}
}

func (s *CountingSection) Enter() { s.Enters++ }
func (s *CountingSection) Leave() { s.Leaves++ }

// Balanced reports whether every Enter has been matched by a Leave.
func (s *CountingSection) Balanced() bool {
	return s.Enters == s.Leaves
}
