// Package ticktimer derives a polling-loop timeout unit by racing a busy
// loop against a periodic tick, the same way the original DOS utility
// calibrated its delays against the BIOS timer tick instead of a wall clock.
package ticktimer

import (
	"errors"
	"time"
)

// Source supplies the low byte of a free-running tick counter. Two
// consecutive reads that differ mean at least one tick boundary was
// crossed between them.
type Source interface {
	ReadLSB() byte
}

// biosTickHz is the PC BIOS timer tick rate (18.2 Hz, i.e. one tick every
// ~54.93 ms).
const biosTickHz = 18.2

// BIOSSource is the production Source. A hosted Go process has no real-mode
// access to the BIOS data area's tick counter at 0040:006C, so this
// simulates the same 18.2 Hz rate against the monotonic clock instead; it
// is the one place this port cannot be bit-faithful to real hardware, since
// the quantity being measured only exists in real mode.
type BIOSSource struct {
	start time.Time
}

// NewBIOSSource returns a BIOSSource whose tick counter starts at zero at
// the moment of the call.
func NewBIOSSource() *BIOSSource {
	return &BIOSSource{start: time.Now()}
}

func (s *BIOSSource) ReadLSB() byte {
	ticks := time.Since(s.start).Seconds() * biosTickHz
	return byte(uint64(ticks))
}

// FixedSource is a test Source that plays back a scripted sequence of LSB
// values, one per call, holding at the final value once exhausted.
type FixedSource struct {
	seq []byte
	idx int
}

// NewFixedSource returns a FixedSource that yields seq in order.
func NewFixedSource(seq []byte) *FixedSource {
	return &FixedSource{seq: seq}
}

func (s *FixedSource) ReadLSB() byte {
	v := s.seq[s.idx]
	if s.idx < len(s.seq)-1 {
		s.idx++
	}
	return v
}

// ErrTickStalled is returned by Calibrate when the tick source never
// advances past its starting value, which on real hardware would mean the
// BIOS timer interrupt is not firing.
var ErrTickStalled = errors.New("ticktimer: tick source did not advance")

// maxSpin bounds the tick-edge wait in Calibrate so a stalled Source fails
// fast instead of hanging the whole run. The counting loop that follows is
// bounded by its 0xFFFF saturation instead.
const maxSpin = 1 << 20

// Calibrate derives a polling-loop iteration count that corresponds to one
// tick interval of tick, by:
//  1. reading the current tick LSB (t0);
//  2. spinning until it changes (t1), to align to a tick edge;
//  3. counting how many times poll() can be called before the tick changes
//     again.
//
// poll is called once per iteration and should do a constant amount of
// work; it returning false aborts the count early, with that last call
// still counted. The result saturates at 0xFFFF.
func Calibrate(poll func() bool, tick Source) (uint16, error) {
	t0 := tick.ReadLSB()
	t1 := t0
	for spins := 0; t1 == t0; spins++ {
		if spins > maxSpin {
			return 0, ErrTickStalled
		}
		t1 = tick.ReadLSB()
	}

	var count uint32
	for tick.ReadLSB() == t1 {
		ok := poll()
		count++
		if count >= 0xFFFF {
			return 0xFFFF, nil
		}
		if !ok {
			break
		}
	}
	return uint16(count), nil
}
