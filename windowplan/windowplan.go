// Package windowplan picks the 32 KiB-aligned command window the SST39SF0x0
// unlock cycles must be issued through, and flags when an adjacent ROM
// image might be disturbed by doing so.
package windowplan

import "github.com/titaniumstudios/sstflash/memwindow"

const (
	commandWindowSize = 32 * 1024
	romStride         = 2 * 1024 // x86 option-ROM stride used for overlap scanning
)

// Plan is the result of planning a command window for a destination segment
// and programmed length.
type Plan struct {
	// Dest is the destination segment the caller asked to program.
	Dest uint16
	// Sequence is the 32 KiB-aligned segment unlock cycles must target.
	Sequence uint16
	// Length is the programmed length in bytes.
	Length int
	// MayOverlap reports whether another ROM signature was found inside
	// the 32 KiB command window, outside the destination range.
	MayOverlap bool
}

// Compute picks the command-window segment for a destination segment and
// programmed length.
//
// Rule: floor the destination address to a 32 KiB boundary. If that floor
// falls outside the caller's declared range, but rounding up by one 32 KiB
// window would still fit entirely inside it, round up instead - this puts
// the unlock cycles inside the caller's own ROM when possible.
func Compute(dest uint16, length int) Plan {
	destAddr := memwindow.SegToAddr(dest)
	seqAddr := destAddr &^ (commandWindowSize - 1)

	if seqAddr < destAddr && seqAddr+2*commandWindowSize <= destAddr+uint32(length) {
		seqAddr += commandWindowSize
	}

	return Plan{
		Dest:     dest,
		Sequence: memwindow.AddrToSeg(seqAddr),
		Length:   length,
	}
}

// DetectOverlap scans the 32 KiB command window in 2 KiB (option-ROM
// stride) steps, skipping the destination's own range, and sets
// MayOverlap if any step looks like the start of another ROM.
//
// The heuristic is deliberately loose: byte[0] == 0x55 (half of the
// canonical 0x55 0xAA option-ROM signature) OR byte[1] == 0xFF. The 0xFF
// branch is carried over unchanged from the original implementation - it
// may be a bug, or an intentional catch-all for shadowed-BIOS wear
// patterns. Do not "fix" it without re-reading the design notes.
func DetectOverlap(plan Plan, provider memwindow.Provider) (Plan, error) {
	// Computed as uint32 so a Sequence at the very top of the segment
	// space (0xF800, reachable at the documented maximum destination
	// segment) doesn't wrap end back to 0 the way uint16 arithmetic
	// would, which would make the scan loop run zero iterations.
	twoKInSeg := uint32(romStride / 16)
	thirtyTwoKInSeg := uint32(commandWindowSize / 16)
	flashLenInSeg := uint32(plan.Length / 16)
	dest := uint32(plan.Dest)
	end := uint32(plan.Sequence) + thirtyTwoKInSeg

	for curr := uint32(plan.Sequence); curr < end; curr += twoKInSeg {
		if curr == dest {
			// Skip the destination's own range; the loop's increment
			// still advances curr by twoKInSeg after this continue.
			curr += flashLenInSeg
			continue
		}

		view, err := provider.Window(uint16(curr), 2)
		if err != nil {
			return plan, err
		}

		if isROMSignature(view) {
			plan.MayOverlap = true
			return plan, nil
		}
	}

	return plan, nil
}

func isROMSignature(view memwindow.View) bool {
	return view.ReadByte(0) == 0x55 || view.ReadByte(1) == 0xFF
}
