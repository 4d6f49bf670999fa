// Package flashworkflow drives the per-block compare/erase/program loop and
// the separate full-image verify pass.
package flashworkflow

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/titaniumstudios/sstflash/memwindow"
	"github.com/titaniumstudios/sstflash/romimage"
	"github.com/titaniumstudios/sstflash/sstproto"
)

// blockSegSpan is the number of 16-byte paragraphs a 4 KiB block spans
// (romimage.BlockSize / 16), i.e. the segment stride between consecutive
// blocks in the destination window.
const blockSegSpan = romimage.BlockSize / 16

// ErrEraseTimeout is returned when a sector fails to read back as erased
// within its bounded poll.
var ErrEraseTimeout = errors.New("flashworkflow: sector erase timed out")

// ErrProgramTimeout is returned when a programmed byte fails to read back
// within its bounded poll.
var ErrProgramTimeout = errors.New("flashworkflow: byte program timed out")

// ErrVerifyFailed is returned when a post-flash readback does not match the
// image that was written.
var ErrVerifyFailed = errors.New("flashworkflow: verify mismatch")

// Result reports how many blocks were actually flashed (skipping blocks
// that already matched the device) and how the run ended.
type Result struct {
	BlocksFlashed int
	Err           error
}

// blockWindow maps block index b of img onto provider, at baseDest plus b
// block-sized strides. The segment arithmetic is done in a wider type than
// uint16 so a block that would run past the top of the addressable segment
// space is rejected instead of silently wrapping back to a low address.
func blockWindow(provider memwindow.Provider, baseDest uint16, b int) (memwindow.View, error) {
	seg := int(baseDest) + b*blockSegSpan
	if seg > 0xFFFF {
		return nil, fmt.Errorf("flashworkflow: block %d at destination %04x exceeds the addressable segment space", b, baseDest)
	}
	return provider.Window(uint16(seg), romimage.BlockSize)
}

// Run flashes img starting at baseDest, comparing each block against the
// device first and skipping it (issuing no unlock sequences at all) when it
// already matches - the common case on a re-run against an already
// up-to-date device.
func Run(provider memwindow.Provider, baseDest uint16, img *romimage.Image, device *sstproto.Device) Result {
	var flashed int
	current := make([]byte, romimage.BlockSize)

	for b, want := range img.Blocks {
		dest, err := blockWindow(provider, baseDest, b)
		if err != nil {
			return Result{BlocksFlashed: flashed, Err: err}
		}

		dest.ReadBlock(0, current)
		if bytes.Equal(current, want[:]) {
			continue
		}

		if !device.EraseSector(dest) {
			return Result{BlocksFlashed: flashed, Err: ErrEraseTimeout}
		}
		for offset, value := range want {
			if !device.ProgramByte(dest, offset, value) {
				return Result{BlocksFlashed: flashed, Err: ErrProgramTimeout}
			}
		}
		flashed++
	}

	return Result{BlocksFlashed: flashed}
}

// Verify re-reads every block of img from the device and reports
// ErrVerifyFailed on the first mismatch.
func Verify(provider memwindow.Provider, baseDest uint16, img *romimage.Image) error {
	current := make([]byte, romimage.BlockSize)
	for b, want := range img.Blocks {
		dest, err := blockWindow(provider, baseDest, b)
		if err != nil {
			return err
		}
		dest.ReadBlock(0, current)
		if !bytes.Equal(current, want[:]) {
			return ErrVerifyFailed
		}
	}
	return nil
}
