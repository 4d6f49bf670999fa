// Package controller runs the top-level flash workflow: calibrate the
// polling timeout, plan the command window, warn on possible overlap,
// confirm with the operator, flash, verify, and hand off to a halt hook.
package controller

import (
	"errors"

	"github.com/titaniumstudios/sstflash/criticalsection"
	"github.com/titaniumstudios/sstflash/flashworkflow"
	"github.com/titaniumstudios/sstflash/memwindow"
	"github.com/titaniumstudios/sstflash/romimage"
	"github.com/titaniumstudios/sstflash/sstproto"
	"github.com/titaniumstudios/sstflash/ticktimer"
	"github.com/titaniumstudios/sstflash/windowplan"
)

// LogFunc receives one ambient log line at a time, the same shape the
// teacher's hardware-abstraction layer uses instead of pulling in a
// structured logging library.
type LogFunc func(format string, args ...interface{})

// Confirm asks the operator a yes/no question and reports their answer.
type Confirm func(prompt string) (bool, error)

// HaltFunc runs once a write to the device has been attempted, whether the
// flash succeeded or not. It is not called for errors before any write or
// when the device already matches the image.
type HaltFunc func()

// ErrUserAborted is returned when the operator declines the confirmation
// prompt.
var ErrUserAborted = errors.New("controller: user aborted")

// Controller bundles every collaborator the workflow needs. Every field is
// an interface or function value, so tests supply fixtures instead of
// talking to real hardware or a real terminal.
type Controller struct {
	Provider memwindow.Provider
	CS       criticalsection.Section
	Tick     ticktimer.Source
	Log      LogFunc
	Confirm  Confirm
	Halt     HaltFunc
}

func (c *Controller) logf(format string, args ...interface{}) {
	if c.Log != nil {
		c.Log(format, args...)
	}
}

func (c *Controller) halt() {
	if c.Halt != nil {
		c.Halt()
	}
}

// Run executes the calibrate -> plan -> detect -> warn -> confirm -> flash
// -> verify sequence for img at destSeg. Per the error-handling policy, Run
// only calls Halt for outcomes where a write was attempted (a successful
// flash, or a failure during/after writing) - every error that occurs
// before the device is touched returns without halting, so the caller can
// print it and exit normally.
func (c *Controller) Run(img *romimage.Image, destSeg uint16) error {
	probe, err := c.Provider.Window(destSeg, 2)
	if err != nil {
		return err
	}
	// Each calibration iteration reads the device 256 times, so one unit
	// of the result is ~1/256 of a tick (~215 microseconds) of single reads.
	unit, err := ticktimer.Calibrate(func() bool {
		for i := 0; i < 256; i++ {
			probe.ReadByte(0)
		}
		return true
	}, c.Tick)
	if err != nil {
		return err
	}
	c.logf("calibrated timeout unit: %d", unit)

	plan := windowplan.Compute(destSeg, img.ProgrammedLength())
	plan, err = windowplan.DetectOverlap(plan, c.Provider)
	if err != nil {
		return err
	}

	seqView, err := c.Provider.Window(plan.Sequence, 0x8000)
	if err != nil {
		return err
	}
	device := sstproto.New(seqView, c.CS, sstproto.Timeout{Unit: unit})

	id, err := device.Identify(probe)
	if err != nil {
		c.logf("device identification failed: %v (vendor=%02x device=%02x), command window %04x, destination %04x", err, id.Vendor, id.Device, plan.Sequence, plan.Dest)
		return err
	}

	if plan.MayOverlap {
		c.logf("warning: another ROM signature was found inside the command window; proceeding anyway")
	}

	c.logf("device identified: %s", id.Name)
	c.logf("image: %d blocks (%d bytes), padded=%v, fingerprint=%08x", len(img.Blocks), img.ProgrammedLength(), img.Padded, img.Fingerprint)
	c.logf("will program %dK to %s at segment %04x, command window segment %04x", img.ProgrammedLength()/1024, id.Name, plan.Dest, plan.Sequence)

	ok, err := c.Confirm("Continue Y/N?")
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserAborted
	}

	result := flashworkflow.Run(c.Provider, destSeg, img, device)
	if result.Err != nil {
		c.logf("error, device may be corrupt, reboot (flash failed after %d blocks: %v)", result.BlocksFlashed, result.Err)
		c.halt()
		return result.Err
	}
	if result.BlocksFlashed == 0 {
		c.logf("already up to date, nothing flashed")
		return nil
	}
	c.logf("flashed %d block(s), verifying", result.BlocksFlashed)

	if err := flashworkflow.Verify(c.Provider, destSeg, img); err != nil {
		c.logf("verify failed, reboot (%v)", err)
		c.halt()
		return err
	}
	c.logf("complete, reboot")
	c.halt()
	return nil
}
