// Package sstproto issues the SST39SF0x0 unlock/command sequences:
// software ID entry, sector erase, and byte program. Every sequence is
// bounded by a CalibratedTimeout and runs inside a caller-supplied critical
// section.
package sstproto

import (
	"errors"

	"github.com/titaniumstudios/sstflash/criticalsection"
	"github.com/titaniumstudios/sstflash/memwindow"
)

const (
	unlockAddr1 = 0x5555
	unlockAddr2 = 0x2AAA

	cmdUnlock1    = 0xAA
	cmdUnlock2    = 0x55
	cmdSoftwareID = 0x90
	cmdIDExit     = 0xF0
	cmdEraseSetup = 0x80
	cmdEraseStart = 0x30
	cmdProgram    = 0xA0

	eraseCompleteValue = 0xFF

	// eraseOuterIterations x one CalibratedTimeout-bounded poll each
	// give ~250ms, 10x the datasheet's 25ms max sector erase time.
	eraseOuterIterations = 1163

	// idSettleReads is the number of dummy reads performed after
	// entering software ID mode before the vendor/device bytes are
	// trusted. The exact count is empirical (see design notes); devices
	// have been observed to return stale data on the first read, so it
	// must never be dropped to zero.
	idSettleReads = 3
)

// DeviceID identifies a recognized SST39SF0x0 family member.
type DeviceID struct {
	Vendor, Device byte
	Name           string
}

var knownDevices = []DeviceID{
	{Vendor: 0xBF, Device: 0xB4, Name: "SST39SF512"},
	{Vendor: 0xBF, Device: 0xB5, Name: "SST39SF010"},
	{Vendor: 0xBF, Device: 0xB6, Name: "SST39SF020"},
	{Vendor: 0xBF, Device: 0xB7, Name: "SST39SF040"},
}

// ErrDeviceNotRecognized is returned by Identify when the vendor/device
// pair does not match a known SST39SF0x0 family member.
var ErrDeviceNotRecognized = errors.New("sstproto: device not recognized")

// lookup returns the device name for a vendor/device pair.
func lookup(vendor, device byte) (string, bool) {
	for _, d := range knownDevices {
		if d.Vendor == vendor && d.Device == device {
			return d.Name, true
		}
	}
	return "", false
}

// Device drives the SST39SF0x0 command protocol through a command window
// (seq) and a per-block destination window (dest), both views of the same
// underlying memory.
type Device struct {
	seq   memwindow.View
	cs    criticalsection.Section
	Timeout
}

// Timeout carries the calibrated polling bounds for program and erase
// operations, derived once per run by ticktimer.Calibrate.
type Timeout struct {
	// Unit is the calibrated ~215 microsecond polling-loop count.
	Unit uint16
}

// New returns a Device that issues unlock/command sequences through seq
// (the 32 KiB command window) and polls/pairs every sequence with cs.
func New(seq memwindow.View, cs criticalsection.Section, timeout Timeout) *Device {
	return &Device{seq: seq, cs: cs, Timeout: timeout}
}

func (d *Device) unlock() {
	d.seq.WriteByte(unlockAddr1, cmdUnlock1)
	d.seq.WriteByte(unlockAddr2, cmdUnlock2)
}

// poll reads offset up to iterations times (each try reading the destination
// device, per the calibration rationale), returning true as soon as it
// observes want, false if iterations is exhausted first.
func poll(dest memwindow.View, offset int, want byte, iterations uint16) bool {
	for ; iterations > 0; iterations-- {
		if dest.ReadByte(offset) == want {
			return true
		}
	}
	return false
}

// Identify enters software ID mode, reads the vendor/device bytes from
// dest, exits software ID mode, and looks the pair up in the known device
// table.
func (d *Device) Identify(dest memwindow.View) (DeviceID, error) {
	d.cs.Enter()
	defer d.cs.Leave()

	d.unlock()
	d.seq.WriteByte(unlockAddr1, cmdSoftwareID)

	// Bus-settling reads: devices have been observed to return stale
	// data on the first read after entering software ID mode.
	var vendor, device byte
	for i := 0; i < idSettleReads; i++ {
		vendor = dest.ReadByte(0)
	}
	vendor = dest.ReadByte(0)
	device = dest.ReadByte(1)

	d.seq.WriteByte(unlockAddr1, cmdIDExit)

	name, ok := lookup(vendor, device)
	if !ok {
		return DeviceID{Vendor: vendor, Device: device}, ErrDeviceNotRecognized
	}
	return DeviceID{Vendor: vendor, Device: device, Name: name}, nil
}

// EraseSector issues the sector-erase sequence against dest and polls for
// completion, bounded by eraseOuterIterations repetitions of a
// Timeout.Unit-bounded poll (~250ms total, 10x the datasheet max).
func (d *Device) EraseSector(dest memwindow.View) bool {
	d.cs.Enter()
	defer d.cs.Leave()

	d.unlock()
	d.seq.WriteByte(unlockAddr1, cmdEraseSetup)
	d.unlock()
	dest.WriteByte(0, cmdEraseStart)

	for i := 0; i < eraseOuterIterations; i++ {
		if poll(dest, 0, eraseCompleteValue, d.Unit) {
			return true
		}
	}
	return false
}

// ProgramByte issues the byte-program sequence for a single offset within
// dest, polling for the written value to read back, bounded by one
// Timeout.Unit (~215 microseconds, 10x the datasheet max program time).
func (d *Device) ProgramByte(dest memwindow.View, offset int, value byte) bool {
	d.cs.Enter()
	defer d.cs.Leave()

	d.unlock()
	d.seq.WriteByte(unlockAddr1, cmdProgram)
	dest.WriteByte(offset, value)

	return poll(dest, offset, value, d.Unit)
}
