package memwindow

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

const lowMemorySize = 1 << 20 // 1 MiB legacy window

// PhysicalProvider maps the low 1 MiB window of physical memory once at
// construction time via mmap, and hands out Views that alias that mapping.
type PhysicalProvider struct {
	f    *os.File
	page []byte
}

// NewPhysical opens devMemPath (typically "/dev/mem") and maps the low 1 MiB
// window. The mapping is kept for the lifetime of the provider; call Close
// to release it.
func NewPhysical(devMemPath string) (*PhysicalProvider, error) {
	f, err := os.OpenFile(devMemPath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("memwindow: open %s: %w", devMemPath, err)
	}

	page, err := unix.Mmap(int(f.Fd()), 0, lowMemorySize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("memwindow: mmap %s: %w", devMemPath, err)
	}

	return &PhysicalProvider{f: f, page: page}, nil
}

// Close unmaps the window and closes the backing file.
func (p *PhysicalProvider) Close() error {
	if err := unix.Munmap(p.page); err != nil {
		return err
	}
	return p.f.Close()
}

// Window returns a View over [segment<<4, segment<<4+length) of the mapping.
// segment<<4 is always a multiple of 16, so every window starts on a 4-byte
// boundary of the underlying mapping.
func (p *PhysicalProvider) Window(segment uint16, length int) (View, error) {
	base := int(SegToAddr(segment))
	if base+length > len(p.page) {
		return nil, fmt.Errorf("memwindow: window %04x+%d exceeds %d byte mapping", segment, length, len(p.page))
	}

	return &physicalView{page: p.page, base: base, length: length}, nil
}

type physicalView struct {
	page        []byte
	base, length int
}

func (v *physicalView) Len() int { return v.length }

func (v *physicalView) ReadByte(offset int) byte {
	return byte(atomic.LoadUint32(v.wordAt(offset)) >> byteShift(v.base+offset) & 0xFF)
}

// wordAt and byteShift let a single byte be addressed through a 32-bit
// atomic load/store, since Go has no single-byte atomic primitive. The
// window is read/written one 4-byte-aligned word at a time with the other
// three bytes round-tripped unchanged, which preserves single-byte
// observability (each command sequence only ever touches one offset at a
// time within any given word) while still defeating compiler reordering.
// The word is always sliced out of the full mapping, never out of a
// sub-slice, so a window ending near the top of the 1 MiB space never runs
// past the end of the mapping.
func (v *physicalView) wordAt(offset int) *uint32 {
	abs := v.base + offset
	aligned := abs &^ 3
	return (*uint32)(ptrTo(v.page[aligned : aligned+4]))
}

func byteShift(offset int) uint {
	return uint(offset&3) * 8
}

func (v *physicalView) WriteByte(offset int, val byte) {
	word := v.wordAt(offset)
	shift := byteShift(v.base + offset)
	mask := uint32(0xFF) << shift

	for {
		old := atomic.LoadUint32(word)
		next := (old &^ mask) | (uint32(val) << shift)
		if atomic.CompareAndSwapUint32(word, old, next) {
			return
		}
	}
}

func (v *physicalView) ReadBlock(offset int, buf []byte) {
	for i := range buf {
		buf[i] = v.ReadByte(offset + i)
	}
}

func (v *physicalView) WriteBlock(offset int, buf []byte) {
	for i, b := range buf {
		v.WriteByte(offset+i, b)
	}
}
