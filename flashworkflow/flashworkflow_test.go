package flashworkflow

import (
	"testing"

	"github.com/titaniumstudios/sstflash/criticalsection"
	"github.com/titaniumstudios/sstflash/memwindow"
	"github.com/titaniumstudios/sstflash/romimage"
	"github.com/titaniumstudios/sstflash/sstproto"
)

func oneBlockImage(fill byte) *romimage.Image {
	var block [romimage.BlockSize]byte
	for i := range block {
		block[i] = fill
	}
	return &romimage.Image{Blocks: [][romimage.BlockSize]byte{block}, OrigSize: romimage.BlockSize}
}

func newDevice(provider memwindow.Provider, seqSeg uint16) *sstproto.Device {
	seqView, err := provider.Window(seqSeg, 0x8000)
	if err != nil {
		panic(err)
	}
	return sstproto.New(seqView, criticalsection.NewCountingSection(), sstproto.Timeout{Unit: 4})
}

// TestRunSkipsAlreadyMatchingBlock covers the idempotence scenario: a
// device already holding the target image is flashed with zero blocks
// written and no unlock sequences issued.
func TestRunSkipsAlreadyMatchingBlock(t *testing.T) {
	img := oneBlockImage(0x42)
	provider := memwindow.NewFixture(0x00)

	dest, err := provider.Window(0xC800, romimage.BlockSize)
	if err != nil {
		t.Fatal(err)
	}
	dest.WriteBlock(0, img.Blocks[0][:])

	var unlockWrites int
	provider.SetHook(func(write bool, absOffset int, value byte) {
		if write && value == 0xAA {
			unlockWrites++
		}
	})

	device := newDevice(provider, 0xC800)
	result := Run(provider, 0xC800, img, device)

	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.BlocksFlashed != 0 {
		t.Fatalf("BlocksFlashed = %d, want 0", result.BlocksFlashed)
	}
	if unlockWrites != 0 {
		t.Fatalf("expected no unlock sequences, saw %d", unlockWrites)
	}
}

// TestRunFlashesMismatchedBlock covers the case where the device needs an
// erase+program cycle, simulated by a hook that completes the erase as soon
// as the erase-start command lands and reflects programmed bytes normally
// (the fixture already does the latter, since WriteByte is immediate).
func TestRunFlashesMismatchedBlock(t *testing.T) {
	img := oneBlockImage(0x7E)
	provider := memwindow.NewFixture(0x00)

	provider.SetHook(func(write bool, absOffset int, value byte) {
		if write && value == 0x30 { // erase-start command
			view, err := provider.Window(0xC800, 1)
			if err != nil {
				panic(err)
			}
			view.WriteByte(0, 0xFF)
		}
	})

	device := newDevice(provider, 0xC800)
	result := Run(provider, 0xC800, img, device)

	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.BlocksFlashed != 1 {
		t.Fatalf("BlocksFlashed = %d, want 1", result.BlocksFlashed)
	}

	if err := Verify(provider, 0xC800, img); err != nil {
		t.Fatal(err)
	}
}

func TestVerifyDetectsMismatch(t *testing.T) {
	img := oneBlockImage(0x11)
	provider := memwindow.NewFixture(0x00)

	if err := Verify(provider, 0xC800, img); err != ErrVerifyFailed {
		t.Fatalf("err = %v, want ErrVerifyFailed", err)
	}
}
