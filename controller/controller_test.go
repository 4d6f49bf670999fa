package controller

import (
	"testing"

	"github.com/titaniumstudios/sstflash/criticalsection"
	"github.com/titaniumstudios/sstflash/memwindow"
	"github.com/titaniumstudios/sstflash/romimage"
	"github.com/titaniumstudios/sstflash/ticktimer"
)

// oneBlockImage builds a single-block image whose first two bytes are a
// recognized SST39SF020 vendor/device pair, matching what newController
// preloads at the destination so Identify succeeds before any flashing.
func oneBlockImage(fill byte) *romimage.Image {
	var block [romimage.BlockSize]byte
	for i := range block {
		block[i] = fill
	}
	block[0] = 0xBF
	block[1] = 0xB6
	return &romimage.Image{Blocks: [][romimage.BlockSize]byte{block}, OrigSize: romimage.BlockSize}
}

func newController(t *testing.T, confirm bool) (*Controller, *memwindow.FixtureProvider, *[]string) {
	t.Helper()
	provider := memwindow.NewFixture(0x00)
	provider.SetHook(func(write bool, absOffset int, value byte) {
		if write && value == 0x30 {
			view, err := provider.Window(0xC800, 1)
			if err != nil {
				panic(err)
			}
			view.WriteByte(0, 0xFF)
		}
	})

	// Preload a recognized vendor/device pair at the destination so
	// device.Identify (now called before the confirm prompt) succeeds;
	// see sstproto_test.go's TestIdentifyKnownDevice for the same pattern.
	dest, err := provider.Window(0xC800, 2)
	if err != nil {
		t.Fatal(err)
	}
	dest.WriteByte(0, 0xBF)
	dest.WriteByte(1, 0xB6)

	var logs []string
	c := &Controller{
		Provider: provider,
		CS:       criticalsection.NewCountingSection(),
		Tick:     ticktimer.NewFixedSource([]byte{0, 1, 1, 1, 1, 2}),
		Log:      func(format string, args ...interface{}) { logs = append(logs, format) },
		Confirm:  func(string) (bool, error) { return confirm, nil },
		Halt:     func() {},
	}
	return c, provider, &logs
}

func TestRunFlashesAndVerifies(t *testing.T) {
	c, _, logs := newController(t, true)
	img := oneBlockImage(0x42)

	if err := c.Run(img, 0xC800); err != nil {
		t.Fatal(err)
	}
	if len(*logs) == 0 {
		t.Fatal("expected at least one log line")
	}
}

func TestRunAbortedByOperator(t *testing.T) {
	c, _, _ := newController(t, false)
	img := oneBlockImage(0x42)

	if err := c.Run(img, 0xC800); err != ErrUserAborted {
		t.Fatalf("err = %v, want ErrUserAborted", err)
	}
}

func TestRunSkipsAlreadyFlashedImage(t *testing.T) {
	c, provider, _ := newController(t, true)
	img := oneBlockImage(0x42)

	dest, err := provider.Window(0xC800, romimage.BlockSize)
	if err != nil {
		t.Fatal(err)
	}
	dest.WriteBlock(0, img.Blocks[0][:])

	if err := c.Run(img, 0xC800); err != nil {
		t.Fatal(err)
	}
}
