// Package romimage loads a ROM image file into fixed-size 4 KiB blocks
// ready for block-aligned flash programming.
package romimage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/titaniumstudios/sstflash/internal/imagecrc"
)

const (
	// BlockSize is the SST39SF0x0 sector-erase granularity, and the unit
	// RomImage is buffered in.
	BlockSize = 4096
	// romBlockSize is the historical unit image file lengths must be a
	// multiple of, independent of the flash sector size.
	romBlockSize = 2048
	// MaxBlocks caps a ROM image at 256 KiB, the largest SST39SF0x0 in
	// the supported family.
	MaxBlocks = 64
)

var (
	// ErrEmpty is returned when the image file contains no data.
	ErrEmpty = errors.New("romimage: file is empty")
	// ErrNotBlockMultiple is returned when the original file length is
	// not a multiple of 2 KiB.
	ErrNotBlockMultiple = errors.New("romimage: file length must be a multiple of 2048 bytes")
	// ErrTooLarge is returned when the image (after any size override)
	// would exceed MaxBlocks blocks.
	ErrTooLarge = errors.New("romimage: file exceeds 256 KiB maximum")
	// ErrBadOverride is returned when an invalid -size override reaches
	// the loader (callers should normally reject this earlier, in
	// cliargs, but the loader re-validates since it is the component
	// with the authoritative block-size arithmetic).
	ErrBadOverride = errors.New("romimage: size override must be an even number of KiB between 2 and 256")
)

// Image is an ordered sequence of 4 KiB blocks ready for programming.
type Image struct {
	Blocks [][BlockSize]byte

	// OrigSize is the number of bytes actually read from the file.
	OrigSize int64
	// Padded reports whether the tail block required zero padding to
	// reach a 4 KiB boundary.
	Padded bool
	// Fingerprint is a diagnostic CRC-32 over the padded block data. It
	// is never used in a pass/fail decision.
	Fingerprint uint32
}

// ProgrammedLength is blocks x 4096, the number of bytes that will actually
// be written to the device.
func (img *Image) ProgrammedLength() int {
	return len(img.Blocks) * BlockSize
}

// Load reads path into an Image. If sizeOverrideKiB is non-zero it overrides
// the programmed length (must be even, 2..256); otherwise the programmed
// length is the file size rounded up to a 4 KiB multiple, and a file larger
// than 256 KiB is rejected with ErrTooLarge.
func Load(path string, sizeOverrideKiB int) (*Image, error) {
	if sizeOverrideKiB != 0 && (sizeOverrideKiB < 2 || sizeOverrideKiB > 256 || sizeOverrideKiB%2 != 0) {
		return nil, ErrBadOverride
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("romimage: open %s: %w", path, err)
	}
	defer f.Close()

	overriding := sizeOverrideKiB > 0
	limit := MaxBlocks * BlockSize
	if overriding {
		limit = sizeOverrideKiB * 1024
	}

	img := &Image{}

	for remaining := limit; remaining > 0; {
		var block [BlockSize]byte
		want := BlockSize
		if remaining < want {
			want = remaining
		}

		n, err := io.ReadFull(f, block[:want])
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, fmt.Errorf("romimage: read %s: %w", path, err)
		}

		img.Blocks = append(img.Blocks, block)
		img.OrigSize += int64(n)
		remaining -= want

		if n < want {
			break
		}
	}

	if overriding {
		// A size override asked for more than the file contained; pad
		// with fully zero blocks until the programmed length matches.
		// An override smaller than the file is a deliberate truncation,
		// not an error (-size may be larger or smaller than the file).
		for img.ProgrammedLength() < limit {
			img.Blocks = append(img.Blocks, [BlockSize]byte{})
		}
	} else if n, _ := f.Read(make([]byte, 1)); n > 0 {
		// No override: the file must fit within the default 256 KiB
		// cap. Unlike a -size override, silently truncating here would
		// let an operator flash a different ROM than the one they
		// pointed at without any indication.
		return nil, ErrTooLarge
	}

	if img.OrigSize == 0 {
		return nil, ErrEmpty
	}
	if img.OrigSize%romBlockSize != 0 {
		return nil, ErrNotBlockMultiple
	}

	img.Padded = img.OrigSize%BlockSize != 0

	img.Fingerprint = fingerprint(img.Blocks)

	return img, nil
}

func fingerprint(blocks [][BlockSize]byte) uint32 {
	flat := make([]byte, 0, len(blocks)*BlockSize)
	for _, b := range blocks {
		flat = append(flat, b[:]...)
	}
	return imagecrc.Block(flat)
}
