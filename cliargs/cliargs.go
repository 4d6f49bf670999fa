// Package cliargs implements the command-line grammar: leading `-` or `/`
// options, strictly left-to-right and always before the two positional
// arguments (destination segment, image path).
package cliargs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidArguments is returned for any malformed, missing, or
// out-of-range argument.
var ErrInvalidArguments = errors.New("cliargs: invalid arguments")

const (
	minSegment = 0xA000
	maxSegment = 0xF800
	segStep    = 0x100

	minSizeKiB = 2
	maxSizeKiB = 256

	defaultDevMem = "/dev/mem"
)

// Options is the fully parsed, immutable result of Parse.
type Options struct {
	// ShowUsage is set by -?/-h/-help; when true, all other fields are
	// unpopulated and the caller should print usage and exit 1.
	ShowUsage bool

	Segment         uint16
	ImagePath       string
	SizeOverrideKiB int // 0 means "no override"

	// Fingerprint requests printing the loaded image's diagnostic CRC-32
	// and exiting, without touching the device. Ambient convenience, not
	// part of the core grammar.
	Fingerprint bool
	// DevMemPath overrides the physical memory device node, default
	// /dev/mem. Advanced/hidden, not part of the core grammar.
	DevMemPath string
}

func isOption(tok string) bool {
	return strings.HasPrefix(tok, "-") || strings.HasPrefix(tok, "/")
}

// optionName strips the leading - or / and lowercases, so "-Size", "/size",
// and "-size" are all accepted identically.
func optionName(tok string) string {
	return strings.ToLower(strings.TrimLeft(tok, "-/"))
}

// Parse parses argv (not including the program name).
func Parse(argv []string) (Options, error) {
	opts := Options{DevMemPath: defaultDevMem}

	i := 0
	for ; i < len(argv); i++ {
		tok := argv[i]
		if !isOption(tok) {
			break
		}

		switch optionName(tok) {
		case "?", "h", "help":
			return Options{ShowUsage: true}, nil

		case "size":
			i++
			if i >= len(argv) {
				return Options{}, fmt.Errorf("%w: -size requires a value", ErrInvalidArguments)
			}
			k, err := strconv.Atoi(argv[i])
			if err != nil || k < minSizeKiB || k > maxSizeKiB || k%2 != 0 {
				return Options{}, fmt.Errorf("%w: -size must be an even integer in [%d, %d]", ErrInvalidArguments, minSizeKiB, maxSizeKiB)
			}
			opts.SizeOverrideKiB = k

		case "fingerprint":
			opts.Fingerprint = true

		case "devmem":
			i++
			if i >= len(argv) {
				return Options{}, fmt.Errorf("%w: -devmem requires a value", ErrInvalidArguments)
			}
			opts.DevMemPath = argv[i]

		default:
			return Options{}, fmt.Errorf("%w: unknown option %q", ErrInvalidArguments, tok)
		}
	}

	rest := argv[i:]
	if len(rest) != 2 {
		return Options{}, fmt.Errorf("%w: expected <segment-hex> <image-path>", ErrInvalidArguments)
	}

	seg, err := parseSegment(rest[0])
	if err != nil {
		return Options{}, err
	}
	opts.Segment = seg
	opts.ImagePath = rest[1]

	return opts, nil
}

func parseSegment(tok string) (uint16, error) {
	if len(tok) < 1 || len(tok) > 4 {
		return 0, fmt.Errorf("%w: segment must be 1-4 hex digits", ErrInvalidArguments)
	}
	v, err := strconv.ParseUint(tok, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: segment %q is not valid hex", ErrInvalidArguments, tok)
	}
	seg := uint16(v)
	if seg < minSegment || seg > maxSegment || seg%segStep != 0 {
		return 0, fmt.Errorf("%w: segment %04X out of range [%04X, %04X] or not a multiple of %#x", ErrInvalidArguments, seg, minSegment, maxSegment, segStep)
	}
	return seg, nil
}

// Usage is the text printed for -?/-h/-help or a grammar error.
const Usage = `SSTFLASH [options] <segment-hex> <image-path>

  segment-hex    destination segment, 1-4 hex digits, 0xA000..0xF800, multiple of 0x100
  image-path     file to program, read-only binary

options (must precede the positional arguments):
  -? | -h | -help      print this usage and exit
  -size <K>            override written length; K even, 2..256 (KiB)
`
