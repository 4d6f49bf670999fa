package cliargs

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// KeyReader reads a single raw keystroke, without waiting for Enter.
type KeyReader interface {
	ReadKey() (rune, error)
}

// TTYKeyReader reads one byte at a time off a file descriptor put into raw
// mode for the duration of each read, matching the original getch()
// semantics.
type TTYKeyReader struct {
	f  *os.File
	fd int
}

// NewTTYKeyReader returns a TTYKeyReader reading off f (normally os.Stdin).
func NewTTYKeyReader(f *os.File) *TTYKeyReader {
	return &TTYKeyReader{f: f, fd: int(f.Fd())}
}

func (r *TTYKeyReader) ReadKey() (rune, error) {
	state, err := term.MakeRaw(r.fd)
	if err != nil {
		return 0, fmt.Errorf("cliargs: enter raw mode: %w", err)
	}
	defer term.Restore(r.fd, state)

	var buf [1]byte
	if _, err := r.f.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("cliargs: read keystroke: %w", err)
	}
	return rune(buf[0]), nil
}

// Confirm asks prompt on stdout and reads one keystroke via r, returning
// true for 'y'/'Y' and false otherwise.
func Confirm(r KeyReader, prompt string) (bool, error) {
	fmt.Print(prompt + " ")
	key, err := r.ReadKey()
	if err != nil {
		return false, err
	}
	fmt.Println()
	return key == 'y' || key == 'Y', nil
}
