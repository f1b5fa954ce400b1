package core

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/term"
)

// Console is the character device a running program talks to.
type Console interface {
	// Write prints one UTF-16 character.
	Write(ch uint16) error
	// ReadKey waits for one key press. Unless intercept is set the key is
	// echoed.
	ReadKey(intercept bool) (uint16, error)
}

// TerminalConsole reads single key presses from a terminal in raw mode.
// When the input is not a terminal it reads bytes as they come.
type TerminalConsole struct {
	in     *os.File
	reader *bufio.Reader
	out    io.Writer
}

// NewTerminalConsole creates a console on the given input and output.
func NewTerminalConsole(in *os.File, out io.Writer) *TerminalConsole {
	return &TerminalConsole{
		in:     in,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Write prints ch encoded as UTF-8.
func (t *TerminalConsole) Write(ch uint16) error {
	_, err := io.WriteString(t.out, string(rune(ch)))
	return err
}

// ReadKey reads one byte. On a terminal, line buffering is disabled for the
// duration of the read.
func (t *TerminalConsole) ReadKey(intercept bool) (uint16, error) {
	fd := int(t.in.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return 0, err
		}
		defer term.Restore(fd, oldState)
	}

	b, err := t.reader.ReadByte()
	if err != nil {
		return 0, err
	}

	if !intercept {
		if err := t.Write(uint16(b)); err != nil {
			return 0, err
		}
	}

	return uint16(b), nil
}
