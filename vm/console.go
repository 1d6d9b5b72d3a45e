package vm

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Console is the program's standard input and output.
type Console interface {
	// ReadLine returns the next line without its terminator. At end of
	// input it returns the partial line, if any, and io.EOF.
	ReadLine() (string, error)
	WriteString(s string) error
}

// StreamConsole adapts a reader and a writer.
type StreamConsole struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsole(r io.Reader, w io.Writer) *StreamConsole {
	if r == nil {
		r = strings.NewReader("")
	}
	return &StreamConsole{in: bufio.NewReader(r), out: w}
}

func (c *StreamConsole) ReadLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, err
}

func (c *StreamConsole) WriteString(s string) error {
	if c.out == nil {
		return nil
	}
	_, err := io.WriteString(c.out, s)
	return err
}
