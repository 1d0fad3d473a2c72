// Package console implements the shared sink all services render their
// lines to.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Console serializes lines coming from many services. Every line reaches the
// underlying writer in exactly one Write call, so lines never tear.
type Console struct {
	mx  sync.Mutex
	out io.Writer
	buf []byte
}

func New(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// WriteLine writes line followed by a newline.
func (c *Console) WriteLine(line string) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.buf = append(c.buf[:0], line...)
	c.buf = append(c.buf, '\n')
	_, err := c.out.Write(c.buf)
	return err
}

const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Colored decides whether output to f gets ANSI colors. In auto mode colors
// are used when f is a terminal and NO_COLOR is not set.
func Colored(mode string, f *os.File) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ColorAlways:
		return true, nil
	case ColorNever:
		return false, nil
	case ColorAuto, "":
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false, nil
		}
		if f == nil {
			return false, nil
		}
		fd := f.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), nil
	default:
		return false, fmt.Errorf("unsupported color mode %q: expected %s, %s or %s", mode, ColorAuto, ColorAlways, ColorNever)
	}
}
