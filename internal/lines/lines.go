// Package lines turns a raw output stream of a process into prefixed lines.
//
// A Multiplexer is an io.Writer. Chunks may split lines (and multi-byte
// characters) at arbitrary positions, so bytes are kept raw until a newline
// arrives, and only complete lines are decoded. Invalid UTF-8 is replaced by
// U+FFFD instead of failing the stream.
//
// Invariants:
//   - the buffer holds at most one partial line
//   - lines are emitted in the order their bytes were written
//   - every emitted line is a single Sink.WriteLine call
package lines

import (
	"bytes"
	"strings"
	"sync"

	"github.com/CZERTAINLY/app-compose/internal/color"
)

// Sink receives fully rendered lines, without the trailing newline.
type Sink interface {
	WriteLine(line string) error
}

// Multiplexer splits the output of one service into lines and renders each
// with the colored service name to a Sink shared by all services. It is safe
// for concurrent use.
type Multiplexer struct {
	mx      sync.Mutex
	prefix  string
	color   color.Color
	sink    Sink
	buf     []byte
	emitted int
}

// New returns a multiplexer rendering lines of the named service in color c.
func New(name string, c color.Color, sink Sink) *Multiplexer {
	return &Multiplexer{
		prefix: c.Paint(name, true) + ": ",
		color:  c,
		sink:   sink,
	}
}

// Render formats one line of a service the way the Multiplexer emits it.
func Render(name string, c color.Color, line string) string {
	return c.Paint(name, true) + ": " + c.Paint(line, false)
}

// Write consumes one chunk of output.
func (m *Multiplexer) Write(p []byte) (int, error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			m.buf = append(m.buf, p...)
			break
		}

		line := p[:i]
		if len(m.buf) > 0 {
			m.buf = append(m.buf, line...)
			line = m.buf
		}
		err := m.emit(line)
		m.buf = m.buf[:0]
		p = p[i+1:]
		if err != nil {
			return n - len(p), err
		}
	}
	return n, nil
}

// Flush emits the pending partial line, if any. It is called once the stream
// ended, so output without a final newline is not lost.
func (m *Multiplexer) Flush() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if len(m.buf) == 0 {
		return nil
	}
	err := m.emit(m.buf)
	m.buf = m.buf[:0]
	return err
}

// Pending returns a copy of the buffered partial line.
func (m *Multiplexer) Pending() []byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	return bytes.Clone(m.buf)
}

// Emitted returns how many lines were sent to the sink.
func (m *Multiplexer) Emitted() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.emitted
}

func (m *Multiplexer) emit(line []byte) error {
	text := strings.ToValidUTF8(string(line), "�")
	m.emitted++
	return m.sink.WriteLine(m.prefix + m.color.Paint(text, false))
}
