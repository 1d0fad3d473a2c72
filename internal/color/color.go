// Package color provides the ANSI palette used to tell services apart on
// the console.
package color

import (
	"strconv"
	"sync"
)

const escape = "\033["

// Color is one of the eight base ANSI foreground colors. The zero Color
// paints nothing and returns the content unchanged.
type Color struct {
	Name string
	Code int
}

// Normal returns the escape sequence selecting the color.
func (c Color) Normal() string {
	if c.Code == 0 {
		return ""
	}
	return escape + strconv.Itoa(c.Code) + "m"
}

// Intense returns the escape sequence selecting the bold variant of the color.
func (c Color) Intense() string {
	if c.Code == 0 {
		return ""
	}
	return escape + strconv.Itoa(c.Code) + ";1m"
}

// Reset returns the escape sequence restoring default attributes.
func (c Color) Reset() string {
	if c.Code == 0 {
		return ""
	}
	return escape + "0m"
}

// Paint wraps content in the color and a reset.
func (c Color) Paint(content string, intense bool) string {
	if c.Code == 0 {
		return content
	}
	start := c.Normal()
	if intense {
		start = c.Intense()
	}
	return start + content + c.Reset()
}

func (c Color) String() string {
	if c.Code == 0 {
		return "none"
	}
	return c.Name
}

// Base palette, codes 30..37.
var (
	Grey    = Color{Name: "grey", Code: 30}
	Red     = Color{Name: "red", Code: 31}
	Green   = Color{Name: "green", Code: 32}
	Yellow  = Color{Name: "yellow", Code: 33}
	Blue    = Color{Name: "blue", Code: 34}
	Magenta = Color{Name: "magenta", Code: 35}
	Cyan    = Color{Name: "cyan", Code: 36}
	White   = Color{Name: "white", Code: 37}
)

// Palette returns all eight base colors ordered by code.
func Palette() []Color {
	return []Color{Grey, Red, Green, Yellow, Blue, Magenta, Cyan, White}
}

// nice is the subset used for services. Neighbours differ enough to be read
// apart on both dark and light terminals.
var nice = [...]Color{Cyan, Yellow, Green, Magenta, Red, Blue}

// NiceSize is the number of colors handed out before the cycle repeats.
const NiceSize = len(nice)

// At returns the color for the i-th declared service.
func At(i int) Color {
	return nice[uint(i)%uint(NiceSize)]
}

// Assigner hands out colors in round-robin order. Callers must draw colors in
// declaration order, before the services start, so the mapping never depends
// on scheduling.
type Assigner struct {
	mx       sync.Mutex
	next     int
	disabled bool
}

func NewAssigner() *Assigner {
	return &Assigner{}
}

// NewPlainAssigner returns an assigner which always yields the zero Color.
// It still advances its counter, like NewAssigner does.
func NewPlainAssigner() *Assigner {
	return &Assigner{disabled: true}
}

// Next returns the color for the next service.
func (a *Assigner) Next() Color {
	a.mx.Lock()
	defer a.mx.Unlock()
	i := a.next
	a.next++
	if a.disabled {
		return Color{}
	}
	return At(i)
}

// Skip advances the counter without returning a color. Used when a service is
// declared but not selected, so the remaining ones keep their colors.
func (a *Assigner) Skip() {
	a.mx.Lock()
	a.next++
	a.mx.Unlock()
}
