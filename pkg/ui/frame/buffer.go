// Package frame holds the composite render target: one cell buffer per cycle
// that every window draws into through a clipped Region before the scheduler
// presents it.
package frame

import (
	"github.com/mattn/go-runewidth"

	"github.com/odvcencio/dnetui/pkg/ui/backend"
)

// Cell represents a single character cell in the buffer. A zero Rune marks
// the trailing half of a wide character.
type Cell struct {
	Rune  rune
	Style backend.Style
}

// Buffer is a 2D grid of cells. It implements backend.Surface.
type Buffer struct {
	cells  []Cell
	width  int
	height int
}

// NewBuffer creates a cleared buffer with the given dimensions.
func NewBuffer(w, h int) *Buffer {
	b := &Buffer{}
	b.Resize(w, h)
	return b
}

// Size returns the buffer dimensions.
func (b *Buffer) Size() (w, h int) {
	return b.width, b.height
}

// Bounds returns the whole buffer as a rect.
func (b *Buffer) Bounds() Rect {
	return Rect{Width: b.width, Height: b.height}
}

// Resize changes the dimensions and clears the content.
func (b *Buffer) Resize(w, h int) {
	w, h = max(0, w), max(0, h)
	if w != b.width || h != b.height {
		b.cells = make([]Cell, w*h)
		b.width = w
		b.height = h
	}
	b.Clear()
}

// Clear fills the buffer with spaces in the default style.
func (b *Buffer) Clear() {
	blank := Cell{Rune: ' ', Style: backend.DefaultStyle()}
	for i := range b.cells {
		b.cells[i] = blank
	}
}

// Cell returns the rune and style at (x, y). Out-of-bounds reads return a
// blank cell.
func (b *Buffer) Cell(x, y int) (rune, backend.Style) {
	c := b.Get(x, y)
	return c.Rune, c.Style
}

// Get returns the cell at position (x, y).
func (b *Buffer) Get(x, y int) Cell {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return Cell{Rune: ' ', Style: backend.DefaultStyle()}
	}
	return b.cells[y*b.width+x]
}

// Set writes a rune with style at position (x, y). No-op if out of bounds.
func (b *Buffer) Set(x, y int, r rune, s backend.Style) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return
	}
	b.cells[y*b.width+x] = Cell{Rune: r, Style: s}
}

// Fill fills a rectangular area with a rune and style.
func (b *Buffer) Fill(r Rect, ch rune, s backend.Style) {
	r = r.Intersection(b.Bounds())
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			b.cells[y*b.width+x] = Cell{Rune: ch, Style: s}
		}
	}
}

// Region returns a drawing surface clipped to r.
func (b *Buffer) Region(r Rect) *Region {
	return &Region{buf: b, bounds: r.Intersection(b.Bounds())}
}

// Line returns row y as a string, skipping wide-character continuations.
func (b *Buffer) Line(y int) string {
	if y < 0 || y >= b.height {
		return ""
	}
	out := make([]rune, 0, b.width)
	for x := 0; x < b.width; x++ {
		if r := b.cells[y*b.width+x].Rune; r != 0 {
			out = append(out, r)
		}
	}
	return string(out)
}

// writeString writes s at (x, y) without exceeding limit (exclusive column).
// Wide characters that would straddle the limit are replaced by a space.
// It returns the column after the last cell written.
func (b *Buffer) writeString(x, y, limit int, s string, style backend.Style) int {
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > limit {
			if x < limit {
				b.Set(x, y, ' ', style)
				x++
			}
			break
		}
		b.Set(x, y, r, style)
		if w == 2 {
			b.Set(x+1, y, 0, style)
		}
		x += w
	}
	return x
}

var _ backend.Surface = (*Buffer)(nil)
