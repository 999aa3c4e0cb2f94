package frame

import (
	"github.com/mattn/go-runewidth"

	"github.com/odvcencio/dnetui/pkg/ui/backend"
)

// Region is the part of a frame a single window may draw into. Coordinates
// are relative to the region origin and every write is clipped to it, so a
// window can never paint over its neighbours.
type Region struct {
	buf    *Buffer
	bounds Rect
}

// EmptyRegion returns a region that discards all writes.
func EmptyRegion() *Region {
	return &Region{buf: &Buffer{}}
}

// Bounds returns the region's rect in frame coordinates.
func (r *Region) Bounds() Rect {
	return r.bounds
}

// Width returns the region width.
func (r *Region) Width() int { return r.bounds.Width }

// Height returns the region height.
func (r *Region) Height() int { return r.bounds.Height }

// Empty reports whether the region has no drawable area.
func (r *Region) Empty() bool { return r.bounds.Empty() }

// Set writes a rune at (x, y) relative to the region.
func (r *Region) Set(x, y int, ch rune, s backend.Style) {
	if x < 0 || x >= r.bounds.Width || y < 0 || y >= r.bounds.Height {
		return
	}
	r.buf.Set(r.bounds.X+x, r.bounds.Y+y, ch, s)
}

// Text writes s at (x, y), clipped to the region's right edge, and returns
// the number of columns used.
func (r *Region) Text(x, y int, s string, style backend.Style) int {
	if y < 0 || y >= r.bounds.Height || x >= r.bounds.Width {
		return 0
	}
	if x < 0 {
		s = runewidth.TruncateLeft(s, -x, "")
		x = 0
	}
	start := r.bounds.X + x
	end := r.buf.writeString(start, r.bounds.Y+y, r.bounds.X+r.bounds.Width, s, style)
	return end - start
}

// Line writes s on row y truncated with an ellipsis to fit, then pads the
// rest of the row with spaces in the same style.
func (r *Region) Line(y int, s string, style backend.Style) {
	if y < 0 || y >= r.bounds.Height {
		return
	}
	s = runewidth.Truncate(s, r.bounds.Width, "…")
	n := r.Text(0, y, s, style)
	for x := n; x < r.bounds.Width; x++ {
		r.Set(x, y, ' ', style)
	}
}

// Centered writes s centered on row y.
func (r *Region) Centered(y int, s string, style backend.Style) {
	s = runewidth.Truncate(s, r.bounds.Width, "…")
	x := (r.bounds.Width - runewidth.StringWidth(s)) / 2
	r.Text(x, y, s, style)
}

// Fill paints the whole region.
func (r *Region) Fill(ch rune, s backend.Style) {
	r.buf.Fill(r.bounds, ch, s)
}

// Sub returns a nested region; rect is relative to this region.
func (r *Region) Sub(rect Rect) *Region {
	abs := Rect{X: r.bounds.X + rect.X, Y: r.bounds.Y + rect.Y, Width: rect.Width, Height: rect.Height}
	return &Region{buf: r.buf, bounds: abs.Intersection(r.bounds)}
}

// Box draws a rounded border with an optional title and returns the inner
// region.
func (r *Region) Box(title string, border, titleStyle backend.Style) *Region {
	w, h := r.bounds.Width, r.bounds.Height
	if w < 2 || h < 2 {
		return r.Sub(Rect{})
	}
	r.Set(0, 0, '╭', border)
	r.Set(w-1, 0, '╮', border)
	r.Set(0, h-1, '╰', border)
	r.Set(w-1, h-1, '╯', border)
	for x := 1; x < w-1; x++ {
		r.Set(x, 0, '─', border)
		r.Set(x, h-1, '─', border)
	}
	for y := 1; y < h-1; y++ {
		r.Set(0, y, '│', border)
		r.Set(w-1, y, '│', border)
	}
	if title != "" && w > 4 {
		r.Sub(Rect{X: 1, Width: w - 2, Height: 1}).Text(1, 0, " "+title+" ", titleStyle)
	}
	return r.Sub(Rect{X: 1, Y: 1, Width: w - 2, Height: h - 2})
}
