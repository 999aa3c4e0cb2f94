package frame

// Rect is a positioned rectangle in frame coordinates.
type Rect struct {
	X, Y, Width, Height int
}

// NewRect creates a rect from position and size.
func NewRect(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, Width: max(0, w), Height: max(0, h)}
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains returns true if the point is inside the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Intersection returns the overlapping area of two rects.
func (r Rect) Intersection(other Rect) Rect {
	x := max(r.X, other.X)
	y := max(r.Y, other.Y)
	x2 := min(r.X+r.Width, other.X+other.Width)
	y2 := min(r.Y+r.Height, other.Y+other.Height)
	if x2 <= x || y2 <= y {
		return Rect{}
	}
	return Rect{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}

// Inset returns a rect shrunk by the given amounts.
func (r Rect) Inset(top, right, bottom, left int) Rect {
	return Rect{
		X:      r.X + left,
		Y:      r.Y + top,
		Width:  max(0, r.Width-left-right),
		Height: max(0, r.Height-top-bottom),
	}
}

// SplitLeft cuts a column of width w off the left edge.
func (r Rect) SplitLeft(w int) (left, rest Rect) {
	w = clamp(w, 0, r.Width)
	left = Rect{X: r.X, Y: r.Y, Width: w, Height: r.Height}
	rest = Rect{X: r.X + w, Y: r.Y, Width: r.Width - w, Height: r.Height}
	return left, rest
}

// SplitBottom cuts h rows off the bottom edge.
func (r Rect) SplitBottom(h int) (rest, bottom Rect) {
	h = clamp(h, 0, r.Height)
	rest = Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height - h}
	bottom = Rect{X: r.X, Y: r.Y + r.Height - h, Width: r.Width, Height: h}
	return rest, bottom
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
