package windows

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/odvcencio/dnetui/pkg/ui/backend"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
)

const slideStep = 500 * time.Millisecond

// chrome draws a centered title on the first row and a footer on the last
// and returns the rows between them.
func chrome(r *frame.Region, th *theme.Theme, title, footer string) *frame.Region {
	if r.Empty() {
		return r
	}
	r.Centered(0, title, th.Title)
	if r.Height() < 3 {
		return r.Sub(frame.Rect{})
	}
	r.Centered(r.Height()-1, footer, th.Muted)
	return r.Sub(frame.Rect{Y: 2, Width: r.Width(), Height: r.Height() - 3})
}

type line struct {
	text  string
	style backend.Style
}

// paragraph writes centered lines from row y and returns the next row.
func paragraph(r *frame.Region, y int, lines ...line) int {
	for _, l := range lines {
		r.Centered(y, l.text, l.style)
		y++
	}
	return y
}

// SlidingText scrolls s through a window of width columns, one step every
// 500ms of elapsed time. Text that fits is returned unchanged. A blank
// separates the end of s from its start.
func SlidingText(s string, width int, elapsed time.Duration) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	offset := int(elapsed/slideStep) % len(runes)
	out := make([]rune, width)
	for i := range out {
		idx := (offset + i) % (len(runes) + 1)
		if idx == len(runes) {
			out[i] = ' '
		} else {
			out[i] = runes[idx]
		}
	}
	return runewidth.Truncate(string(out), width, "")
}

// FormatLayers renders per-round layer lists as "[0..11, 12..23]".
func FormatLayers(rounds [][]int) string {
	parts := make([]string, 0, len(rounds))
	for _, r := range rounds {
		switch len(r) {
		case 0:
			parts = append(parts, "[]")
		case 1:
			parts = append(parts, fmt.Sprint(r[0]))
		default:
			parts = append(parts, fmt.Sprintf("%d..%d", r[0], r[len(r)-1]))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// pad right-pads s with spaces to width columns.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// wrapText breaks s into rows of at most width columns at spaces. Words
// wider than a row are split. Newlines in s start new rows.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return nil
	}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		cur := ""
		for _, word := range strings.Fields(para) {
			for runewidth.StringWidth(word) > width {
				if cur != "" {
					out = append(out, cur)
					cur = ""
				}
				head := runewidth.Truncate(word, width, "")
				if head == "" {
					head = string([]rune(word)[0])
				}
				out = append(out, head)
				word = word[len(head):]
			}
			switch {
			case word == "":
			case cur == "":
				cur = word
			case runewidth.StringWidth(cur)+1+runewidth.StringWidth(word) <= width:
				cur += " " + word
			default:
				out = append(out, cur)
				cur = word
			}
		}
		out = append(out, cur)
	}
	return out
}
