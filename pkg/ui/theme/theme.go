// Package theme provides the visual design system for the dnet terminal UI.
// Warm cream accent over the terminal's own background, cyan selection bars.
package theme

import (
	"github.com/odvcencio/dnetui/pkg/ui/backend"
)

// Theme defines the complete visual language for the TUI.
type Theme struct {
	// Text hierarchy
	Text     backend.Style // Main content
	Muted    backend.Style // Hints, footers, timestamps
	Disabled backend.Style // Unavailable menu items
	Title    backend.Style // Section headers
	Accent   backend.Style // Banner, highlighted values
	Heading  backend.Style // Bold blue labels

	// Semantic colors
	Success backend.Style
	Warning backend.Style
	Error   backend.Style
	Info    backend.Style

	// Device tags
	Manager backend.Style
	Busy    backend.Style

	// UI elements
	Border           backend.Style
	BorderFocus      backend.Style
	Selected         backend.Style
	SelectedDisabled backend.Style
	Input            backend.Style
	StatusBar        backend.Style
	Spinner          backend.Style
}

// DefaultTheme returns the dnet theme.
func DefaultTheme() *Theme {
	base := backend.DefaultStyle()
	cream := backend.ColorRGB(255, 246, 229)

	return &Theme{
		Text:     base,
		Muted:    base.Foreground(backend.ColorGray),
		Disabled: base.Foreground(backend.ColorGray),
		Title:    base.Foreground(cream).Bold(true),
		Accent:   base.Foreground(cream),
		Heading:  base.Foreground(backend.ColorBlue).Bold(true),

		Success: base.Foreground(backend.ColorGreen).Bold(true),
		Warning: base.Foreground(backend.ColorYellow),
		Error:   base.Foreground(backend.ColorRed),
		Info:    base.Foreground(backend.ColorCyan),

		Manager: base.Foreground(backend.ColorYellow).Bold(true),
		Busy:    base.Foreground(backend.ColorRed),

		Border:           base.Foreground(backend.ColorGray),
		BorderFocus:      base.Foreground(cream),
		Selected:         base.Foreground(backend.ColorBlack).Background(backend.ColorCyan).Bold(true),
		SelectedDisabled: base.Foreground(backend.ColorGray).Background(backend.ColorWhite).Bold(true),
		Input:            base.Foreground(backend.ColorYellow).Underline(true),
		StatusBar:        base.Foreground(backend.ColorBlack).Background(cream),
		Spinner:          base.Foreground(backend.ColorCyan),
	}
}

// Symbols provides consistent iconography.
var Symbols = struct {
	Bullet      string
	BulletEmpty string
	Arrow       string
	Check       string
	Cross       string
	Dot         string
	Ellipsis    string

	Spinner      []string
	Progress     string
	ProgressFill string
}{
	Bullet:      "●",
	BulletEmpty: "○",
	Arrow:       "›",
	Check:       "✓",
	Cross:       "✗",
	Dot:         "·",
	Ellipsis:    "…",

	Spinner:      []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	Progress:     "░",
	ProgressFill: "█",
}

// SpinnerFrame returns the spinner glyph for a tick count.
func SpinnerFrame(tick uint64) string {
	return Symbols.Spinner[tick%uint64(len(Symbols.Spinner))]
}

// Layout defines standard spacing and dimensions.
var Layout = struct {
	PaddingSM int

	SidebarWidth int
	StatusHeight int
	FooterHeight int
}{
	PaddingSM: 2,

	SidebarWidth: 22,
	StatusHeight: 1,
	FooterHeight: 1,
}
