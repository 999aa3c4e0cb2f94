package windows

import (
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

// Banner is the home screen artwork.
var Banner = []string{
	"      00000    000000                                                        ",
	"   000    000000000000000   0000000000000000      000000000000          00000",
	" 000       000000   000000000   00000    00000 000    00000            000000",
	"00        00000     000000     00000    00000000     00000           00000000",
	"00       00000     0000000    00000    00000000     00000           00 000000",
	"00      00000     0000000    0000000000000  000    00000          00  0000000",
	" 000   00000     0000000    00000   000000  00    000000        000   000000 ",
	"      00000      00000     00000    00000   00   00000000      00    0000000 ",
	"     00000     000000     000000   000000    00 000000  0000000000000 00000  ",
	"    00000    0000000     00000     00000 0     000000      000        00000  ",
	" 0000000   00000       0000000    00000000  000000000    000        0000000  ",
}

const viewBanner view.View = "banner"

type aboutState struct {
	model   string
	healthy bool
}

type aboutWindow struct {
	deps Deps
}

func (w *aboutWindow) Init() aboutState { return aboutState{} }

func (w *aboutWindow) Views() view.Table { return view.Single(viewBanner) }

func (w *aboutWindow) Tick(ctx *window.Context, s aboutState) (aboutState, error) {
	h := w.deps.Watcher.Health.Load()
	s.healthy = h.Valid && h.Err == nil && h.Value
	s.model = w.deps.Watcher.Topology.Load().Value.ModelName()
	return s, nil
}

func (w *aboutWindow) Handle(ctx *window.Context, s aboutState, ev terminal.Event) (aboutState, window.Request, error) {
	if isInterrupt(ev) {
		return s, window.Quit(), nil
	}
	return s, window.FocusTo(Menu), nil
}

func (w *aboutWindow) Draw(s aboutState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	y := max(0, (r.Height()-len(Banner)-6)/2)
	for _, row := range Banner {
		r.Centered(y, row, th.Accent)
		y++
	}
	y++
	r.Centered(y, "dnet "+w.deps.Version, th.Title)
	y += 2

	api := "API: " + w.deps.Config.APIURL()
	if s.healthy {
		r.Centered(y, api+"  online", th.Success)
	} else {
		r.Centered(y, api+"  offline", th.Error)
	}
	y++
	if s.model != "" {
		r.Centered(y, "Model: "+s.model, th.Text)
	} else {
		r.Centered(y, "No model loaded", th.Muted)
	}
	y++
	r.Centered(y, "Config: "+w.deps.Config.Location(), th.Muted)
}
