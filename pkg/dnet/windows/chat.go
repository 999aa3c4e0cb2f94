package windows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/odvcencio/dnetui/pkg/dnet/api"
	"github.com/odvcencio/dnetui/pkg/dnet/watch"
	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/ui/frame"
	"github.com/odvcencio/dnetui/pkg/ui/terminal"
	"github.com/odvcencio/dnetui/pkg/ui/theme"
	"github.com/odvcencio/dnetui/pkg/ui/view"
	"github.com/odvcencio/dnetui/pkg/ui/window"
)

const (
	viewIdle       view.View = "idle"
	viewGenerating view.View = "generating"

	triggerSend view.Trigger = "send"
	triggerStop view.Trigger = "stop"
)

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"

	maxTokensStep = 500
	maxTokensMin  = 100
	maxTokensMax  = 10000

	// scrollWidth bounds scrolling before the real width is known.
	scrollWidth = 60
	endThinking = "---end thinking---"
)

type chatMessage struct {
	role    string
	content string
	at      time.Time
}

type chatState struct {
	messages  []chatMessage
	input     []rune
	cursor    int
	response  string
	scroll    int
	maxTokens int
	model     string
	err       string
	spinner   string
	now       time.Time
}

// chatWindow streams completions from the loaded model. A reply keeps
// streaming after focus moves away and is committed when it finishes.
type chatWindow struct {
	deps   Deps
	stream watch.Stream
}

func (w *chatWindow) Init() chatState {
	return chatState{
		messages:  []chatMessage{{role: roleSystem, content: "Welcome to dnet chat! Type a message and press Enter to send."}},
		maxTokens: w.deps.Config.Chat.MaxTokens,
	}
}

func (w *chatWindow) Views() view.Table {
	return view.Table{
		Views:   []view.View{viewIdle, viewGenerating, viewFailed},
		Initial: viewIdle,
		Edges: map[view.Edge]view.View{
			{From: viewIdle, Trigger: triggerSend}:       viewGenerating,
			{From: viewGenerating, Trigger: triggerDone}: viewIdle,
			{From: viewGenerating, Trigger: triggerStop}: viewIdle,
			{From: viewGenerating, Trigger: triggerFail}: viewFailed,
			{From: viewFailed, Trigger: triggerSend}:     viewGenerating,
			{From: viewFailed, Trigger: triggerBack}:     viewIdle,
		},
	}
}

func (w *chatWindow) Tick(ctx *window.Context, s chatState) (chatState, error) {
	s.spinner = theme.SpinnerFrame(ctx.TickCount())
	s.now = ctx.Now()
	s.model = w.deps.Watcher.Topology.Load().Value.ModelName()
	if ctx.View() != viewGenerating {
		return s, nil
	}

	s.response = w.stream.Text()
	r, ok := w.stream.Take()
	if !ok {
		return s, nil
	}
	s.commit(r.Value, ctx.Now())
	if r.Err != nil {
		s.err = "Error: " + errors.UserMessage(r.Err)
		_ = ctx.Fire(triggerFail)
		return s, nil
	}
	_ = ctx.Fire(triggerDone)
	return s, nil
}

// commit adds a finished reply to the conversation.
func (s *chatState) commit(text string, at time.Time) {
	s.response = ""
	if text = strings.TrimSpace(CleanModelText(text)); text != "" {
		s.messages = append(s.messages, chatMessage{role: roleAssistant, content: text, at: at})
	}
}

func (w *chatWindow) Handle(ctx *window.Context, s chatState, ev terminal.Event) (chatState, window.Request, error) {
	if p, ok := ev.(terminal.PasteEvent); ok {
		s.insert(strings.ReplaceAll(p.Text, "\n", " "))
		return s, window.None(), nil
	}
	k, ok := keyOf(ev)
	if !ok {
		return s, window.None(), nil
	}

	switch {
	case k.IsInterrupt():
		return s, window.Quit(), nil
	case k.Is(terminal.KeyEscape):
		if ctx.View() == viewFailed {
			s.err = ""
			if err := ctx.Fire(triggerBack); err != nil {
				return s, window.None(), err
			}
		}
		return s, window.FocusTo(Menu), nil
	case k.Is(terminal.KeyEnter):
		return w.send(ctx, s)
	case k.Is(terminal.KeyCtrlS):
		if ctx.View() != viewGenerating {
			break
		}
		s.commit(w.stream.Stop(), ctx.Now())
		if err := ctx.Fire(triggerStop); err != nil {
			return s, window.None(), err
		}
	case k.Is(terminal.KeyCtrlL):
		return w.clear(ctx, s)
	case k.Is(terminal.KeyCtrlT):
		s.maxTokens = min(s.maxTokens+maxTokensStep, maxTokensMax)
	case k.Is(terminal.KeyCtrlD):
		s.maxTokens = max(s.maxTokens-maxTokensStep, maxTokensMin)
	case k.Is(terminal.KeyUp):
		s.scroll = w.clampScroll(ctx, s, s.scroll+1)
	case k.Is(terminal.KeyDown):
		s.scroll = max(0, s.scroll-1)
	case k.Is(terminal.KeyPageUp):
		s.scroll = w.clampScroll(ctx, s, s.scroll+10)
	case k.Is(terminal.KeyPageDown):
		s.scroll = max(0, s.scroll-10)
	case k.Is(terminal.KeyLeft):
		s.cursor = max(0, s.cursor-1)
	case k.Is(terminal.KeyRight):
		s.cursor = min(len(s.input), s.cursor+1)
	case k.Is(terminal.KeyHome):
		s.cursor = 0
	case k.Is(terminal.KeyEnd):
		s.cursor = len(s.input)
	case k.Is(terminal.KeyBackspace):
		if s.cursor > 0 {
			s.input = append(s.input[:s.cursor-1:s.cursor-1], s.input[s.cursor:]...)
			s.cursor--
		}
	case k.Is(terminal.KeyDelete):
		if s.cursor < len(s.input) {
			s.input = append(s.input[:s.cursor:s.cursor], s.input[s.cursor+1:]...)
		}
	case k.Key == terminal.KeyRune && !k.Ctrl && !k.Alt:
		s.insert(string(k.Rune))
	}
	return s, window.None(), nil
}

func (s *chatState) insert(text string) {
	add := []rune(text)
	out := make([]rune, 0, len(s.input)+len(add))
	out = append(out, s.input[:s.cursor]...)
	out = append(out, add...)
	s.input = append(out, s.input[s.cursor:]...)
	s.cursor += len(add)
}

func (w *chatWindow) send(ctx *window.Context, s chatState) (chatState, window.Request, error) {
	text := strings.TrimSpace(string(s.input))
	if text == "" || ctx.View() == viewGenerating {
		return s, window.None(), nil
	}
	if s.model == "" {
		s.messages = append(s.messages, chatMessage{role: roleSystem, content: "No model loaded. Load a model before chatting."})
		return s, window.None(), nil
	}

	s.messages = append(s.messages, chatMessage{role: roleUser, content: text, at: ctx.Now()})
	s.input, s.cursor, s.scroll, s.err, s.response = nil, 0, 0, "", ""

	req := api.ChatRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: w.deps.Config.Chat.Temperature,
	}
	for _, m := range s.messages {
		if m.role != roleSystem {
			req.Messages = append(req.Messages, api.ChatMessage{Role: m.role, Content: m.content})
		}
	}
	if !w.stream.Start(w.deps.Jobs, func(ctx context.Context, emit func(string)) error {
		return w.deps.Actions.ChatStream(ctx, req, emit)
	}) {
		return s, window.None(), nil
	}
	if err := ctx.Fire(triggerSend); err != nil {
		return s, window.None(), err
	}
	return s, window.None(), nil
}

func (w *chatWindow) clear(ctx *window.Context, s chatState) (chatState, window.Request, error) {
	w.stream.Stop()
	s.messages = []chatMessage{{role: roleSystem, content: "Chat cleared. Start a new conversation!"}}
	s.response, s.scroll, s.err = "", 0, ""
	var trigger view.Trigger
	switch ctx.View() {
	case viewGenerating:
		trigger = triggerStop
	case viewFailed:
		trigger = triggerBack
	default:
		return s, window.None(), nil
	}
	if err := ctx.Fire(trigger); err != nil {
		return s, window.None(), err
	}
	return s, window.None(), nil
}

func (w *chatWindow) clampScroll(ctx *window.Context, s chatState, n int) int {
	return min(n, max(0, len(w.transcript(s, ctx.View(), scrollWidth))-1))
}

func (w *chatWindow) Draw(s chatState, v view.View, r *frame.Region) {
	th := w.deps.Theme
	title := "Chat"
	if s.model != "" {
		title += " - " + s.model
	}
	body := chrome(r, th, title, "Enter send  |  Ctrl-S stop  |  Ctrl-L clear  |  Ctrl-T/Ctrl-D tokens  |  ↑↓ scroll  |  Esc back")
	if body.Height() < 3 {
		return
	}

	h := body.Height() - 2
	lines := w.transcript(s, v, body.Width())
	end := len(lines) - min(s.scroll, max(0, len(lines)-h))
	start := max(0, end-h)
	for i, l := range lines[start:end] {
		body.Line(i, l.text, l.style)
	}

	status := fmt.Sprintf("Max tokens: %d  Temperature: %.2f", s.maxTokens, w.deps.Config.Chat.Temperature)
	if s.scroll > 0 {
		status += "  (scrolled)"
	}
	body.Line(h, status, th.Muted)
	w.drawInput(s, body, h+1)
}

func (w *chatWindow) drawInput(s chatState, r *frame.Region, y int) {
	th := w.deps.Theme
	r.Text(0, y, "> ", th.Accent)
	avail := r.Width() - 3
	if avail <= 0 {
		return
	}
	start := max(0, s.cursor-avail)
	end := min(len(s.input), start+avail)
	r.Text(2, y, string(s.input[start:end]), th.Input)

	ch := ' '
	if s.cursor < len(s.input) {
		ch = s.input[s.cursor]
	}
	r.Set(2+runewidth.StringWidth(string(s.input[start:s.cursor])), y, ch, th.Input.Reverse(true))
}

// transcript lays out the conversation at width, the reply in progress last.
func (w *chatWindow) transcript(s chatState, v view.View, width int) []line {
	th := w.deps.Theme
	var out []line
	for _, m := range s.messages {
		out = append(out, w.messageLines(m, width)...)
	}
	switch v {
	case viewGenerating:
		reply := w.messageLines(chatMessage{role: roleAssistant, content: CleanModelText(s.response)}, width)
		reply[0].text += " " + s.spinner
		out = append(out, reply...)
	case viewFailed:
		for _, l := range wrapText(s.err, width) {
			out = append(out, line{l, th.Error})
		}
	}
	return out
}

func (w *chatWindow) messageLines(m chatMessage, width int) []line {
	th := w.deps.Theme
	var out []line
	switch m.role {
	case roleSystem:
		for _, l := range wrapText(m.content, width) {
			out = append(out, line{l, th.Info.Italic(true)})
		}
		return append(out, line{"", th.Text})
	case roleUser:
		out = append(out, line{header("You", m.at), th.Heading})
		for _, l := range wrapText(m.content, width) {
			out = append(out, line{l, th.Text})
		}
	default:
		out = append(out, line{header("Assistant", m.at), th.Accent.Bold(true)})
		for _, seg := range splitThink(m.content) {
			style := th.Text
			if seg.thinking {
				style = th.Muted.Dim(true)
			}
			if text := strings.Trim(seg.text, "\n"); text != "" {
				for _, l := range wrapText(text, width) {
					out = append(out, line{l, style})
				}
			}
			if seg.closed {
				out = append(out, line{endThinking, th.Muted})
			}
		}
	}
	return append(out, line{"", th.Text})
}

func header(who string, at time.Time) string {
	if at.IsZero() {
		return who
	}
	return who + " " + at.Format("15:04:05")
}

var modelTokens = strings.NewReplacer(
	"<|im_start|>", "",
	"<|im_end|>", "",
	"<|endoftext|>", "",
	"</s>", "",
	"<s>", "",
	"[INST]", "",
	"[/INST]", "",
	"\uFFFD", "",
)

// CleanModelText removes control tokens some models leak into their output.
func CleanModelText(s string) string {
	return modelTokens.Replace(s)
}

type segment struct {
	text     string
	thinking bool
	closed   bool
}

// splitThink separates <think> blocks from the answer. An unclosed block
// runs to the end of s, which is what a reply in progress looks like.
func splitThink(s string) []segment {
	const open, shut = "<think>", "</think>"
	var out []segment
	for s != "" {
		i := strings.Index(s, open)
		if i < 0 {
			out = append(out, segment{text: s})
			break
		}
		if i > 0 {
			out = append(out, segment{text: s[:i]})
		}
		s = s[i+len(open):]
		j := strings.Index(s, shut)
		if j < 0 {
			out = append(out, segment{text: s, thinking: true})
			break
		}
		out = append(out, segment{text: s[:j], thinking: true, closed: true})
		s = s[j+len(shut):]
	}
	return out
}
