package runner

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/fenrig-labs/gptshell/internal/chat"
	"github.com/fenrig-labs/gptshell/internal/ui"
)

// Exit codes, spec §4.5 "Cancellation": Ctrl-C in one-shot mode, an
// unhandled deadline, approval-denied-when-required, and any other fatal
// error each map to a distinct process exit code.
const (
	ExitOK                 = 0
	ExitConfigError        = 2
	ExitToolApprovalDenied = 4
	ExitTimeout            = 124
	ExitInterrupt          = 130
	ExitOther              = 1
)

// OutputFormat selects the C5 rendering mode.
type OutputFormat int

const (
	FormatMarkdown OutputFormat = iota
	FormatText
)

// Renderer turns a Session's streamed text into printed blocks. A
// MarkdownRenderer holds back fenced code and paragraph-incomplete text; a
// TextRenderer prints only complete lines so a mid-line restart of the
// terminal cursor never garbles output (spec §4.5).
type Renderer interface {
	Push(text string)
	Flush()
}

// MarkdownRenderer renders via a MarkdownBuffer, printing each emitted block
// through glamour-rendered output supplied by render.
type MarkdownRenderer struct {
	buf    *MarkdownBuffer
	out    io.Writer
	render func(string) string
	io     func(func())
}

// NewMarkdownRenderer constructs a MarkdownRenderer. render formats one
// complete Markdown block for the terminal (typically glamour.Render); pass
// nil to print blocks verbatim. ioRegion, if non-nil, wraps each print in
// the shared terminal I/O region (ui.Reporter.IO) so a concurrent spinner
// redraw cannot interleave with it.
func NewMarkdownRenderer(out io.Writer, render func(string) string, ioRegion func(func())) *MarkdownRenderer {
	if render == nil {
		render = func(s string) string { return s }
	}
	if ioRegion == nil {
		ioRegion = func(fn func()) { fn() }
	}
	return &MarkdownRenderer{buf: NewMarkdownBuffer(), out: out, render: render, io: ioRegion}
}

func (r *MarkdownRenderer) Push(text string) {
	if text == "" {
		return
	}
	for _, block := range r.buf.Push(text) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		r.io(func() { io.WriteString(r.out, r.render(block)) })
	}
}

func (r *MarkdownRenderer) Flush() {
	tail, ok := r.buf.Flush()
	if !ok {
		return
	}
	r.io(func() { io.WriteString(r.out, r.render(tail)) })
}

// TextRenderer prints only complete lines, buffering a trailing partial
// line until either a newline or Flush arrives.
type TextRenderer struct {
	out io.Writer
	io  func(func())
	buf string
}

func NewTextRenderer(out io.Writer, ioRegion func(func())) *TextRenderer {
	if ioRegion == nil {
		ioRegion = func(fn func()) { fn() }
	}
	return &TextRenderer{out: out, io: ioRegion}
}

func (r *TextRenderer) Push(text string) {
	r.buf += text
	for {
		idx := strings.IndexByte(r.buf, '\n')
		if idx == -1 {
			break
		}
		line := r.buf[:idx]
		r.buf = r.buf[idx+1:]
		r.io(func() { io.WriteString(r.out, line+"\n") })
	}
}

func (r *TextRenderer) Flush() {
	if r.buf == "" {
		return
	}
	line := r.buf
	r.buf = ""
	r.io(func() { io.WriteString(r.out, line) })
}

// NewRenderer picks the renderer named by format.
func NewRenderer(format OutputFormat, out io.Writer, render func(string) string, ioRegion func(func())) Renderer {
	if format == FormatText {
		return NewTextRenderer(out, ioRegion)
	}
	return NewMarkdownRenderer(out, render, ioRegion)
}

// Request bundles a single run_turn invocation (spec §4.5, grounded on the
// Python original's run_turn/RunRequest).
type Request struct {
	Session      *chat.Session
	Input        chat.TurnInput
	Format       OutputFormat
	Render       func(string) string // glamour.Render or similar; nil prints verbatim
	Reporter     ui.Reporter         // nil treated as ui.NoOpReporter{}
	Out          io.Writer
	ExitOnSecond bool // not read by Run; Ctrl-C handling lives in the caller's ctx (InterruptController or signal.NotifyContext)
}

// Result is what the caller needs after a turn finishes or is cancelled.
type Result struct {
	Text     string
	ExitCode int
	Err      error
}

// Run drives one turn to completion, streaming rendered output to req.Out,
// and maps the outcome to a process exit code per spec §4.5. It does not
// call os.Exit; the caller (cmd/) decides whether and when to exit.
//
// Cancellation: ctx is expected to carry the REPL's or CLI's interrupt
// wiring (see NewInterruptController). When ctx is cancelled mid-turn, Run
// returns promptly with ExitInterrupt; any Ctrl-C counting is the caller's
// own — Run itself does not distinguish "first" from "second" Ctrl-C, it
// only reacts to ctx.Done().
func Run(ctx context.Context, req Request) Result {
	reporter := req.Reporter
	if reporter == nil {
		reporter = ui.NoOpReporter{}
	}
	renderer := NewRenderer(req.Format, req.Out, req.Render, reporter.IO)

	res, err := req.Session.RunTurn(ctx, req.Input, func(text string) {
		renderer.Push(text)
	})
	renderer.Flush()

	if err != nil {
		return Result{ExitCode: exitCodeFor(err), Err: err}
	}
	return Result{Text: res.Text, ExitCode: ExitOK}
}

// exitCodeFor maps a RunTurn error to the spec §4.5 exit-code table.
func exitCodeFor(err error) int {
	var denied chat.ErrToolApprovalDenied
	switch {
	case errors.As(err, &denied):
		return ExitToolApprovalDenied
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, context.Canceled):
		return ExitInterrupt
	default:
		return ExitOther
	}
}

// InterruptController turns repeated Ctrl-C presses into the spec's
// "cancel the current turn, a second press within 1.5 s exits" behavior: the
// first Signal cancels the context returned for the in-flight turn; a
// second Signal arriving within the window cancels Done, which the caller
// (cmd/'s REPL loop) treats as "exit the process".
//
// Grounded on the teacher's escListenerModel/listenForESC pattern
// (internal/agent/agent.go), adapted from a single-press bubbletea ESC
// listener to a plain os/signal double-press counter, since the spec's
// cancellation model is per-turn rather than per-keystroke and the CLI
// entry point (cmd/) is better positioned to own signal.Notify than a
// bubbletea program nested inside one turn.
type InterruptController struct {
	window time.Duration
	lastAt time.Time
	cancel context.CancelFunc
	Done   chan struct{}
}

// NewInterruptController constructs a controller with the spec's 1.5 s
// double-press window.
func NewInterruptController() *InterruptController {
	return &InterruptController{window: 1500 * time.Millisecond, Done: make(chan struct{})}
}

// Begin returns a context for one turn; cancel is called by Signal on the
// first press during this turn. Call the returned stop func when the turn
// completes (success or error) so a later press is treated as the start of
// a new turn's first press.
func (c *InterruptController) Begin(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return ctx, func() { c.cancel = nil; cancel() }
}

// Signal is called on each Ctrl-C. The first press during an in-flight turn
// cancels that turn's context; a second press within the window closes
// Done, signaling the caller to exit the process. Outside any in-flight
// turn (c.cancel nil, e.g. at the REPL prompt), Signal closes Done
// immediately.
func (c *InterruptController) Signal() {
	now := time.Now()
	withinWindow := !c.lastAt.IsZero() && now.Sub(c.lastAt) <= c.window
	c.lastAt = now

	if c.cancel == nil {
		closeOnce(c.Done)
		return
	}
	if withinWindow {
		closeOnce(c.Done)
		return
	}
	c.cancel()
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
