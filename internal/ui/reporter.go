// Package ui renders a chat turn to the terminal: a progress reporter for
// in-flight LLM/tool waits and the lipgloss theme and tool block styling.
// The interactive tool-approval prompt lives in internal/approval.
package ui

import (
	"sync"
	"time"
)

// TaskHandle identifies one in-flight progress task.
type TaskHandle int

// Reporter is the ProgressReporter capability named in spec §6: add_task,
// start_debounced_task, complete_task, and a scoped IO region that excludes
// spinner redraws from whatever else writes to the terminal (the approval
// prompt, in particular) while it is held.
type Reporter interface {
	AddTask(label string) TaskHandle
	StartDebouncedTask(label string, delay time.Duration) TaskHandle
	CompleteTask(h TaskHandle, label string)
	// IO runs fn with the terminal's shared "I/O region" held, so a
	// concurrent spinner redraw cannot interleave with it.
	IO(fn func())
}

// NoOpReporter discards all progress events; used wherever a nil reporter
// is passed (chat.New, approval.New, runner.Run) and in tests.
type NoOpReporter struct{}

func (NoOpReporter) AddTask(string) TaskHandle                          { return 0 }
func (NoOpReporter) StartDebouncedTask(string, time.Duration) TaskHandle { return 0 }
func (NoOpReporter) CompleteTask(TaskHandle, string)                    {}
func (NoOpReporter) IO(fn func())                                       { fn() }

var _ Reporter = NoOpReporter{}
var _ Reporter = (*TermReporter)(nil)

// TermReporter is the real terminal reporter: each task label, and each
// non-empty CompleteTask label, is written as its own status line (nothing
// is overwritten), serialized by a mutex that doubles as the shared "I/O region" lock so the approval prompt
// (internal/approval) and the spinner never interleave writes.
type TermReporter struct {
	mu     sync.Mutex
	write  func(string)
	active map[TaskHandle]string
	timers map[TaskHandle]*time.Timer
	next   TaskHandle
}

// NewTermReporter constructs a TermReporter writing status lines via write
// (typically os.Stderr via fmt.Fprintln).
func NewTermReporter(write func(string)) *TermReporter {
	return &TermReporter{
		write:  write,
		active: make(map[TaskHandle]string),
		timers: make(map[TaskHandle]*time.Timer),
	}
}

func (r *TermReporter) AddTask(label string) TaskHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.active[h] = label
	r.write(label)
	return h
}

// StartDebouncedTask only renders the label if it is still running after
// delay, per spec §4.4's "debounced progress line (appearing only if it
// exceeds ~500 ms)" for parallel tool executions. CompleteTask before the
// timer fires suppresses the render entirely.
func (r *TermReporter) StartDebouncedTask(label string, delay time.Duration) TaskHandle {
	r.mu.Lock()
	r.next++
	h := r.next
	r.active[h] = label
	r.timers[h] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if l, stillActive := r.active[h]; stillActive {
			r.write(l)
		}
	})
	r.mu.Unlock()
	return h
}

func (r *TermReporter) CompleteTask(h TaskHandle, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, h)
	if t, ok := r.timers[h]; ok {
		t.Stop()
		delete(r.timers, h)
	}
	if label != "" {
		r.write(label)
	}
}

// IO acquires the same mutex used to serialize task rendering, giving
// callers (the approval prompt) a critical section during which no spinner
// redraw can interleave with their own terminal writes.
func (r *TermReporter) IO(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}
