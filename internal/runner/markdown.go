// Package runner is the Turn Runner & Stream Renderer (C5): it drives one
// turn of internal/chat.Session to completion, buffers streamed text into
// renderable blocks (plain-line or Markdown), and maps cancellation and
// terminal errors to the process's exit codes.
package runner

import "strings"

// defaultLatencyChars is the spec §4.5 "~1200 characters" latency guard
// threshold: past this buffered size, a trailing-newline buffer is flushed
// even without a paragraph boundary, so a very long unbroken response
// doesn't stall the display.
const defaultLatencyChars = 1200

// MarkdownBuffer is a streaming Markdown block detector, ported in
// behavior from the Python original's runner.MarkdownBuffer (no Go example
// in the retrieved pack implements an equivalent algorithm): it holds back
// a fenced code block until its closing fence arrives, flushes at blank-line
// paragraph boundaries otherwise, and never splits an open fence. Per
// spec §9's open question, a fence-opener line encountered while already
// inside an open fence is not specially handled (no nesting depth) —
// exactly the source's behavior.
type MarkdownBuffer struct {
	buf          string
	inFence      bool
	fenceMarker  string
	latencyChars int
}

// NewMarkdownBuffer constructs a MarkdownBuffer with the spec's default
// latency guard threshold.
func NewMarkdownBuffer() *MarkdownBuffer {
	return &MarkdownBuffer{latencyChars: defaultLatencyChars}
}

func isFenceLine(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	switch {
	case strings.HasPrefix(trimmed, "```"):
		return "```"
	case strings.HasPrefix(trimmed, "~~~"):
		return "~~~"
	default:
		return ""
	}
}

// Push appends chunk and returns zero or more complete blocks ready to
// render, in the order they become available.
func (m *MarkdownBuffer) Push(chunk string) []string {
	var out []string
	m.buf += chunk

	for {
		if !m.inFence {
			idx := strings.Index(m.buf, "\n\n")
			nearestFence := nearestIndex(m.buf, "```", "~~~")

			if idx != -1 && (nearestFence == -1 || idx < nearestFence) {
				out = append(out, m.buf[:idx+2])
				m.buf = m.buf[idx+2:]
				continue
			}

			opened := false
			for off := 0; !opened; {
				nextNL := strings.Index(m.buf[off:], "\n")
				if nextNL == -1 {
					break
				}
				line := m.buf[off : off+nextNL+1]
				if mark := isFenceLine(line); mark != "" {
					if off > 0 {
						out = append(out, m.buf[:off])
						m.buf = m.buf[off:]
					}
					m.inFence = true
					m.fenceMarker = mark
					opened = true
				}
				off += nextNL + 1
			}
			if opened {
				continue
			}
			break
		}

		// Inside a fence: hold everything until a closing fence line
		// (a line starting with the same marker, not the opening line).
		closeIdx := strings.Index(m.buf, "\n"+m.fenceMarker)
		startsWithMarker := strings.HasPrefix(m.buf, m.fenceMarker)
		if closeIdx == -1 && !startsWithMarker {
			break
		}

		lines := splitLinesKeepEnds(m.buf)
		closed := false
		var acc strings.Builder
		for i, line := range lines {
			acc.WriteString(line)
			if i != 0 && strings.HasPrefix(strings.TrimLeft(line, " \t"), m.fenceMarker) {
				out = append(out, acc.String())
				m.buf = strings.Join(lines[i+1:], "")
				m.inFence = false
				m.fenceMarker = ""
				closed = true
				break
			}
		}
		if !closed {
			break
		}
	}

	if !m.inFence && len(m.buf) >= m.latencyChars && strings.HasSuffix(m.buf, "\n") {
		if lastPar := strings.LastIndex(m.buf, "\n\n"); lastPar != -1 {
			out = append(out, m.buf[:lastPar+2])
			m.buf = m.buf[lastPar+2:]
		} else {
			out = append(out, m.buf)
			m.buf = ""
		}
	}

	return out
}

// Flush returns any remaining non-blank buffered content and clears state;
// used at stream end to emit a trailing partial block.
func (m *MarkdownBuffer) Flush() (string, bool) {
	if strings.TrimSpace(m.buf) == "" {
		return "", false
	}
	data := m.buf
	m.buf = ""
	m.inFence = false
	m.fenceMarker = ""
	return data, true
}

func nearestIndex(s string, needles ...string) int {
	nearest := -1
	for _, n := range needles {
		if idx := strings.Index(s, n); idx != -1 && (nearest == -1 || idx < nearest) {
			nearest = idx
		}
	}
	return nearest
}

func splitLinesKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
