// Package approval implements the Approval Policy (C3): the static
// auto-allow predicate and the serialized interactive confirmation prompt
// that gates every tool call the orchestrator is about to execute.
package approval

import (
	"context"
	"strings"
	"sync"

	"github.com/fenrig-labs/gptshell/internal/ui"
)

// globalKey is the synthetic server key whose entries apply to every server.
const globalKey = "*"

// AllowMap is the per-server auto-approve configuration: server name ->
// list of tool names or "*", loaded from ServerConfig.AutoApprove.
type AllowMap map[string][]string

func canon(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
}

func containsCanon(list []string, target string) bool {
	for _, s := range list {
		if canon(s) == target {
			return true
		}
	}
	return false
}

func containsWildcard(list []string) bool {
	for _, s := range list {
		if s == globalKey {
			return true
		}
	}
	return false
}

// IsAutoAllowed implements the spec §4.3 predicate: a call is allowed
// without prompting if "*" appears in the server's list or the global list,
// or if the bare or "server__tool" qualified name (case-folded, "-"/"_"
// normalized) appears in either.
func IsAutoAllowed(allow AllowMap, server, tool string) bool {
	serverList := allow[server]
	globalList := allow[globalKey]

	if containsWildcard(serverList) || containsWildcard(globalList) {
		return true
	}

	canonTool := canon(tool)
	canonFull := canon(server + "__" + tool)
	return containsCanon(serverList, canonTool) ||
		containsCanon(globalList, canonTool) ||
		containsCanon(serverList, canonFull) ||
		containsCanon(globalList, canonFull)
}

// Confirmer asks the user whether a not-auto-allowed call may proceed.
// EOF (nothing more to read from the prompt) is treated as deny, per
// spec §4.3.
type Confirmer interface {
	Confirm(ctx context.Context, server, tool string, args map[string]any) bool
}

// Policy is the orchestrator-facing ApprovalPolicy capability (spec §6):
// IsAutoAllowed + Confirm, with interactive confirmations serialized across
// concurrently executing tool calls by a single process-wide lock, and
// coordinated with the terminal's progress reporter so a prompt never
// interleaves with a spinner redraw.
type Policy struct {
	allow    AllowMap
	confirm  Confirmer
	reporter ui.Reporter

	// mu is the process-wide approval lock: only one tool call may be
	// mid-confirmation at a time, so concurrent executions never race for
	// the user's attention (spec §4.3, §5).
	mu sync.Mutex

	// Required marks tool_choice="required" mode: a denial aborts the turn
	// with ErrDenied instead of degrading to a synthetic tool result.
	Required bool
}

// New constructs a Policy. reporter may be ui.NoOpReporter{} for
// non-interactive runs.
func New(allow AllowMap, confirm Confirmer, reporter ui.Reporter) *Policy {
	if reporter == nil {
		reporter = ui.NoOpReporter{}
	}
	return &Policy{allow: allow, confirm: confirm, reporter: reporter}
}

// IsAutoAllowed reports whether (server, tool) is on the static allow-list.
func (p *Policy) IsAutoAllowed(server, tool string) bool {
	return IsAutoAllowed(p.allow, server, tool)
}

// Confirm serializes the interactive prompt across concurrent callers and
// runs it inside the reporter's IO region so it cannot interleave with a
// spinner redraw.
func (p *Policy) Confirm(ctx context.Context, server, tool string, args map[string]any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.confirm == nil {
		return false
	}

	var approved bool
	p.reporter.IO(func() {
		approved = p.confirm.Confirm(ctx, server, tool, args)
	})
	return approved
}
