package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TermConfirmer is the interactive, terminal-rendered Confirmer: a small
// bubbletea program presenting the server, tool, and arguments with a
// yes/no toggle, adapted from the teacher's tool_approval_input.go. EOF
// (the program cannot start, e.g. no controlling terminal) is treated as
// deny, per spec §4.3.
type TermConfirmer struct {
	out io.Writer
}

// NewTermConfirmer constructs a TermConfirmer writing to out (typically
// os.Stderr, so it does not pollute a piped stdout result).
func NewTermConfirmer(out io.Writer) *TermConfirmer {
	return &TermConfirmer{out: out}
}

var _ Confirmer = (*TermConfirmer)(nil)

func (c *TermConfirmer) Confirm(ctx context.Context, server, tool string, args map[string]any) bool {
	argBytes, err := json.Marshal(args)
	if err != nil {
		argBytes = []byte(fmt.Sprintf("%v", args))
	}

	model := newApprovalModel(server, tool, string(argBytes))
	prog := tea.NewProgram(model, tea.WithOutput(c.out), tea.WithoutCatchPanics(), tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return false
	}
	m, ok := final.(approvalModel)
	if !ok {
		return false
	}
	return m.approved
}

type approvalModel struct {
	server, tool, argText string
	selected              bool // true = "yes" highlighted
	approved              bool
	done                  bool
}

func newApprovalModel(server, tool, argText string) approvalModel {
	return approvalModel{server: server, tool: tool, argText: argText, selected: true}
}

func (m approvalModel) Init() tea.Cmd { return nil }

func (m approvalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "y", "Y":
		m.approved, m.done = true, true
		return m, tea.Quit
	case "n", "N", "esc", "ctrl+c":
		m.approved, m.done = false, true
		return m, tea.Quit
	case "left", "right", "tab":
		m.selected = !m.selected
		return m, nil
	case "enter":
		m.approved, m.done = m.selected, true
		return m, tea.Quit
	}
	return m, nil
}

func (m approvalModel) View() string {
	if m.done {
		return ""
	}
	title := lipgloss.NewStyle().Bold(true).Render("Allow tool execution")
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true).Underline(true)
	unselectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	yes, no := "[y]es", "[n]o"
	if m.selected {
		yes, no = selectedStyle.Render(yes), unselectedStyle.Render(no)
	} else {
		yes, no = unselectedStyle.Render(yes), selectedStyle.Render(no)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nServer: %s\nTool: %s\nArguments: %s\n\nAllow? %s/%s\n",
		title, m.server, m.tool, m.argText, yes, no)
	return b.String()
}
