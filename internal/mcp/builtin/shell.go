package builtin

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fenrig-labs/gptshell/internal/mcp"
)

// AutoApproveDefault lists this server's tools considered safe enough to
// run without interactive confirmation by default (history reads only —
// "execute" is never auto-approved).
var AutoApproveDefault = []string{"search_history", "get_history"}

// ShellServer exposes execute/get_history/search_history, grounded on the
// Python original's gptsh/mcp/builtin/shell.py. It carries no destructive-
// command blocklist — that is a different design found in other example
// shell tools and not one the spec's source implements.
type ShellServer struct{}

func NewShellServer() *ShellServer { return &ShellServer{} }

func (s *ShellServer) Name() string { return "shell" }

func (s *ShellServer) Tools() []mcp.ToolSpec {
	return []mcp.ToolSpec{
		{
			Name: "shell__execute", Server: "shell", Tool: "execute",
			Description: "Execute a shell command and return JSON with exit code, stdout, and stderr.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "Command string to execute using /bin/sh -c"},
					"cwd":     map[string]any{"type": "string", "description": "Working directory for the command (optional)"},
					"timeout": map[string]any{"type": "number", "description": "Timeout in seconds (optional). If exceeded, process is killed and exit_code is -1."},
					"env":     map[string]any{"type": "object", "description": "Environment variable overrides (string-to-string map).", "additionalProperties": true},
				},
				"required":             []string{"command"},
				"additionalProperties": false,
			},
		},
		{
			Name: "shell__get_history", Server: "shell", Tool: "get_history",
			Description: "Return the last n shell commands from the history file ($HISTFILE, else ~/.zhistory, ~/.zsh_history or ~/.bash_history). Fails with error if no history file is found or it is unreadable.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"n": map[string]any{"type": "integer", "description": "Number of last history entries.", "default": 20, "minimum": 1, "maximum": 100},
				},
				"required":             []string{"n"},
				"additionalProperties": false,
			},
		},
		{
			Name: "shell__search_history", Server: "shell", Tool: "search_history",
			Description: "Search for commands in shell history matching a regex or substring. Reads $HISTFILE, else ~/.zhistory, ~/.zsh_history or ~/.bash_history. Fails with error if no history file is found or it is unreadable.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern":     map[string]any{"type": "string", "description": "Regex or substring to match against history."},
					"max_results": map[string]any{"type": "integer", "description": "Return this many last matches.", "default": 20, "minimum": 1, "maximum": 100},
				},
				"required":             []string{"pattern"},
				"additionalProperties": false,
			},
		},
	}
}

func (s *ShellServer) Call(ctx context.Context, tool string, args map[string]any) (string, error) {
	switch tool {
	case "execute":
		return executeShell(ctx, args)
	case "get_history":
		return getHistory(args)
	case "search_history":
		return searchHistory(args)
	default:
		return "", fmt.Errorf("unknown tool: shell__%s", tool)
	}
}

type shellResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

func executeShell(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("field 'command' (string) is required")
	}
	cwd, _ := args["cwd"].(string)

	var timeout time.Duration
	if raw, ok := args["timeout"]; ok {
		if f, ok := toFloat(raw); ok && f > 0 {
			timeout = time.Duration(f * float64(time.Second))
		}
	}

	cctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cctx, "/bin/sh", "-c", command)
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = mergeEnv(os.Environ(), args["env"])

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cctx.Err() == context.DeadlineExceeded {
		stderrText := stderr.String()
		if stderrText != "" {
			stderrText += "\n[Timed out]"
		} else {
			stderrText = "[Timed out]"
		}
		return marshalShellResult(shellResult{ExitCode: -1, Stdout: stdout.String(), Stderr: stderrText})
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return marshalShellResult(shellResult{ExitCode: exitErr.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()})
		}
		return marshalShellResult(shellResult{ExitCode: -1, Stdout: "", Stderr: fmt.Sprintf("[Execution error] %v", err)})
	}
	return marshalShellResult(shellResult{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()})
}

func marshalShellResult(r shellResult) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func mergeEnv(base []string, overrides any) []string {
	m, ok := overrides.(map[string]any)
	if !ok || len(m) == 0 {
		return base
	}
	out := append([]string(nil), base...)
	for k, v := range m {
		out = append(out, fmt.Sprintf("%s=%v", k, v))
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

type historyEntry struct {
	Command   string `json:"command"`
	Timestamp string `json:"timestamp,omitempty"`
}

func histFile() (string, error) {
	candidates := []string{}
	if v := os.Getenv("HISTFILE"); v != "" {
		candidates = append(candidates, v)
	}
	home, _ := os.UserHomeDir()
	candidates = append(candidates,
		filepath.Join(home, ".zhistory"),
		filepath.Join(home, ".zsh_history"),
		filepath.Join(home, ".bash_history"),
	)
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("no shell history file found; checked $HISTFILE and common paths")
}

// extendedZshEntry matches ": <unix_ts>:0;<command>" lines.
var extendedZshEntry = regexp.MustCompile(`^: (\d+):\d+;(.*)$`)

func readHistory(path string) ([]historyEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	entries := make([]historyEntry, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if m := extendedZshEntry.FindStringSubmatch(line); m != nil {
			entry := historyEntry{Command: strings.TrimSpace(m[2])}
			if ts, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				entry.Timestamp = time.Unix(ts, 0).Local().Format(time.RFC3339)
			}
			entries = append(entries, entry)
			continue
		}
		if cmd := strings.TrimSpace(line); cmd != "" {
			entries = append(entries, historyEntry{Command: cmd})
		}
	}
	return entries, nil
}

func getHistory(args map[string]any) (string, error) {
	n := 20
	if raw, ok := args["n"]; ok {
		f, ok := toFloat(raw)
		if !ok || f < 1 || f > 100 {
			return errJSON("Argument 'n' must be integer 1..100."), nil
		}
		n = int(f)
	}
	file, err := histFile()
	if err != nil {
		return errJSON(err.Error()), nil
	}
	history, err := readHistory(file)
	if err != nil {
		return errJSON(err.Error()), nil
	}
	if n > len(history) {
		n = len(history)
	}
	b, _ := json.Marshal(map[string]any{"ok": true, "history": history[:n]})
	return string(b), nil
}

func searchHistory(args map[string]any) (string, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return errJSON("Argument 'pattern' must be a non-empty string."), nil
	}
	maxResults := 20
	if raw, ok := args["max_results"]; ok {
		f, ok := toFloat(raw)
		if !ok || f < 1 || f > 100 {
			return errJSON("Argument 'max_results' must be integer 1..100."), nil
		}
		maxResults = int(f)
	}
	file, err := histFile()
	if err != nil {
		return errJSON(err.Error()), nil
	}
	history, err := readHistory(file)
	if err != nil {
		return errJSON(err.Error()), nil
	}

	var results []historyEntry
	re, reErr := regexp.Compile(pattern)
	for _, entry := range history {
		matched := false
		if reErr == nil {
			matched = re.MatchString(entry.Command)
		} else {
			matched = strings.Contains(entry.Command, pattern)
		}
		if matched {
			results = append(results, entry)
			if len(results) >= maxResults {
				break
			}
		}
	}
	b, _ := json.Marshal(map[string]any{"ok": true, "results": results})
	return string(b), nil
}

func errJSON(msg string) string {
	b, _ := json.Marshal(map[string]any{"ok": false, "error": msg})
	return string(b)
}
