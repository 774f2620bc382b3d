// Package cmd is the CLI entry point: a cobra root command (REPL by
// default) plus a `run` one-shot subcommand and `sessions` management
// subcommands, wiring config, MCP discovery, approval, the chat
// orchestrator, and the turn runner together.
//
// Grounded on the teacher's cmd/root.go: the persistent-flag layout
// (--model/-m, --config, --debug) and createProvider's provider:model
// switch are carried directly, trimmed from the teacher's four providers
// (anthropic/ollama/openai/google) to the two this module wires
// (anthropic/google) per SPEC_FULL.md's DOMAIN STACK. The teacher's own
// interactive input loop was not present in the retrieved pack (its REPL is
// driven by a bubbletea program not included), so runREPL here reads lines
// via bufio.Scanner against stdin instead.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fenrig-labs/gptshell/internal/approval"
	"github.com/fenrig-labs/gptshell/internal/chat"
	"github.com/fenrig-labs/gptshell/internal/config"
	"github.com/fenrig-labs/gptshell/internal/logging"
	"github.com/fenrig-labs/gptshell/internal/mcp"
	"github.com/fenrig-labs/gptshell/internal/mcp/builtin"
	"github.com/fenrig-labs/gptshell/internal/runner"
	"github.com/fenrig-labs/gptshell/internal/session"
	"github.com/fenrig-labs/gptshell/internal/toolkit"
	"github.com/fenrig-labs/gptshell/internal/ui"
	"github.com/fenrig-labs/gptshell/pkg/llm"
	"github.com/fenrig-labs/gptshell/pkg/llm/anthropic"
	"github.com/fenrig-labs/gptshell/pkg/llm/google"
)

var (
	configFile   string
	modelFlag    string
	noTools      bool
	outputFlag   string
	sessionFlag  string
	debugMode    bool
	approveAll   bool
	fsAllowedDir []string
)

// rootCmd defaults to the REPL when invoked with no subcommand, mirroring
// the teacher's rootCmd.RunE dispatching straight into runMCPHost.
var rootCmd = &cobra.Command{
	Use:   "gptshell",
	Short: "Chat with an LLM through a tool-use loop over MCP servers",
	Long: `gptshell drives a turn-based chat loop against an LLM provider,
discovering tools from configured MCP servers and a handful of in-process
builtins (shell, time, fs, fetch).

Models are selected with --model in provider:model form:
  gptshell -m anthropic:claude-3-5-sonnet-latest
  gptshell -m google:gemini-2.0-flash`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd.Context())
	},
}

// Execute runs the root command, returning the process exit code the
// caller (main.go) should pass to os.Exit.
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if exitErr, ok := err.(exitCodeError); ok {
			return exitErr.code
		}
		fmt.Fprintln(os.Stderr, err)
		return runner.ExitOther
	}
	return runner.ExitOK
}

// exitCodeError lets a subcommand report a specific process exit code
// without os.Exit (so Execute stays testable) — spec §4.5's exit-code
// table surfaces here.
type exitCodeError struct {
	code int
	err  error
}

func (e exitCodeError) Error() string { return e.err.Error() }
func (e exitCodeError) Unwrap() error { return e.err }

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (YAML or JSON); none is loaded when unset")
	flags.StringVarP(&modelFlag, "model", "m", "anthropic:claude-sonnet-4-5",
		"model to use (format: provider:model, e.g. anthropic:claude-sonnet-4-5 or google:gemini-2.0-flash)")
	flags.BoolVar(&noTools, "no-tools", false, "disable tool discovery and calling for this run")
	flags.StringVar(&outputFlag, "output", "markdown", "output rendering mode: markdown or text")
	flags.StringVar(&sessionFlag, "session", "", "resume an existing session by id, id-prefix, or recency position")
	flags.BoolVar(&debugMode, "debug", false, "enable debug logging")
	flags.BoolVar(&approveAll, "yes", false, "auto-approve every tool call without prompting (use with care)")
	flags.StringSliceVar(&fsAllowedDir, "fs-allow", []string{"."}, "directories the fs builtin may read from")

	rootCmd.AddCommand(runCmd, sessionsCmd)
}

// Root exposes rootCmd for main.go without requiring a second cobra root.
func Root() *cobra.Command { return rootCmd }

// createProvider builds the llm.Client for "provider:model", adapted from
// the teacher's createProvider switch, trimmed to anthropic/google.
func createProvider(ctx context.Context, modelString string) (llm.Client, string, error) {
	parts := strings.SplitN(modelString, ":", 2)
	if len(parts) < 2 {
		return nil, "", fmt.Errorf("invalid model format, expected provider:model, got %q", modelString)
	}
	providerName, model := parts[0], parts[1]

	switch providerName {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("Anthropic API key not set: set ANTHROPIC_API_KEY")
		}
		return anthropic.New(anthropic.Config{APIKey: apiKey, Model: model}), providerName, nil

	case "google":
		apiKey := os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, "", fmt.Errorf("Google API key not set: set GOOGLE_API_KEY or GEMINI_API_KEY")
		}
		p, err := google.New(ctx, google.Config{APIKey: apiKey, Model: model})
		return p, providerName, err

	default:
		return nil, "", fmt.Errorf("unsupported provider %q (supported: anthropic, google)", providerName)
	}
}

// app bundles the pieces assembled once per process invocation, shared by
// the one-shot run command and the REPL loop.
type app struct {
	doc      *config.Document
	client   llm.Client
	manager  *mcp.Manager
	policy   *approval.Policy
	reporter ui.Reporter
	store    *session.Store
	renderer func(string) string
	format   runner.OutputFormat
}

// bootstrap loads config, constructs the provider, starts MCP discovery
// (builtins always; external servers from config), and wires the approval
// policy — the shared setup path for every entry point.
func bootstrap(ctx context.Context) (*app, error) {
	logging.Configure(debugMode)

	var doc *config.Document
	if configFile != "" {
		d, err := config.Load(configFile, map[string]string{"model": modelFlag})
		if err != nil {
			return nil, exitCodeError{code: runner.ExitConfigError, err: err}
		}
		doc = d
	} else {
		doc = &config.Document{}
		parts := strings.SplitN(modelFlag, ":", 2)
		if len(parts) == 2 {
			doc.Provider.Name = parts[0]
			doc.Agent.Model = parts[1]
		}
	}

	client, providerName, err := createProvider(ctx, modelFlag)
	if err != nil {
		return nil, exitCodeError{code: runner.ExitConfigError, err: err}
	}
	log.Info("model loaded", "provider", providerName, "model", modelFlag)

	reporter := ui.NewTermReporter(func(s string) { fmt.Fprintln(os.Stderr, s) })

	fsServer, err := builtin.NewFSServer(ctx, fsAllowedDir)
	if err != nil {
		return nil, fmt.Errorf("start fs builtin: %w", err)
	}
	manager := mcp.NewManager(
		builtin.NewShellServer(),
		builtin.NewTimeServer(),
		fsServer,
		builtin.NewFetchServer(),
	)

	if len(doc.MCPServers) > 0 {
		if errs := manager.Start(ctx, mcp.Config{MCPServers: doc.MCPServers}); len(errs) > 0 {
			for _, e := range errs {
				log.Warn("mcp server failed to start", "error", e)
			}
		}
	}

	allow := approval.AllowMap{
		"shell": builtin.AutoApproveDefault,
		"fs":    builtin.AutoApproveFS,
		"fetch": builtin.AutoApproveFetch,
		"time":  []string{"*"},
	}
	for name, sc := range doc.MCPServers {
		allow[name] = sc.AutoApprove
	}
	if approveAll {
		allow["*"] = []string{"*"}
	}

	var confirmer approval.Confirmer
	if approveAll {
		confirmer = alwaysApprove{}
	} else {
		confirmer = approval.NewTermConfirmer(os.Stderr)
	}
	policy := approval.New(allow, confirmer, reporter)
	policy.Required = doc.Agent.ToolChoiceRequired

	var render func(string) string
	format := runner.FormatMarkdown
	if outputFlag == "text" {
		format = runner.FormatText
	} else {
		gr, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			render = func(s string) string {
				out, renderErr := gr.Render(s)
				if renderErr != nil {
					return s
				}
				return out
			}
		}
	}

	return &app{
		doc:      doc,
		client:   client,
		manager:  manager,
		policy:   policy,
		reporter: reporter,
		store:    session.NewStore(defaultSessionsDir()),
		renderer: render,
		format:   format,
	}, nil
}

type alwaysApprove struct{}

func (alwaysApprove) Confirm(context.Context, string, string, map[string]any) bool { return true }

func defaultSessionsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sessions"
	}
	return home + "/.gptshell/sessions"
}

// modelNameOnly strips the "provider:" prefix from --model, since the
// provider itself is already bound into the llm.Client.
func modelNameOnly(modelString string) string {
	parts := strings.SplitN(modelString, ":", 2)
	return parts[len(parts)-1]
}

// newChatSession builds a chat.Session from the bootstrapped app, refreshing
// tool specs from the manager's current discovery.
func (a *app) newChatSession() *chat.Session {
	s := chat.New(a.client, a.manager, a.policy, a.reporter, chat.Params{
		Model:              modelNameOnly(modelFlag),
		SystemPrompt:       a.doc.Agent.PromptSystem,
		Temperature:        a.doc.Agent.Temperature,
		MaxTokens:          a.doc.Agent.MaxTokens,
		ToolChoiceRequired: a.doc.Agent.ToolChoiceRequired,
	})
	if !noTools {
		s.SetTools(toolkit.BuildSpecs(a.manager.ListToolsAll()))
	}
	return s
}

// runREPL implements the default (no subcommand) interactive mode: read a
// line, run a turn, print, repeat until EOF or Ctrl-D. Each turn gets its
// own id (spec's per-turn correlation) via google/uuid, logged at debug
// level for traceability across a multi-turn session.
func runREPL(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.manager.Stop()

	chatSession := a.newChatSession()
	interrupts := runner.NewInterruptController()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			interrupts.Signal()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprintln(os.Stderr, "gptshell REPL — Ctrl-D to exit, Ctrl-C to cancel a turn")
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		line, attachments, err := extractAttachments(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}

		turnID := uuid.New().String()
		log.Debug("starting turn", "turn_id", turnID)

		turnCtx, stop := interrupts.Begin(ctx)
		res := runner.Run(turnCtx, runner.Request{
			Session:  chatSession,
			Input:    chat.TurnInput{Prompt: line, Attachments: attachments, NoTools: noTools},
			Format:   a.format,
			Render:   a.renderer,
			Reporter: a.reporter,
			Out:      os.Stdout,
		})
		stop()

		if res.Err != nil {
			fmt.Fprintln(os.Stderr, "error:", res.Err)
		}
		select {
		case <-interrupts.Done:
			return nil
		default:
		}
	}
	return nil
}
