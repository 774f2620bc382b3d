package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fenrig-labs/gptshell/internal/chat"
	"github.com/fenrig-labs/gptshell/internal/runner"
	"github.com/fenrig-labs/gptshell/internal/session"
)

// runCmd is the one-shot mode named in SPEC_FULL.md's CLI surface: run a
// single turn against (optionally) a resumed session, print the result,
// and exit with the turn's mapped exit code (spec §4.5) instead of
// dropping into the REPL.
var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run a single turn and exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := runOnce(cmd, args[0])
		if code != runner.ExitOK {
			return exitCodeError{code: code, err: err}
		}
		return nil
	},
}

func runOnce(cmd *cobra.Command, prompt string) (int, error) {
	// One-shot mode has no "second press" window to arbitrate: a single
	// Ctrl-C cancels the turn outright (spec §4.5's ExitInterrupt).
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		if ece, ok := err.(exitCodeError); ok {
			return ece.code, ece.err
		}
		return runner.ExitConfigError, err
	}
	defer a.manager.Stop()

	var doc *session.Document
	if sessionFlag != "" {
		path, err := a.store.ResolveSessionRef(sessionFlag)
		if err != nil {
			return runner.ExitConfigError, fmt.Errorf("resolve session %q: %w", sessionFlag, err)
		}
		doc, err = session.Load(path)
		if err != nil {
			return runner.ExitConfigError, fmt.Errorf("load session %q: %w", sessionFlag, err)
		}
	} else {
		doc = session.New(
			session.AgentMeta{
				Name:           a.doc.Agent.Name,
				Model:          modelNameOnly(modelFlag),
				ModelSmall:     a.doc.Agent.ModelSmall,
				PromptSystem:   a.doc.Agent.PromptSystem,
				Temperature:    a.doc.Agent.Temperature,
				ToolChoiceAuto: !a.doc.Agent.ToolChoiceRequired,
			},
			session.ProviderMeta{Name: a.doc.Provider.Name},
			outputFlag,
		)
	}

	prompt, attachments, err := extractAttachments(prompt)
	if err != nil {
		return runner.ExitConfigError, err
	}

	chatSession := a.newChatSession()
	chatSession.SetHistory(doc.Messages)

	result := runner.Run(ctx, runner.Request{
		Session:  chatSession,
		Input:    chat.TurnInput{Prompt: prompt, Attachments: attachments, NoTools: noTools},
		Format:   a.format,
		Render:   a.renderer,
		Reporter: a.reporter,
		Out:      os.Stdout,
	})

	newMessages := chatSession.History()[len(doc.Messages):]
	session.AppendMessages(doc, newMessages)
	doc.Usage = session.FromLLMUsage(chatSession.Usage())
	if doc.Agent.ModelSmall != "" {
		if err := session.GenerateTitle(ctx, doc, a.client); err != nil {
			fmt.Fprintln(os.Stderr, "warning: failed to generate session title:", err)
		}
	}
	if err := a.store.Save(doc); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to save session:", err)
	}

	if result.Err != nil {
		return result.ExitCode, result.Err
	}
	return runner.ExitOK, nil
}
