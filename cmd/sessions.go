package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenrig-labs/gptshell/internal/session"
)

// sessionsCmd groups the session-management subcommands SPEC_FULL.md's
// [SUPPLEMENTED] features list names: list/show/rm, each exercising C6's
// ResolveSessionRef.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List, inspect, or remove saved sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := session.NewStore(defaultSessionsDir())
		entries, err := store.List()
		if err != nil {
			return err
		}
		for i, e := range entries {
			fmt.Printf("%3d  %s  %s\n", i+1, e.ID, e.UpdatedAt)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Print a saved session's full document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := session.NewStore(defaultSessionsDir())
		path, err := store.ResolveSessionRef(args[0])
		if err != nil {
			return err
		}
		doc, err := session.Load(path)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <ref>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := session.NewStore(defaultSessionsDir())
		path, err := store.ResolveSessionRef(args[0])
		if err != nil {
			return err
		}
		return os.Remove(path)
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsRmCmd)
}
