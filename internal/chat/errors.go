package chat

import "fmt"

// ErrToolApprovalDenied is returned when a tool call is denied in
// tool_choice="required" mode (spec §4.3, §7); the CLI boundary maps it to
// exit code 4.
type ErrToolApprovalDenied struct {
	Server, Tool string
}

func (e ErrToolApprovalDenied) Error() string {
	return fmt.Sprintf("tool approval denied: %s__%s", e.Server, e.Tool)
}
