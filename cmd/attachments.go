package cmd

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/fenrig-labs/gptshell/internal/chat"
)

// attachmentToken matches an inline `@path` file reference within a prompt
// line, the convention this CLI uses to populate spec §4.4's
// TurnInput.Attachments (no CLI-level attachment syntax was present in the
// retrieved pack for either the teacher or the Python original — see
// DESIGN.md).
var attachmentToken = regexp.MustCompile(`@(\S+)`)

var collapseSpaces = regexp.MustCompile(` {2,}`)

// extractAttachments pulls every `@path` token out of prompt, reads the
// referenced file from disk, sniffs its MIME type, and returns the prompt
// text with the tokens removed alongside the loaded attachments.
func extractAttachments(prompt string) (string, []chat.Attachment, error) {
	var attachments []chat.Attachment
	var readErr error
	cleaned := attachmentToken.ReplaceAllStringFunc(prompt, func(match string) string {
		if readErr != nil {
			return match
		}
		path := strings.TrimPrefix(match, "@")
		data, err := os.ReadFile(path)
		if err != nil {
			readErr = fmt.Errorf("read attachment %q: %w", path, err)
			return match
		}
		attachments = append(attachments, chat.Attachment{MIME: http.DetectContentType(data), Data: data})
		return ""
	})
	if readErr != nil {
		return "", nil, readErr
	}
	cleaned = collapseSpaces.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	return cleaned, attachments, nil
}
