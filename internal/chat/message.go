package chat

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Attachment is a single piece of binary content attached to a user prompt
// (an image, a PDF, ...).
type Attachment struct {
	MIME string
	Data []byte
}

func isInlineable(mime string) bool {
	return strings.HasPrefix(mime, "image/") || mime == "application/pdf"
}

// BuildUserContent assembles a user message's Content per spec §4.4: plain
// text when there are no attachments; otherwise a list of parts
// (`[{type:"text",...}, {type:"image_url",...}, ...]`) when the model
// supports vision/PDF and an attachment is of those kinds, degrading
// unsupported attachments to a `"[Attached: <mime>, <n> bytes]"` marker
// appended to the text part instead.
func BuildUserContent(prompt string, attachments []Attachment, supportsVision bool) any {
	if len(attachments) == 0 {
		return prompt
	}

	text := prompt
	var mediaParts []map[string]any
	for _, a := range attachments {
		if supportsVision && isInlineable(a.MIME) {
			mediaParts = append(mediaParts, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url": fmt.Sprintf("data:%s;base64,%s", a.MIME, base64.StdEncoding.EncodeToString(a.Data)),
				},
			})
			continue
		}
		text += fmt.Sprintf("\n[Attached: %s, %d bytes]", a.MIME, len(a.Data))
	}

	parts := make([]map[string]any, 0, 1+len(mediaParts))
	parts = append(parts, map[string]any{"type": "text", "text": text})
	parts = append(parts, mediaParts...)
	return parts
}
