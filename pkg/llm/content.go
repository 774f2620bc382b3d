package llm

import "strings"

// ContentParts normalizes a Message.Content value produced by
// chat.BuildUserContent's multimodal shape
// (`[{type:"text",...}, {type:"image_url",...}, ...]`) into a uniform
// []map[string]any, regardless of whether content is still the in-process
// []map[string]any or has round-tripped through JSON (session persistence
// decodes a JSON array of objects as []any of map[string]any). Returns
// false for plain-string content or anything else unrecognized.
func ContentParts(content any) ([]map[string]any, bool) {
	switch v := content.(type) {
	case []map[string]any:
		return v, true
	case []any:
		parts := make([]map[string]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			parts = append(parts, m)
		}
		return parts, true
	default:
		return nil, false
	}
}

// DataURLImage extracts the MIME type and raw base64 payload from an
// `{type:"image_url", image_url:{url:"data:<mime>;base64,<data>"}}` part,
// without decoding the payload — callers that want raw bytes (as opposed to
// a provider API expecting a base64 string directly) decode it themselves.
func DataURLImage(part map[string]any) (mimeType, base64Data string, ok bool) {
	imageURL, ok := part["image_url"].(map[string]any)
	if !ok {
		return "", "", false
	}
	url, ok := imageURL["url"].(string)
	if !ok {
		return "", "", false
	}
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "", "", false
	}
	rest := url[len(prefix):]
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+len(";base64,"):], true
}

// PartText extracts the text of a `{type:"text", text:"..."}` part.
func PartText(part map[string]any) (string, bool) {
	if part["type"] != "text" {
		return "", false
	}
	text, ok := part["text"].(string)
	return text, ok
}

// IsImagePart reports whether part is an `{type:"image_url", ...}` entry.
func IsImagePart(part map[string]any) bool {
	return part["type"] == "image_url"
}
