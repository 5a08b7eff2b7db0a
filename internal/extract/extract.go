// Package extract pulls a single code artifact out of a raw model response.
package extract

import "strings"

// Code returns the inner text of the first fenced code block in text,
// trimmed. The fence's language tag, if any, is ignored. When the response
// carries no complete fenced block the whole response is returned trimmed,
// since models sometimes reply with bare code.
func Code(text string) string {
	idx := strings.Index(text, "```")
	if idx == -1 {
		return strings.TrimSpace(text)
	}
	rest := text[idx+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return strings.TrimSpace(text)
	}
	body := rest[nl+1:]
	end := strings.Index(body, "```")
	if end == -1 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(body[:end])
}
