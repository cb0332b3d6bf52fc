// Package sanitize strips unsafe or noisy content from user-supplied text
// before it is stored, logged, or handed to an LLM prompt.
package sanitize

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var messagePolicy = bluemonday.StrictPolicy()

// Title sanitizes a short display string (a member name, a chat name) by
// removing control characters and limiting the length.
func Title(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if b.Len() >= maxLen {
			break
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Message strips HTML/script markup from a message payload. The member
// client and the chat manager apply it to outgoing message and notification
// text before it is sent; inbound messages are stored as received.
func Message(text string) string {
	return strings.TrimSpace(messagePolicy.Sanitize(text))
}
