// Package utils holds small text helpers shared by logging and notifications.
package utils

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// TruncateText flattens text to one line and cuts it to at most maxLen runes,
// ending in "..." when shortened
func TruncateText(text string, maxLen int) string {
	text = strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= len(ellipsis) {
		return ellipsis
	}
	runes := []rune(text)
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

// EscapeForLogging bounds client-supplied text before it goes into a log line.
// Control characters are escaped so one value cannot forge extra lines.
func EscapeForLogging(text string, maxLen int) string {
	if utf8.RuneCountInString(text) > maxLen {
		text = string([]rune(text)[:maxLen]) + ellipsis
	}

	var b strings.Builder
	for _, r := range text {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
