package utils

import "testing"

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{"empty string", "", 10, ""},
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"very short max", "hello", 3, "..."},
		{"with newlines", "hello\nworld", 20, "hello world"},
		{"collapses whitespace", "  a \t\n b  ", 20, "a b"},
		{"multibyte", "Überwachung aktiv", 8, "Überw..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TruncateText(tt.text, tt.maxLen)
			if result != tt.expected {
				t.Errorf("TruncateText(%q, %d) = %q; want %q", tt.text, tt.maxLen, result, tt.expected)
			}
		})
	}
}

func TestEscapeForLogging(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{"simple", "hello", 10, "hello"},
		{"with newline", "hello\nworld", 20, "hello\\nworld"},
		{"with tabs", "hello\tworld", 20, "hello\\tworld"},
		{"truncated", "hello world this is long", 10, "hello worl..."},
		{"all escapes", "a\nb\rc\td", 20, "a\\nb\\rc\\td"},
		{"drops other control characters", "ad\x00min\x1b", 20, "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EscapeForLogging(tt.text, tt.maxLen)
			if result != tt.expected {
				t.Errorf("EscapeForLogging(%q, %d) = %q; want %q",
					tt.text, tt.maxLen, result, tt.expected)
			}
		})
	}
}
