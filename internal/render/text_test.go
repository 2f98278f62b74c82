package render

import (
	"testing"
)

func TestLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text unchanged", "hello world", "hello world"},
		{"newlines become spaces", "line one\nline two", "line one line two"},
		{"space runs collapsed", "a \n\t b", "a b"},
		{"leading and trailing space dropped", "\n hello \n", "hello"},
		{"control characters dropped", "bell\x07 here", "bell here"},
		{"escape sequence start dropped", "\x1b[31mred", "[31mred"},
		{"invalid utf8 dropped", "ok\xffok", "okok"},
		{"nbsp becomes space", "a\u00a0b", "a b"},
		{"wide characters kept", "日本語", "日本語"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Line(tt.input)
			if got != tt.want {
				t.Errorf("Line(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{
			name:     "no truncation needed",
			input:    "hello",
			maxWidth: 10,
			want:     "hello",
		},
		{
			name:     "exact fit",
			input:    "hello",
			maxWidth: 5,
			want:     "hello",
		},
		{
			name:     "truncation with ellipsis",
			input:    "hello world",
			maxWidth: 8,
			want:     "hello w…",
		},
		{
			name:     "multi-line body flattened first",
			input:    "meeting\nat noon",
			maxWidth: 20,
			want:     "meeting at noon",
		},
		{
			name:     "wide characters",
			input:    "日本語テキスト",
			maxWidth: 7,
			want:     "日本語…",
		},
		{
			name:     "empty string",
			input:    "",
			maxWidth: 10,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.input, tt.maxWidth)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}
}

func TestTruncateAndPad(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"short string padded", "hi", 5, "hi   "},
		{"exact fit", "hello", 5, "hello"},
		{"long string truncated", "hello world", 6, "hello…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateAndPad(tt.input, tt.width)
			if got != tt.want {
				t.Errorf("TruncateAndPad(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
			}
		})
	}
}

func TestRow(t *testing.T) {
	tests := []struct {
		name  string
		left  string
		right string
		width int
		want  string
	}{
		{"fills gap", "left", "right", 12, "left   right"},
		{"minimum one space", "left", "right", 5, "left right"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Row(tt.left, tt.right, tt.width)
			if got != tt.want {
				t.Errorf("Row(%q, %q, %d) = %q, want %q", tt.left, tt.right, tt.width, got, tt.want)
			}
		})
	}
}
