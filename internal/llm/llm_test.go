package llm

import "testing"

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare json",
			input:    `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "plain fence",
			input:    "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "prose before fence",
			input:    "Here is the result:\n```json\n{\"a\": 1}\n```\nHope that helps.",
			expected: `{"a": 1}`,
		},
		{
			name:     "unclosed fence keeps input",
			input:    "```json\n{\"a\": 1}",
			expected: "```json\n{\"a\": 1}",
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n{\"a\": 1}\n  ",
			expected: `{"a": 1}`,
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
