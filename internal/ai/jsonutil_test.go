package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare object",
			input:    `{"hero": "abc"}`,
			expected: `{"hero": "abc"}`,
		},
		{
			name:     "object wrapped in prose",
			input:    `Sure, here you go: {"hero": "abc"} Hope that helps!`,
			expected: `{"hero": "abc"}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"files\": {\"a\": \"b\"}}\n```",
			expected: `{"files": {"a": "b"}}`,
		},
		{
			name:     "nested objects",
			input:    `{"files": {"src/App.jsx": "x"}, "extra": {"deep": {"deeper": 1}}}`,
			expected: `{"files": {"src/App.jsx": "x"}, "extra": {"deep": {"deeper": 1}}}`,
		},
		{
			name:     "braces inside strings do not close the object",
			input:    `{"code": "function f() { return {}; }"}`,
			expected: `{"code": "function f() { return {}; }"}`,
		},
		{
			name:     "escaped quotes inside strings",
			input:    `{"text": "she said \"hi\" {not a brace}"}`,
			expected: `{"text": "she said \"hi\" {not a brace}"}`,
		},
		{
			name:     "only first object returned",
			input:    `{"a": 1} {"b": 2}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "no object",
			input:    "I could not generate anything.",
			expected: "",
		},
		{
			name:     "unterminated object",
			input:    `{"a": 1`,
			expected: "",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSON(tt.input))
		})
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"jsx fence", "```jsx\nexport default App\n```", "export default App"},
		{"javascript fence", "```javascript\nconst x = 1\n```", "const x = 1"},
		{"bare fence", "```\nhello\n```", "hello"},
		{"no fence", "  plain text  ", "plain text"},
		{"html fence", "```html\n<div/>\n```", "<div/>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.input))
		})
	}
}
