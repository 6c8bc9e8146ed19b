package ai

import "strings"

// ExtractJSON pulls the first balanced JSON object out of a model's free-text
// reply. Models routinely wrap JSON in markdown fences or surround it with
// prose; callers get just the {...} span, or "" when none exists.
func ExtractJSON(content string) string {
	clean := StripFences(content)

	start := strings.IndexByte(clean, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(clean); i++ {
		c := clean[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return clean[start : i+1]
				}
			}
		}
	}

	return ""
}

// StripFences removes wrapping markdown code fences and trims whitespace.
func StripFences(content string) string {
	clean := strings.TrimSpace(content)
	for _, prefix := range []string{"```json", "```jsx", "```javascript", "```html", "```"} {
		if strings.HasPrefix(clean, prefix) {
			clean = strings.TrimPrefix(clean, prefix)
			clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
			break
		}
	}
	return strings.TrimSpace(clean)
}
