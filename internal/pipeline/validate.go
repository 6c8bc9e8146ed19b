package pipeline

import (
	"fmt"
	"strings"
)

// ValidateTree statically checks a virtual file tree for build-breaking
// defects. The tree is never executed; these are the checks whose failures
// the repair loop can actually act on: truncated or empty files, leftover
// markdown fences, unbalanced brackets, and a missing or export-less entry
// component.
func ValidateTree(tree FileTree) []CompilationIssue {
	var issues []CompilationIssue

	main, ok := tree[MainFile]
	switch {
	case !ok:
		issues = append(issues, CompilationIssue{Path: MainFile, Message: "entry component is missing"})
	case !strings.Contains(main, "export default"):
		issues = append(issues, CompilationIssue{Path: MainFile, Message: "entry component has no default export"})
	}

	for _, path := range sortedPaths(tree) {
		content := tree[path]

		if strings.TrimSpace(content) == "" {
			issues = append(issues, CompilationIssue{Path: path, Message: "file is empty"})
			continue
		}
		if strings.Contains(content, "```") {
			issues = append(issues, CompilationIssue{Path: path, Message: "file contains markdown fences"})
		}

		if isCodeFile(path) {
			if msg := checkBalance(content); msg != "" {
				issues = append(issues, CompilationIssue{Path: path, Message: msg})
			}
		}
	}

	return issues
}

func isCodeFile(path string) bool {
	for _, suffix := range []string{".js", ".jsx", ".ts", ".tsx", ".css", ".json"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// checkBalance scans for unbalanced {}, () and [] outside string literals
// and comments. A rough lexer is enough: the repair loop only needs a
// defect signal with a location-free message the model can act on.
func checkBalance(content string) string {
	var depthBrace, depthParen, depthBracket int
	var inString byte // active quote char, 0 when outside strings
	var inLineComment, inBlockComment, escaped bool

	for i := 0; i < len(content); i++ {
		c := content[i]

		if inLineComment {
			if c == '\n' {
				inLineComment = false
			}
			continue
		}
		if inBlockComment {
			if c == '*' && i+1 < len(content) && content[i+1] == '/' {
				inBlockComment = false
				i++
			}
			continue
		}
		if inString != 0 {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == inString {
				inString = 0
			}
			continue
		}

		switch c {
		// Single quotes are ignored: apostrophes in JSX prose would make
		// every other file look like an unterminated string.
		case '"', '`':
			inString = c
		case '/':
			if i+1 < len(content) {
				switch content[i+1] {
				case '/':
					inLineComment = true
					i++
				case '*':
					inBlockComment = true
					i++
				}
			}
		case '{':
			depthBrace++
		case '}':
			depthBrace--
		case '(':
			depthParen++
		case ')':
			depthParen--
		case '[':
			depthBracket++
		case ']':
			depthBracket--
		}
	}

	if inString != 0 {
		return "unterminated string literal, file looks truncated"
	}
	switch {
	case depthBrace != 0:
		return fmt.Sprintf("unbalanced braces (depth %+d)", depthBrace)
	case depthParen != 0:
		return fmt.Sprintf("unbalanced parentheses (depth %+d)", depthParen)
	case depthBracket != 0:
		return fmt.Sprintf("unbalanced brackets (depth %+d)", depthBracket)
	}
	return ""
}
