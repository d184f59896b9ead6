package utils

import (
	"fmt"
	"strings"
)

func NormalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

func NormalizeDifficulty(difficulty string) string {
	return strings.ToLower(strings.TrimSpace(difficulty))
}

// AddLineNumbers prefixes each line with its 1-based number, right-aligned.
func AddLineNumbers(code string) string {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return ""
	}
	lines := strings.Split(code, "\n")
	width := len(fmt.Sprint(len(lines)))
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%*d | %s", width, i+1, line)
	}
	return sb.String()
}

// CountLines returns the number of lines AddLineNumbers would emit.
func CountLines(code string) int {
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return 0
	}
	return strings.Count(code, "\n") + 1
}
