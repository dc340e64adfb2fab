package llm

import "strings"

// CleanJSONBlock strips markdown fences and surrounding prose from a model
// answer and returns the first balanced JSON object or array in it.
// Text without any JSON is returned trimmed.
func CleanJSONBlock(text string) string {
	text = stripFence(strings.TrimSpace(text))

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	var candidate string
	if text[start] == '{' {
		candidate = extractJSONObject(text[start:])
	} else {
		candidate = extractJSONArray(text[start:])
	}
	if candidate == "" {
		return text
	}
	return candidate
}

// CleanLetterText removes markdown fences and a leading "Here is..."
// style line from a generated letter.
func CleanLetterText(text string) string {
	text = stripFence(strings.TrimSpace(text))
	if idx := strings.Index(text, "\n"); idx > 0 {
		first := strings.ToLower(strings.TrimSpace(text[:idx]))
		if strings.HasSuffix(first, ":") && (strings.HasPrefix(first, "her er") || strings.HasPrefix(first, "here is") || strings.HasPrefix(first, "here's")) {
			text = strings.TrimSpace(text[idx+1:])
		}
	}
	return text
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Skip a language identifier on the first line
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := text[:idx]
		if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func extractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

func extractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

// extractBalanced returns the prefix of s that closes the bracket s starts
// with, ignoring brackets inside JSON strings.
func extractBalanced(s string, open, close byte) string {
	if len(s) == 0 || s[0] != open {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
