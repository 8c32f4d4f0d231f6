package coach

import "strings"

// extractJSONObject returns the JSON-object slice of a provider reply,
// tolerating prose around it. When the closing brace is missing, as in
// a truncated reply, it returns everything from the first brace so the
// repair pass can balance it.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}
	end := strings.LastIndex(content, "}")
	if end > start {
		return content[start : end+1]
	}
	return content[start:]
}

// repairJSON closes what a truncated reply left open. A string-aware
// scan collects the unbalanced containers, then the common truncation
// points are patched: an open string, a trailing comma, a key with no
// value. Anything beyond that simply fails the caller's re-parse.
func repairJSON(s string) string {
	var open []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			open = append(open, '}')
		case '[':
			open = append(open, ']')
		case '}', ']':
			if len(open) > 0 && open[len(open)-1] == c {
				open = open[:len(open)-1]
			}
		}
	}

	out := s
	if inString {
		if escaped {
			// A lone trailing backslash would escape the quote
			// we are about to add.
			out = out[:len(out)-1]
		}
		out += `"`
	}

	out = strings.TrimRight(out, ", \t\r\n")
	if strings.HasSuffix(out, ":") {
		out += ` ""`
	}

	for i := len(open) - 1; i >= 0; i-- {
		out += string(open[i])
	}
	return out
}
