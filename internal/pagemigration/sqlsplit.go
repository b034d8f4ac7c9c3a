package pagemigration

import "strings"

// SplitStatements splits a SQL script on top-level semicolons. Semicolons
// inside quotes, comments and dollar-quoted bodies do not split. Comment-only
// and empty statements are dropped.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
		hasCode    bool
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if hasCode && stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
		hasCode = false
	}

	n := len(script)
	for i := 0; i < n; {
		c := script[i]

		switch {
		case c == '-' && i+1 < n && script[i+1] == '-':
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				end = n - i
			}
			current.WriteString(script[i : i+end])
			i += end

		case c == '/' && i+1 < n && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				current.WriteString(script[i:])
				i = n
				break
			}
			current.WriteString(script[i : i+2+end+2])
			i += 2 + end + 2

		case c == '\'' || c == '"':
			j := i + 1
			for j < n {
				if script[j] == c {
					// A doubled quote is an escaped quote.
					if j+1 < n && script[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j >= n {
				j = n - 1
			}
			current.WriteString(script[i : j+1])
			hasCode = true
			i = j + 1

		case c == '$':
			tag, ok := dollarTag(script[i:])
			if !ok {
				current.WriteByte(c)
				hasCode = true
				i++
				break
			}
			end := strings.Index(script[i+len(tag):], tag)
			if end < 0 {
				current.WriteString(script[i:])
				hasCode = true
				i = n
				break
			}
			stop := i + len(tag) + end + len(tag)
			current.WriteString(script[i:stop])
			hasCode = true
			i = stop

		case c == ';':
			flush()
			i++

		default:
			current.WriteByte(c)
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				hasCode = true
			}
			i++
		}
	}
	flush()

	return statements
}

// dollarTag returns the opening dollar-quote tag at the start of s, such as
// "$$" or "$body$".
func dollarTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		isLetter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isLetter && !(isDigit && i > 1) {
			return "", false
		}
	}
	return "", false
}
