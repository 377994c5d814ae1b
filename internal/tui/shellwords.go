package tui

import "unicode"

// splitShellWords splits an $EDITOR value into argv. Single quotes, double
// quotes and backslash escapes (outside single quotes) are honored, and an
// explicitly quoted empty string is kept as an argument.
func splitShellWords(s string) []string {
	var (
		out     []string
		cur     []rune
		quoted  bool
		single  bool
		double  bool
		escaped bool
	)
	flush := func() {
		if len(cur) > 0 || quoted {
			out = append(out, string(cur))
		}
		cur, quoted = cur[:0], false
	}

	for _, r := range s {
		switch {
		case escaped:
			cur = append(cur, r)
			escaped = false
		case r == '\\' && !single:
			escaped = true
		case r == '\'' && !double:
			single = !single
			quoted = true
		case r == '"' && !single:
			double = !double
			quoted = true
		case !single && !double && unicode.IsSpace(r):
			flush()
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return out
}
