package target

import (
	"fmt"
	"regexp"
	"strings"
)

// compileGlob translates a path glob into a regexp. * matches within one
// path segment, ? matches one character, ** crosses segment boundaries.
// path.Match has no ** and filepath.Glob only walks the real filesystem,
// so the translation is done here.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
				if i+1 < len(pattern) && pattern[i+1] == '/' {
					// **/ matches zero or more whole segments, so "a/**/b"
					// matches "a/b" and "a/x/b" but never "a/xb".
					sb.WriteString("(?:[^/]+/)*")
					i++
				} else {
					sb.WriteString(".*")
				}
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("target: invalid path glob %q: %w", pattern, err)
	}
	return re, nil
}
