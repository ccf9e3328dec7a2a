package discovery

import (
	"regexp"
	"strings"
)

// compileGlob turns a shell-style glob (*, ?, character classes) into
// a regexp anchored to match the whole string. Unlike
// path/filepath.Match or path.Match, * crosses "/" here: watched
// branch short names legitimately contain slashes (e.g.
// "release/1.2"), and a pattern like "release/*" should match them
// without path-segment semantics getting in the way.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := i + 1
			for end < len(runes) && runes[end] != ']' {
				end++
			}
			if end >= len(runes) {
				b.WriteString(regexp.QuoteMeta(string(r)))
				continue
			}
			class := string(runes[i : end+1])
			b.WriteString(translateClass(class))
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// translateClass converts a glob character class like "[abc]" or
// "[!abc]" into its regexp equivalent "[abc]"/"[^abc]".
func translateClass(class string) string {
	inner := class[1 : len(class)-1]
	if strings.HasPrefix(inner, "!") {
		return "[^" + inner[1:] + "]"
	}
	return "[" + inner + "]"
}

// matchAny reports whether name matches at least one of patterns.
func matchAny(patterns []string, name string) (bool, error) {
	for _, p := range patterns {
		re, err := compileGlob(p)
		if err != nil {
			return false, err
		}
		if re.MatchString(name) {
			return true, nil
		}
	}
	return false, nil
}
