package fileconv

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reCRLF               = regexp.MustCompile(`\r\n?`)
	reTrailingWhitespace = regexp.MustCompile(`[ \t]+\n`)
	reMultipleNewlines   = regexp.MustCompile(`\n{3,}`)
)

// normalizeOutput tidies extracted text: valid UTF-8, LF line endings, no
// control characters other than tab and newline, no trailing blanks, at most
// one empty line in a row, trimmed.
func normalizeOutput(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = reCRLF.ReplaceAllString(s, "\n")
	s = strings.Map(func(r rune) rune {
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = reTrailingWhitespace.ReplaceAllString(s+"\n", "\n")
	s = reMultipleNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
