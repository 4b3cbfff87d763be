package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// &amp; goes last so that "&amp;lt;" decodes to the literal "&lt;".
var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

// StripHTML removes tags, decodes the common HTML entities and trims surrounding whitespace.
func StripHTML(s string) string {
	if s == "" {
		return s
	}
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most max runes. The second return value reports whether anything
// was cut.
func Truncate(s string, max int) (string, bool) {
	if max < 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]), true
}

func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func EnsurePeriod(s string) string {
	if s == "" || strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}
