package engines

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	linkPattern  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	urlPattern   = regexp.MustCompile(`https?://\S+`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// markup is removed before synthesis so engines do not read it aloud.
var markup = strings.NewReplacer(
	"**", "",
	"__", "",
	"`", "",
	"*", "",
	"#", "",
	">", "",
	"~", "",
)

// Normalize prepares one sentence for an engine. It composes Hangul and
// other decomposed text into NFC, drops markdown markup, links, emoji and
// control characters, and collapses whitespace.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = linkPattern.ReplaceAllString(text, "$1")
	text = urlPattern.ReplaceAllString(text, "")
	text = markup.Replace(text)

	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		case unicode.Is(unicode.So, r), unicode.Is(unicode.Sk, r):
			return -1
		case r == '\u200d' || r == '\ufe0f':
			return -1
		}
		return r
	}, text)

	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}
