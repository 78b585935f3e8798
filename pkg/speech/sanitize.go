package speech

import (
	"regexp"
	"strings"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicPattern = regexp.MustCompile(`\*([^*]+)\*`)

	markdownChars = strings.NewReplacer("_", "", "~", "", "`", "")
)

// SanitizeForSpeech prepares examiner text for synthesis. Emphasis markers
// become upper-case (the voice leans into shouted words where asterisks would
// be read literally); leftover markdown characters are stripped.
func SanitizeForSpeech(text string) string {
	out := boldPattern.ReplaceAllStringFunc(text, func(match string) string {
		return strings.ToUpper(boldPattern.FindStringSubmatch(match)[1])
	})
	out = italicPattern.ReplaceAllStringFunc(out, func(match string) string {
		return strings.ToUpper(italicPattern.FindStringSubmatch(match)[1])
	})
	return markdownChars.Replace(out)
}
