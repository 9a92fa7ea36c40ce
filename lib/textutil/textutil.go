package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Clean collapses runs of whitespace into single spaces and trims the
// result.
func Clean(s string) string {
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename strips characters that are invalid in filenames and
// caps the length so paths stay usable across filesystems.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

// DigitsOnly strips every non-digit rune, used for parsing counters
// rendered as "1,234 likes".
func DigitsOnly(s string) string {
	var out strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			out.WriteRune(c)
		}
	}
	return out.String()
}
