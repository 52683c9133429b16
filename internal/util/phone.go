package util

import (
	"regexp"
	"strings"
)

var (
	phoneJunk    = regexp.MustCompile(`[^\d\+]+`)
	moroccanLine = regexp.MustCompile(`^\+212[5-7]\d{8}$`)
)

// NormalizePhone turns Moroccan user input into E.164 (+212XXXXXXXXX).
// Unrecognised input is returned with separators stripped.
func NormalizePhone(raw string) string {
	s := phoneJunk.ReplaceAllString(strings.TrimSpace(raw), "")

	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	} else if strings.HasPrefix(s, "0") && len(s) == 10 {
		s = "+212" + s[1:]
	} else if strings.HasPrefix(s, "212") {
		s = "+" + s
	}

	return s
}

// IsMoroccanPhone reports whether raw normalises to a Moroccan mobile/landline number.
func IsMoroccanPhone(raw string) bool {
	return moroccanLine.MatchString(NormalizePhone(raw))
}
