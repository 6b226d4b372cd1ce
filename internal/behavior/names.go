package behavior

import (
	"strings"

	"golang.org/x/text/cases"
)

// foldName maps a template, port, field or property name onto its lookup
// key. Names compare case-insensitively, the way content authors expect.
func foldName(s string) string {
	s = strings.TrimSpace(s)
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			// cases.Caser is stateful, so each call gets its own.
			return cases.Fold().String(s)
		}
	}
	return strings.ToLower(s)
}

func sameName(a, b string) bool {
	return foldName(a) == foldName(b)
}
