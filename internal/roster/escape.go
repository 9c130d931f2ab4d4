package roster

import (
	"fmt"
	"strings"
)

// EscapeField converts a display name into an injection-safe roster field.
// The value is always wrapped in double quotes and internal quotes are
// doubled, so commas and newlines inside the value cannot break the record
// structure.
func EscapeField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// UnescapeField reverses EscapeField, recovering the original text exactly.
func UnescapeField(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("roster: field %q is not quoted", s)
	}
	inner := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '"' {
			if i+1 >= len(inner) || inner[i+1] != '"' {
				return "", fmt.Errorf("roster: unpaired quote in field %q", s)
			}
			i++
		}
		b.WriteByte(inner[i])
	}
	return b.String(), nil
}
