package security

import "strings"

// SanitizeContent strips bytes unsafe to persist: NUL, DEL (0x7F), and
// every control byte ≤ 0x1F except \n, \r, \t. Valid UTF-8 — including
// multi-byte sequences like emoji, CJK, and RTL scripts — is
// preserved since filtering operates per rune, not per byte.
// Idempotent: sanitizing twice yields the same result as sanitizing
// once.
func SanitizeContent(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		switch {
		case r == 0 || r == 0x7F:
			continue
		case r <= 0x1F && r != '\n' && r != '\r' && r != '\t':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
