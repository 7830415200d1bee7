package util

import "strings"

// Truncate shortens a string to at most n bytes, appending "..." when content
// was dropped. Cuts only at rune boundaries so the result is valid UTF-8.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		lastValid := 0
		for i := range s {
			if i > n {
				break
			}
			lastValid = i
		}
		return s[:lastValid]
	}
	targetLen := n - 3
	prevI := 0
	for i := range s {
		if i > targetLen {
			return s[:prevI] + "..."
		}
		prevI = i
	}
	return s[:prevI] + "..."
}

// TailBytes returns the last maxLen bytes of s, trimmed of surrounding
// whitespace. If maxLen lands inside a multi-byte rune the cut advances to the
// next rune boundary so the result stays valid UTF-8.
func TailBytes(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}

	start := len(s) - maxLen
	// UTF-8 continuation bytes have the form 10xxxxxx.
	for start < len(s) && s[start]&0xC0 == 0x80 {
		start++
	}
	return s[start:]
}
