package utils

import "strings"

// NvlString returns first not empty string value from varargs
//
// return "" if all strings are empty
func NvlString(args ...string) string {
	for _, str := range args {
		if str != "" {
			return str
		}
	}
	return ""
}

// DefaultString returns defaultValue if str is empty
func DefaultString(str string, defaultValue string) string {
	if str == "" {
		return defaultValue
	}
	return str
}

// ShortenString returns the first N slice of a string.
func ShortenString(str string, n int) string {
	if len([]rune(str)) <= n {
		return str
	}
	return string([]rune(str)[:n])
}

// ShortenStringWithEllipsis returns the first N slice of a string and ends with ellipsis.
func ShortenStringWithEllipsis(str string, n int) string {
	if len([]rune(str)) <= n {
		return str
	}
	return string([]rune(str)[:n]) + "..."
}

// JoinNonEmptyStrings joins strings with separator, but ignoring empty strings
func JoinNonEmptyStrings(sep string, elems ...string) string {
	switch len(elems) {
	case 0:
		return ""
	case 1:
		return elems[0]
	}
	var b strings.Builder
	for _, s := range elems {
		if len(s) > 0 {
			if b.Len() > 0 {
				b.WriteString(sep)
			}
			b.WriteString(s)
		}
	}
	return b.String()
}

// IsDigits returns true if str is not empty and consists of digits only
func IsDigits(str string) bool {
	if str == "" {
		return false
	}
	for _, r := range str {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
