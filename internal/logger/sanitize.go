package logger

import (
	"path"
	"strings"
	"unicode"
)

// Length limits for values copied from requests into log fields.
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
	MaxFileNameLength      = 255
)

// SanitizePath prepares a URL path for a log field.
func SanitizePath(p string) string {
	return SanitizeString(p, MaxPathLength)
}

// SanitizeString drops invalid UTF-8 and non-printable runes other than
// whitespace, then truncates to maxLength bytes with a "..." marker.
// A non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = strings.Map(keepPrintable, strings.ToValidUTF8(s, ""))
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

func keepPrintable(r rune) rune {
	switch {
	case unicode.IsPrint(r), r == ' ', r == '\t', r == '\n', r == '\r':
		return r
	default:
		return -1
	}
}

// SanitizeError returns err's message ready for a log field.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeFileName reduces a client-supplied upload name to its base name.
// Browsers on Windows may send a full path.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return SanitizeString(name, MaxFileNameLength)
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return SanitizeString(email, MaxUserIDLength)
	}
	local := []rune(email[:at])
	return SanitizeString(string(local[:1])+"***"+email[at:], MaxUserIDLength)
}
