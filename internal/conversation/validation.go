// internal/conversation/validation.go
package conversation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Accepted WhatsApp formats. Egyptian numbers are +201/01 followed by nine
// digits, Saudi numbers are +9665/05 followed by eight.
var (
	egyptianPhonePattern = regexp.MustCompile(`^(\+201[0-9]{9}|01[0-9]{9})$`)
	saudiPhonePattern    = regexp.MustCompile(`^(\+9665[0-9]{8}|05[0-9]{8})$`)
)

// NormalizePhone strips whitespace and separator characters before matching.
func NormalizePhone(raw string) string {
	number := strings.TrimSpace(raw)
	number = strings.ReplaceAll(number, " ", "")
	number = strings.ReplaceAll(number, "-", "")
	return number
}

// ValidWhatsappNumber reports whether the input is an accepted Egyptian or
// Saudi number.
func ValidWhatsappNumber(raw string) bool {
	number := NormalizePhone(raw)
	return egyptianPhonePattern.MatchString(number) || saudiPhonePattern.MatchString(number)
}

// AnswerLength counts characters of the trimmed answer. Arabic text is
// multi-byte, so the byte length would overcount.
func AnswerLength(text string) int {
	return utf8.RuneCountInString(strings.TrimSpace(text))
}
