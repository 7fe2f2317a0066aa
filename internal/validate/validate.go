package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	rePhone = regexp.MustCompile(`^\+?[0-9 ()-]{5,20}$`)
	reSlug  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	reHost  = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?)+$`)
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Phone accepts digits with the usual separators and an optional leading +.
func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, rePhone.MatchString(s)
}

// Q normalises a search query: trimmed, lower-cased (full Unicode), capped at
// 100 runes. Empty means no filter. % and _ are kept; the product search
// escapes them so they match themselves.
func Q(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) > 100 {
		s = string([]rune(s)[:100])
	}
	return s
}

// ID validates a resource identifier (uuids, gateway ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

func Slug(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, len(s) <= 120 && reSlug.MatchString(s)
}

// Domain validates an optional custom domain; "" is allowed.
func Domain(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", true
	}
	return s, len(s) <= 253 && reHost.MatchString(s)
}

// Name validates a displayable name with a reasonable max length.
func Name(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > 120 {
		return "", false
	}
	return s, true
}

// Text bounds free-form descriptions and addresses.
func Text(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	return s, utf8.RuneCountInString(s) <= max
}

// Page parses a 1-based page number, falling back to 1.
func Page(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Limit parses a page size, falling back to DefaultLimit and clamping to MaxLimit.
func Limit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	} // clamp to avoid abuse
	return n
}
