package correlate

import (
	"regexp"
	"strconv"
)

var (
	portPattern     = regexp.MustCompile(`port (\d+)`)
	usernamePattern = regexp.MustCompile(`for (\w+) from`)
)

// ExtractPort returns the first "port N" number in msg. ok is false when the
// message names no port or the number does not fit a port. Ports are compared
// as numbers, so "port 022" and "port 22" are the same port.
func ExtractPort(msg string) (port int, ok bool) {
	m := portPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	p, err := strconv.Atoi(m[1])
	if err != nil || p > 65535 {
		return 0, false
	}
	return p, true
}

// ExtractUsername returns the user named in an "... for USER from ..." message
func ExtractUsername(msg string) (user string, ok bool) {
	m := usernamePattern.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	return m[1], true
}
