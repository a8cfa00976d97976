package types

import (
	"strings"
)

// forbidden characters would split a wire field or terminate a line
const forbiddenFieldChars = "|\r\n"

// IsWireSafe reports whether s can be carried as a plain (non-base64) field
func IsWireSafe(s string) bool {
	return !strings.ContainsAny(s, forbiddenFieldChars)
}

// ValidateNickname checks a nickname before it is sent in a JOIN
// FUNCTIONAL DISCOVERY: Nicknames are not unique and not authenticated,
// the only hard rule is that they survive the line framing
func ValidateNickname(nick string) error {
	if nick == "" {
		return ErrEmptyNickname
	}
	if !IsWireSafe(nick) {
		return ErrInvalidNickname
	}
	return nil
}

// Validate checks that the path can be used as a wire field
func (p VirtualPath) Validate() error {
	if p == "" {
		return ErrEmptyPath
	}
	if !IsWireSafe(string(p)) {
		return ErrInvalidPath
	}
	return nil
}
