// Package model holds the small set of types shared between the controller
// core and its transports: the command vocabulary and the error envelope.
package model

import "strings"

// Command is one state-mutating operator input. Every input source, local
// buttons and the remote endpoint alike, speaks this vocabulary.
type Command string

const (
	CommandNext Command = "next"
	CommandPrev Command = "prev"
	CommandPass Command = "pass"
	CommandFail Command = "fail"
)

// ParseCommand maps a raw name to a Command. Matching ignores case and
// surrounding whitespace.
func ParseCommand(raw string) (Command, bool) {
	c := Command(strings.ToLower(strings.TrimSpace(raw)))
	if c.Valid() {
		return c, true
	}
	return "", false
}

// Valid reports whether c is one of the known commands.
func (c Command) Valid() bool {
	switch c {
	case CommandNext, CommandPrev, CommandPass, CommandFail:
		return true
	}
	return false
}

// Message returns the human-readable confirmation for an accepted command.
func (c Command) Message() string {
	switch c {
	case CommandNext:
		return "Advanced to next step."
	case CommandPrev:
		return "Reverted to previous step."
	case CommandPass:
		return "Current step marked PASS."
	case CommandFail:
		return "Current step marked FAIL."
	}
	return ""
}

// Source identifies where a command came from.
type Source string

const (
	SourceButton Source = "button"
	SourceRemote Source = "remote"
)
