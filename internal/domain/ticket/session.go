package ticket

import (
	"errors"
	"fmt"
	"strings"
)

// Session is one of the two event time slots a registrant can book.
type Session int

const (
	SessionOne Session = 1
	SessionTwo Session = 2
)

var ErrUnknownSession = errors.New("unknown session")

var sessionPrefixes = map[Session]string{
	SessionOne: "T7S1",
	SessionTwo: "T7S2",
}

// ParseSession maps a sheet label such as "Session 1" to its Session.
// Matching ignores case and surrounding whitespace.
func ParseSession(label string) (Session, error) {
	label = strings.TrimSpace(label)
	for s := range sessionPrefixes {
		if strings.EqualFold(label, s.Label()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownSession, label)
}

// Label is the human-readable session name used in sheets, tickets and records.
func (s Session) Label() string {
	return fmt.Sprintf("Session %d", int(s))
}

// Prefix returns the ticket id prefix assigned to the session.
func (s Session) Prefix() (string, error) {
	p, ok := sessionPrefixes[s]
	if !ok {
		return "", fmt.Errorf("%w %d", ErrUnknownSession, int(s))
	}
	return p, nil
}

func (s Session) Valid() bool {
	_, ok := sessionPrefixes[s]
	return ok
}
