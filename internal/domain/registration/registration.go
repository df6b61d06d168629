package registration

import (
	"errors"
	"fmt"
	"strings"
)

// Column layout of the registration sheet.
const (
	ColumnName     = 0
	ColumnEmail    = 1
	ColumnSessions = 2
)

// HeaderRows is the number of leading sheet rows that never carry a registration.
const HeaderRows = 1

var ErrMissingField = errors.New("registration row is missing a required field")

// Registration is one data row of the registration sheet.
type Registration struct {
	Row      int // 0-based index in the sheet, header included
	Name     string
	Email    string
	Sessions []string // session labels in the order the registrant listed them
}

// FromRow parses the cells of sheet row index. Rows without a name, email
// or session list yield ErrMissingField.
func FromRow(index int, cells []string) (*Registration, error) {
	name := cell(cells, ColumnName)
	email := cell(cells, ColumnEmail)
	sessions := cell(cells, ColumnSessions)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if sessions == "" {
		missing = append(missing, "sessions")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("row %d: %w (%s)", index, ErrMissingField, strings.Join(missing, ", "))
	}

	return &Registration{
		Row:      index,
		Name:     name,
		Email:    email,
		Sessions: SplitSessions(sessions),
	}, nil
}

// SplitSessions splits a comma-separated session cell. Blank entries and
// repeated labels are dropped; the first occurrence keeps its position.
func SplitSessions(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
