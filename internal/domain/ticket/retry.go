package ticket

import "strings"

type attemptKey struct {
	row     int
	email   string
	session string
}

// PendingRetries returns the latest failed record of every (row, email,
// session) triple that has no sent record yet and has used fewer than
// maxAttempts attempts. The result keeps log order. Records without a row
// are never retried.
func PendingRetries(records []Record, maxAttempts int) []Record {
	if maxAttempts <= 1 {
		return nil
	}

	type state struct {
		latest   Record
		attempts int
		sent     bool
		order    int
	}
	byKey := make(map[attemptKey]*state)
	var order []attemptKey

	for _, r := range records {
		if r.Row <= 0 {
			continue
		}
		k := attemptKey{row: r.Row, email: strings.ToLower(r.Email), session: r.Session}
		st, ok := byKey[k]
		if !ok {
			st = &state{order: len(order)}
			byKey[k] = st
			order = append(order, k)
		}
		st.latest = r
		if r.Attempt > st.attempts {
			st.attempts = r.Attempt
		}
		if r.Status == StatusSent {
			st.sent = true
		}
	}

	var out []Record
	for _, k := range order {
		st := byKey[k]
		if st.sent || st.latest.Status != StatusFailed || st.attempts >= maxAttempts {
			continue
		}
		rec := st.latest
		rec.Attempt = st.attempts
		out = append(out, rec)
	}
	return out
}
