// internal/domain/ticket/record.go
package ticket

import "time"

// Status is the outcome of one issuance attempt.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Record is one entry of the append-only ticket log. A record is written
// once per issuance attempt and never updated afterwards.
type Record struct {
	TicketID  string    `json:"ticketId,omitempty"` // empty when issuance failed before an id was assigned
	Row       int       `json:"row"`                // sheet row the registration came from
	Attempt   int       `json:"attempt"`            // 1 for the first try of a (row, session) pair
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Session   string    `json:"session"` // label, e.g. "Session 1"
	Status    Status    `json:"status"`
	MessageID string    `json:"messageId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats aggregates the ticket log.
type Stats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// SuccessRate returns the rounded percentage of sent tickets. ok is false
// when the log is empty.
func (s Stats) SuccessRate() (percent int, ok bool) {
	if s.Total == 0 {
		return 0, false
	}
	return (s.Sent*100 + s.Total/2) / s.Total, true
}

func ComputeStats(records []Record) Stats {
	st := Stats{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusSent:
			st.Sent++
		case StatusFailed:
			st.Failed++
		}
	}
	return st
}
