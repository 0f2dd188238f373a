package model

import "time"

// Record is any deletable roster entry: an agent, an escort profile.
type Record struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Phase is the lifecycle position of a deletion ticket.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseConfirmed          Phase = "confirmed"
	PhasePending            Phase = "pending"
	PhaseUndone             Phase = "undone"
	PhaseFinalizing         Phase = "finalizing"
	PhaseFinalized          Phase = "finalized"
	PhaseFinalizationFailed Phase = "finalization_failed"
)

// Terminal reports whether a ticket in this phase has been discarded.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseUndone, PhaseFinalized, PhaseFinalizationFailed:
		return true
	}
	return false
}

// Ticket is a read-only view of a deletion in flight.
type Ticket struct {
	ID               string    `json:"id"`
	Resource         string    `json:"resource"`
	Record           Record    `json:"record"`
	CountdownSeconds int       `json:"countdown_seconds"`
	Phase            Phase     `json:"phase"`
	RequestedBy      Actor     `json:"requested_by"`
	RequestedAt      time.Time `json:"requested_at"`
}

// DeletionEntry is a journaled ticket with its outcome.
type DeletionEntry struct {
	TicketID    string     `json:"ticket_id"`
	Resource    string     `json:"resource"`
	RecordID    string     `json:"record_id"`
	RecordName  string     `json:"record_name"`
	Snapshot    Record     `json:"snapshot"`
	Phase       Phase      `json:"phase"`
	RequestedBy Actor      `json:"requested_by"`
	RequestedAt time.Time  `json:"requested_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}
