package undo

import (
	"context"
	"time"
)

type NoticeType string

const (
	NoticeCountdown NoticeType = "countdown"
	NoticeRestored  NoticeType = "restored"
	NoticeError     NoticeType = "error"
	NoticeDeleted   NoticeType = "deleted"
)

// Notice drives the countdown badge and the undo affordance of a UI.
type Notice struct {
	Type       NoticeType `json:"type"`
	Resource   string     `json:"resource"`
	TicketID   string     `json:"ticket_id"`
	RecordID   string     `json:"record_id"`
	RecordName string     `json:"record_name"`
	Countdown  int        `json:"countdown"`
	Message    string     `json:"message,omitempty"`
	At         time.Time  `json:"at"`
}

// Notifier receives notices in the order the ticket changed. Notify must
// not call back into the Controller.
type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Confirmer is the blocking yes/no prompt shown before a deletion starts.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

type ConfirmFunc func(ctx context.Context, message string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

var (
	// Confirmed is for callers that collected consent before calling RequestDelete.
	Confirmed Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })
	Declined  Confirmer = ConfirmFunc(func(context.Context, string) bool { return false })
)
