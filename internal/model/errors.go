package model

import "errors"

var (
	// Operator related errors
	ErrUserNotFound       = errors.New("operator not found")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Roster related errors
	ErrUnknownList    = errors.New("unknown list")
	ErrRecordNotFound = errors.New("record not found")

	// Deletion related errors
	ErrTicketActive   = errors.New("a deletion is already pending for this list")
	ErrNoActiveTicket = errors.New("no pending deletion")
	ErrDeskClosed     = errors.New("desk is closed")
	ErrDeleteFailed   = errors.New("platform refused the deletion, record restored")

	// Platform related errors
	ErrPlatformUnavailable = errors.New("platform unavailable")
	ErrAlreadyGone         = errors.New("record already deleted on the platform")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
