// Package roster holds the visible, ordered state of one managed list and
// the reducer that applies deletion workflow actions to it.
package roster

import (
	"slices"

	"agentdesk/internal/model"
)

type ActionType string

const (
	ActionListLoaded      ActionType = "LIST_LOADED"
	ActionDeleteRequested ActionType = "DELETE_REQUESTED"
	ActionDeleteUndone    ActionType = "DELETE_UNDONE"
	ActionDeleteFinalized ActionType = "DELETE_FINALIZED"
	ActionDeleteFailed    ActionType = "DELETE_FAILED"
)

type Action interface {
	Type() ActionType
}

// ListLoaded replaces the list with authoritative platform data.
type ListLoaded struct {
	Records []model.Record
}

// DeleteRequested hides a record optimistically.
type DeleteRequested struct {
	ID string
}

// DeleteUndone puts the snapshot back.
type DeleteUndone struct {
	Record model.Record
}

// DeleteFinalized forgets a record the platform confirmed deleted.
type DeleteFinalized struct {
	ID string
}

// DeleteFailed puts the snapshot back after the platform refused the delete.
type DeleteFailed struct {
	Record model.Record
	Err    error
}

func (ListLoaded) Type() ActionType      { return ActionListLoaded }
func (DeleteRequested) Type() ActionType { return ActionDeleteRequested }
func (DeleteUndone) Type() ActionType    { return ActionDeleteUndone }
func (DeleteFinalized) Type() ActionType { return ActionDeleteFinalized }
func (DeleteFailed) Type() ActionType    { return ActionDeleteFailed }

// State is immutable once returned by Reduce; callers must not modify Records.
type State struct {
	Records []model.Record
	// Hidden holds ids optimistically removed and not yet finalized.
	Hidden  map[string]struct{}
	Version uint64
}

type Reducer struct {
	Order Order
}

// Reduce returns the next state. s is never modified.
func (r Reducer) Reduce(s State, action Action) State {
	next := State{
		Records: s.Records,
		Hidden:  s.Hidden,
		Version: s.Version + 1,
	}

	switch a := action.(type) {
	case ListLoaded:
		next.Records = r.sorted(dedupe(a.Records, s.Hidden))
	case DeleteRequested:
		next.Hidden = withID(s.Hidden, a.ID)
		next.Records = without(s.Records, a.ID)
	case DeleteUndone:
		next.Hidden = withoutID(s.Hidden, a.Record.ID)
		next.Records = r.sorted(append(without(s.Records, a.Record.ID), a.Record))
	case DeleteFailed:
		next.Hidden = withoutID(s.Hidden, a.Record.ID)
		next.Records = r.sorted(append(without(s.Records, a.Record.ID), a.Record))
	case DeleteFinalized:
		next.Hidden = withoutID(s.Hidden, a.ID)
		next.Records = without(s.Records, a.ID)
	default:
		return s
	}

	return next
}

func (r Reducer) sorted(records []model.Record) []model.Record {
	if r.Order != nil {
		slices.SortStableFunc(records, r.Order)
	}
	return records
}

// without always returns a fresh slice so prior states stay untouched.
func without(records []model.Record, id string) []model.Record {
	out := make([]model.Record, 0, len(records)+1)
	for _, record := range records {
		if record.ID != id {
			out = append(out, record)
		}
	}
	return out
}

func dedupe(records []model.Record, hidden map[string]struct{}) []model.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.Record, 0, len(records))
	for _, record := range records {
		if _, skip := hidden[record.ID]; skip {
			continue
		}
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		out = append(out, record)
	}
	return out
}

func withID(set map[string]struct{}, id string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+1)
	for k := range set {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

func withoutID(set map[string]struct{}, id string) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		if k != id {
			out[k] = struct{}{}
		}
	}
	return out
}
