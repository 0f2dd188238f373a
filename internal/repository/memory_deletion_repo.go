package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agentdesk/internal/model"
)

// MemoryDeletionRepository is the journal used when no database is configured.
// Entries live as long as the process.
type MemoryDeletionRepository struct {
	mu      sync.RWMutex
	entries map[string]model.DeletionEntry
}

func NewMemoryDeletionRepository() *MemoryDeletionRepository {
	return &MemoryDeletionRepository{entries: make(map[string]model.DeletionEntry)}
}

func (r *MemoryDeletionRepository) Open(_ context.Context, entry model.DeletionEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.TicketID]; exists {
		return nil
	}
	r.entries[entry.TicketID] = entry
	return nil
}

func (r *MemoryDeletionRepository) Resolve(_ context.Context, ticketID string, phase model.Phase, errText string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[ticketID]
	if !exists || entry.ResolvedAt != nil {
		return fmt.Errorf("resolve deletion ticket %s: %w", ticketID, model.ErrNoActiveTicket)
	}
	resolved := at
	entry.Phase = phase
	entry.Error = errText
	entry.ResolvedAt = &resolved
	r.entries[ticketID] = entry
	return nil
}

func (r *MemoryDeletionRepository) Query(_ context.Context, q model.DeletionQuery) ([]model.DeletionEntry, model.Meta, error) {
	page, limit := normalizePage(q.Page, q.Limit)

	r.mu.RLock()
	matched := make([]model.DeletionEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if q.Resource != "" && entry.Resource != q.Resource {
			continue
		}
		if q.Phase != "" && string(entry.Phase) != q.Phase {
			continue
		}
		if q.ActorID != "" && entry.RequestedBy.UserID != q.ActorID {
			continue
		}
		matched = append(matched, entry)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].RequestedAt.Equal(matched[j].RequestedAt) {
			return matched[i].TicketID < matched[j].TicketID
		}
		return matched[i].RequestedAt.After(matched[j].RequestedAt)
	})

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return matched[start:end], model.NewMeta(page, limit, total), nil
}
