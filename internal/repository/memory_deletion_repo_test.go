package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"agentdesk/internal/model"
)

func entry(id, resource, actor string, at time.Time) model.DeletionEntry {
	return model.DeletionEntry{
		TicketID:    id,
		Resource:    resource,
		RecordID:    "rec-" + id,
		RecordName:  "Record " + id,
		Snapshot:    model.Record{ID: "rec-" + id, Name: "Record " + id},
		Phase:       model.PhasePending,
		RequestedBy: model.Actor{UserID: actor, Username: actor},
		RequestedAt: at,
	}
}

func TestMemoryDeletionRepositoryResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryDeletionRepository()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Open(ctx, entry("t1", "agents", "u1", now)))
	require.NoError(t, repo.Resolve(ctx, "t1", model.PhaseUndone, "", now.Add(5*time.Second)))

	err := repo.Resolve(ctx, "t1", model.PhaseFinalized, "", now.Add(10*time.Second))
	require.ErrorIs(t, err, model.ErrNoActiveTicket)

	err = repo.Resolve(ctx, "missing", model.PhaseFinalized, "", now)
	require.ErrorIs(t, err, model.ErrNoActiveTicket)

	items, _, err := repo.Query(ctx, model.DeletionQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, model.PhaseUndone, items[0].Phase)
	require.NotNil(t, items[0].ResolvedAt)
	require.Equal(t, now.Add(5*time.Second), *items[0].ResolvedAt)
}

func TestMemoryDeletionRepositoryQuery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryDeletionRepository()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Open(ctx, entry(fmt.Sprintf("a%d", i), "agents", "u1", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Open(ctx, entry("e0", "escorts", "u2", base)))
	require.NoError(t, repo.Resolve(ctx, "a4", model.PhaseFinalizationFailed, "network error", base.Add(time.Hour)))

	t.Run("newest first with pagination", func(t *testing.T) {
		items, meta, err := repo.Query(ctx, model.DeletionQuery{Resource: "agents", Page: 1, Limit: 2})
		require.NoError(t, err)
		require.Equal(t, 5, meta.Total)
		require.Equal(t, []string{"a4", "a3"}, []string{items[0].TicketID, items[1].TicketID})

		items, _, err = repo.Query(ctx, model.DeletionQuery{Resource: "agents", Page: 3, Limit: 2})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "a0", items[0].TicketID)
	})

	t.Run("filters by phase and actor", func(t *testing.T) {
		items, _, err := repo.Query(ctx, model.DeletionQuery{Phase: string(model.PhaseFinalizationFailed)})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "network error", items[0].Error)

		items, _, err = repo.Query(ctx, model.DeletionQuery{ActorID: "u2"})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "escorts", items[0].Resource)
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		items, meta, err := repo.Query(ctx, model.DeletionQuery{Page: 10, Limit: 50})
		require.NoError(t, err)
		require.Empty(t, items)
		require.Equal(t, 6, meta.Total)
	})
}
