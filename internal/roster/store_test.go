package roster

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"agentdesk/internal/model"
)

func names(records []model.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func loadedStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore(NameOrder(language.English))
	store.Dispatch(ListLoaded{Records: []model.Record{
		{ID: "c3", Name: "zoe"},
		{ID: "a1", Name: "Agent Smith"},
		{ID: "b2", Name: "bella"},
		{ID: "e5", Name: "Émile"},
	}})
	return store
}

func TestNameOrder(t *testing.T) {
	t.Parallel()

	store := loadedStore(t)
	require.Equal(t, []string{"Agent Smith", "bella", "Émile", "zoe"}, names(store.Records()))
}

func TestListLoadedDropsDuplicates(t *testing.T) {
	t.Parallel()

	store := NewStore(NameOrder(language.English))
	store.Dispatch(ListLoaded{Records: []model.Record{
		{ID: "a1", Name: "Agent Smith"},
		{ID: "a1", Name: "Agent Smith (stale)"},
	}})

	require.Len(t, store.Records(), 1)
	require.Equal(t, "Agent Smith", store.Records()[0].Name)
}

func TestDeleteWorkflowActions(t *testing.T) {
	t.Parallel()

	t.Run("requested hides the record", func(t *testing.T) {
		store := loadedStore(t)
		snapshot, ok := store.Find("a1")
		require.True(t, ok)

		state := store.Dispatch(DeleteRequested{ID: "a1"})

		_, visible := store.Find("a1")
		require.False(t, visible)
		require.Contains(t, state.Hidden, "a1")
		require.Equal(t, "Agent Smith", snapshot.Name)
	})

	t.Run("undone restores in sorted position", func(t *testing.T) {
		store := loadedStore(t)
		snapshot, _ := store.Find("a1")
		store.Dispatch(DeleteRequested{ID: "a1"})

		state := store.Dispatch(DeleteUndone{Record: snapshot})

		require.Equal(t, []string{"Agent Smith", "bella", "Émile", "zoe"}, names(store.Records()))
		require.NotContains(t, state.Hidden, "a1")
	})

	t.Run("failed restores like undo", func(t *testing.T) {
		store := loadedStore(t)
		snapshot, _ := store.Find("e5")
		store.Dispatch(DeleteRequested{ID: "e5"})

		store.Dispatch(DeleteFailed{Record: snapshot, Err: errors.New("network error")})

		_, visible := store.Find("e5")
		require.True(t, visible)
	})

	t.Run("finalized forgets the record", func(t *testing.T) {
		store := loadedStore(t)
		store.Dispatch(DeleteRequested{ID: "b2"})

		state := store.Dispatch(DeleteFinalized{ID: "b2"})

		require.Equal(t, []string{"Agent Smith", "Émile", "zoe"}, names(store.Records()))
		require.Empty(t, state.Hidden)
	})

	t.Run("poll during undo window keeps record hidden", func(t *testing.T) {
		store := loadedStore(t)
		store.Dispatch(DeleteRequested{ID: "a1"})

		store.Dispatch(ListLoaded{Records: []model.Record{
			{ID: "a1", Name: "Agent Smith"},
			{ID: "b2", Name: "bella"},
		}})

		require.Equal(t, []string{"bella"}, names(store.Records()))
	})
}

func TestReduceDoesNotMutatePreviousState(t *testing.T) {
	t.Parallel()

	reducer := Reducer{Order: NameOrder(language.English)}
	first := reducer.Reduce(State{}, ListLoaded{Records: []model.Record{{ID: "a1", Name: "A"}, {ID: "b2", Name: "B"}}})
	second := reducer.Reduce(first, DeleteRequested{ID: "a1"})

	require.Len(t, first.Records, 2)
	require.Empty(t, first.Hidden)
	require.Len(t, second.Records, 1)
	require.Equal(t, first.Version+1, second.Version)
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	store := loadedStore(t)
	var seen []ActionType
	unsubscribe := store.Subscribe(func(action ActionType, state State) {
		seen = append(seen, action)
	})

	store.Dispatch(DeleteRequested{ID: "a1"})
	unsubscribe()
	store.Dispatch(DeleteFinalized{ID: "a1"})

	require.Equal(t, []ActionType{ActionDeleteRequested}, seen)
}
