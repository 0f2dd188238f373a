package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"agentdesk/internal/event"
	"agentdesk/internal/model"
	"agentdesk/internal/service"
	"agentdesk/internal/undo"
)

type memPlatform struct {
	records   []model.Record
	deleteErr error
	// deleting and release, when set, hold Delete until release is closed
	deleting chan struct{}
	release  chan struct{}
}

func (p *memPlatform) List(context.Context, string) ([]model.Record, error) {
	return append([]model.Record(nil), p.records...), nil
}

func (p *memPlatform) Delete(context.Context, string, string) error {
	if p.release != nil {
		close(p.deleting)
		<-p.release
	}
	return p.deleteErr
}

func TestStdinConfirmer(t *testing.T) {
	var out bytes.Buffer

	confirm := stdinConfirmer(strings.NewReader("yes\nn\n"), &out)
	require.True(t, confirm.Confirm(context.Background(), "Delete Bella?"))
	require.False(t, confirm.Confirm(context.Background(), "Delete Bella?"))
	// EOF declines
	require.False(t, confirm.Confirm(context.Background(), "Delete Bella?"))
	require.Contains(t, out.String(), "Delete Bella? [y/N]")
}

func TestRenderRecords(t *testing.T) {
	var out bytes.Buffer

	renderRecords(&out, []model.Record{
		{ID: "a1", Name: "Agent Smith", Fields: map[string]any{"name": "Agent Smith", "queue": "vip", "active": true}},
	})

	table := out.String()
	require.Contains(t, table, "Agent Smith")
	require.Contains(t, table, "active=true queue=vip")
	require.Contains(t, strings.ToUpper(table), "TOTAL")
}

func followHarness(t *testing.T, platform *memPlatform) (*service.DeskService, <-chan event.Event, string) {
	t.Helper()

	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)

	desk, err := service.NewDeskService(platform, service.DeskOptions{
		Resources: []string{"agents"},
		Collation: language.English,
		Scheduler: &undo.ManualScheduler{},
		Bus:       bus,
	})
	require.NoError(t, err)
	t.Cleanup(desk.Close)
	require.NoError(t, desk.Refresh(context.Background(), "agents"))

	ticket, confirmed, err := desk.RequestDelete(context.Background(), "agents", "a1", undo.Confirmed, model.Actor{Username: "cli"})
	require.NoError(t, err)
	require.True(t, confirmed)
	return desk, events, ticket.ID
}

func TestFollowDeletion(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		desk, events, ticketID := followHarness(t, &memPlatform{records: []model.Record{{ID: "a1", Name: "Agent Smith"}}})
		_, err := desk.FinalizeNow(context.Background(), "agents")
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, followDeletion(context.Background(), desk, "agents", ticketID, events, nil, &out))
		require.Contains(t, out.String(), "Deleting Agent Smith in 20s")
		require.Contains(t, out.String(), "Agent Smith deleted")
	})

	t.Run("platform refused", func(t *testing.T) {
		platform := &memPlatform{records: []model.Record{{ID: "a1", Name: "Agent Smith"}}, deleteErr: errors.New("agent has open chats")}
		desk, events, ticketID := followHarness(t, platform)
		_, err := desk.FinalizeNow(context.Background(), "agents")
		require.ErrorIs(t, err, model.ErrDeleteFailed)
		require.ErrorContains(t, err, "agent has open chats")

		var out bytes.Buffer
		err = followDeletion(context.Background(), desk, "agents", ticketID, events, nil, &out)
		require.EqualError(t, err, "Could not delete Agent Smith: agent has open chats")
		require.Contains(t, out.String(), "Agent Smith restored")
	})

	t.Run("interrupt while pending undoes", func(t *testing.T) {
		desk, events, ticketID := followHarness(t, &memPlatform{records: []model.Record{{ID: "a1", Name: "Agent Smith"}}})
		interrupt := make(chan os.Signal, 1)
		interrupt <- os.Interrupt

		var out bytes.Buffer
		require.NoError(t, followDeletion(context.Background(), desk, "agents", ticketID, events, interrupt, &out))
		require.Contains(t, out.String(), "Agent Smith restored")
		_, err := desk.ActiveDeletion("agents")
		require.ErrorIs(t, err, model.ErrNoActiveTicket)
	})

	t.Run("interrupt during the platform call waits for it", func(t *testing.T) {
		platform := &memPlatform{
			records:  []model.Record{{ID: "a1", Name: "Agent Smith"}},
			deleting: make(chan struct{}),
			release:  make(chan struct{}),
		}
		desk, events, ticketID := followHarness(t, platform)
		finalized := make(chan error, 1)
		go func() {
			_, err := desk.FinalizeNow(context.Background(), "agents")
			finalized <- err
		}()
		<-platform.deleting

		interrupt := make(chan os.Signal, 1)
		interrupt <- os.Interrupt
		followed := make(chan error, 1)
		var out bytes.Buffer
		go func() { followed <- followDeletion(context.Background(), desk, "agents", ticketID, events, interrupt, &out) }()

		// interrupt is drained before the platform answers
		require.Eventually(t, func() bool { return len(interrupt) == 0 }, time.Second, 5*time.Millisecond)
		close(platform.release)

		require.NoError(t, <-finalized)
		require.NoError(t, <-followed)
		require.Contains(t, out.String(), "deletion already in progress")
		require.Contains(t, out.String(), "Agent Smith deleted")
	})
}
